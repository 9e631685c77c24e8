package types

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can choose a retry policy and a message
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindEntitlement
	KindMissingCredential
	KindTransport
	KindQuotaExceeded
	KindBadFormat
	KindUnintelligibleInput
	KindMalformedResponse
	KindPersistence
	KindNotFound
	KindUnauthorized
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindEntitlement:
		return "entitlement"
	case KindMissingCredential:
		return "missing_credential"
	case KindTransport:
		return "transport"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindBadFormat:
		return "bad_format"
	case KindUnintelligibleInput:
		return "unintelligible_input"
	case KindMalformedResponse:
		return "malformed_response"
	case KindPersistence:
		return "persistence"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Code is the machine-readable error code sent to clients
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "ERR_VALIDATION"
	case KindEntitlement:
		return "ERR_LIMIT_REACHED"
	case KindMissingCredential:
		return "ERR_CONFIGURATION"
	case KindTransport:
		return "ERR_PROVIDER_UNAVAILABLE"
	case KindQuotaExceeded:
		return "ERR_PROVIDER_QUOTA"
	case KindBadFormat:
		return "ERR_INVALID_FORMAT"
	case KindUnintelligibleInput:
		return "ERR_UNINTELLIGIBLE_AUDIO"
	case KindMalformedResponse:
		return "ERR_MALFORMED_AI_RESPONSE"
	case KindPersistence:
		return "ERR_SAVE_FAILED"
	case KindNotFound:
		return "ERR_NOT_FOUND"
	case KindUnauthorized:
		return "ERR_UNAUTHORIZED"
	case KindConflict:
		return "ERR_CONFLICT"
	default:
		return "ERR_INTERNAL"
	}
}

// UserMessage is the short text shown to the user for this kind of failure
func (k Kind) UserMessage() string {
	switch k {
	case KindEntitlement:
		return "Free plan limit reached. Upgrade to premium for unlimited transcriptions."
	case KindMissingCredential:
		return "AI service credentials are missing or invalid. Please check the server configuration."
	case KindTransport:
		return "Failed to process audio file. Please try again."
	case KindQuotaExceeded:
		return "AI provider quota exceeded. Please try again later."
	case KindBadFormat:
		return "Invalid audio file format. Please use MP3, WAV, or M4A."
	case KindUnintelligibleInput:
		return "Could not transcribe audio. Please ensure the audio contains clear speech."
	case KindMalformedResponse:
		return "Failed to parse AI response. Please retry."
	case KindPersistence:
		return "Results could not be saved. Please try again."
	case KindNotFound:
		return "Not found"
	case KindUnauthorized:
		return "Access denied"
	case KindConflict:
		return "Request conflicts with the current job state"
	default:
		return "Something went wrong. Please try again."
	}
}

// Retryable reports whether an automatic retry may succeed
func (k Kind) Retryable() bool {
	return k == KindTransport
}

// Error is a classified failure
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a classified error
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the user-facing message for err.
// Validation errors carry their own reason.
func MessageOf(err error) string {
	kind := KindOf(err)
	if kind == KindValidation {
		var e *Error
		if errors.As(err, &e) && e.Err != nil {
			return e.Err.Error()
		}
	}
	return kind.UserMessage()
}
