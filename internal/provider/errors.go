// Package provider classifies failures returned by the AI model endpoints.
package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// Classify wraps err into a *types.Error with a kind chosen from the HTTP
// status when the client exposes one and from the message otherwise.
// Errors that are already classified pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *types.Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.E(types.KindTransport, op, err)
	}
	return types.E(kindOf(err), op, err)
}

func kindOf(err error) types.Kind {
	msg := strings.ToLower(err.Error())

	switch status := statusCode(err); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.KindMissingCredential
	case status == http.StatusTooManyRequests:
		return types.KindQuotaExceeded
	case status == http.StatusBadRequest || status == http.StatusUnsupportedMediaType:
		if mentionsFormat(msg) {
			return types.KindBadFormat
		}
	}

	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "api_key") ||
		strings.Contains(msg, "permission_denied") || strings.Contains(msg, "unauthenticated"):
		return types.KindMissingCredential
	case strings.Contains(msg, "quota") || strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted"):
		return types.KindQuotaExceeded
	default:
		return types.KindTransport
	}
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func mentionsFormat(msg string) bool {
	return strings.Contains(msg, "file") || strings.Contains(msg, "format") ||
		strings.Contains(msg, "decode") || strings.Contains(msg, "unsupported")
}
