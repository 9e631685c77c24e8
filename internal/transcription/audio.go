package transcription

import (
	"context"
	"errors"
	"fmt"
	"math"
	"mime"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// MaxUploadBytes is the largest accepted recording
const MaxUploadBytes int64 = 25 << 20

// UnknownDuration is reported when the length of a recording cannot be probed
const UnknownDuration = "Unknown"

// Validation failures. Both are checked with errors.Is.
var (
	ErrFileTooLarge = errors.New("file too large")
	ErrInvalidType  = errors.New("invalid file type")
)

// AllowedMIMETypes lists the declared content types accepted for upload
var AllowedMIMETypes = map[string]bool{
	"audio/mp3":  true,
	"audio/mpeg": true,
	"audio/wav":  true,
	"audio/m4a":  true,
	"audio/mp4":  true,
}

// Validator rejects recordings before any work is done on them
type Validator struct {
	MaxBytes int64
}

// NewValidator returns a Validator with the given size ceiling, or the default when maxBytes <= 0
func NewValidator(maxBytes int64) Validator {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	return Validator{MaxBytes: maxBytes}
}

// Validate checks size first, then the declared type
func (v Validator) Validate(size int64, mimeType string) error {
	if size > v.MaxBytes {
		return ErrFileTooLarge
	}
	if !AllowedMIMETypes[NormalizeMIME(mimeType)] {
		return ErrInvalidType
	}
	return nil
}

// ValidateUpload applies the default limits
func ValidateUpload(size int64, mimeType string) error {
	return NewValidator(MaxUploadBytes).Validate(size, mimeType)
}

// NormalizeMIME strips parameters and lower-cases the media type
func NormalizeMIME(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType, _, _ = strings.Cut(mimeType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// MIMEForExtension guesses the media type of a file that arrived without one
func MIMEForExtension(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/m4a"
	case ".mp4":
		return "audio/mp4"
	default:
		return ""
	}
}

// ProbeDuration reads the recording length with ffprobe and formats it as m:ss.
// It returns UnknownDuration on any failure and never blocks for long.
func ProbeDuration(ctx context.Context, path string) string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return UnknownDuration
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return UnknownDuration
	}
	return FormatDuration(seconds)
}

// FormatDuration renders seconds as m:ss
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return UnknownDuration
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
