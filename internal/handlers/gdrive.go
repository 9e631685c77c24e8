package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-insights/internal/auth"
	"github.com/codebuildervaibhav/meeting-insights/internal/queue"
	"github.com/codebuildervaibhav/meeting-insights/internal/storage"
	"github.com/codebuildervaibhav/meeting-insights/internal/transcription"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// DriveOpener streams a shared Google Drive file
type DriveOpener interface {
	Open(ctx context.Context, fileID string) (io.ReadCloser, string, error)
}

// GDriveHandler handles Google Drive link processing
type GDriveHandler struct {
	submitter Submitter
	drive     DriveOpener
	logger    *slog.Logger
}

// NewGDriveHandler creates a new Google Drive handler
func NewGDriveHandler(submitter Submitter, drive DriveOpener, logger *slog.Logger) *GDriveHandler {
	return &GDriveHandler{
		submitter: submitter,
		drive:     drive,
		logger:    logger,
	}
}

// GDriveRequest represents the request body
type GDriveRequest struct {
	URL   string `json:"url"`
	Name  string `json:"name"`
	Retry bool   `json:"retry"`
}

// Handle downloads a shared recording and submits it like an upload. The size
// ceiling is enforced while the download streams to disk.
func (h *GDriveHandler) Handle(c *fiber.Ctx) error {
	var req GDriveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.URL == "" {
		return badRequest(c, "URL is required")
	}

	fileID := storage.ExtractDriveFileID(req.URL)
	if fileID == "" {
		return badRequest(c, "Invalid Google Drive URL")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "gdrive_file.mp3"
	}

	h.logger.InfoContext(c.UserContext(), "downloading from google drive", "file_id", fileID)

	body, contentType, err := h.drive.Open(c.UserContext(), fileID)
	if errors.Is(err, storage.ErrDriveNotAccessible) {
		return respondError(c, h.logger, types.E(types.KindValidation, "import", err))
	}
	if err != nil {
		return respondError(c, h.logger, types.E(types.KindTransport, "import", err))
	}
	defer body.Close()

	mimeType := transcription.NormalizeMIME(contentType)
	if !transcription.AllowedMIMETypes[mimeType] {
		if guess := transcription.MIMEForExtension(name); guess != "" {
			mimeType = guess
		}
	}

	job, err := h.submitter.Submit(c.UserContext(), queue.Submission{
		UserID:    auth.UserID(c),
		Filename:  name,
		MIMEType:  mimeType,
		Size:      -1,
		Body:      body,
		Retry:     req.Retry,
		Source:    types.SourceGDrive,
		SourceRef: fileID,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":   job.ID,
		"status":   job.Status,
		"duration": job.Duration,
		"message":  "Google Drive file downloaded, processing started",
	})
}
