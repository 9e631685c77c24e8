package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-insights/internal/auth"
	"github.com/codebuildervaibhav/meeting-insights/internal/queue"
	"github.com/codebuildervaibhav/meeting-insights/internal/transcription"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// UploadHandler handles file uploads
type UploadHandler struct {
	submitter Submitter
	logger    *slog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(submitter Submitter, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		submitter: submitter,
		logger:    logger,
	}
}

// Handle processes the upload request
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "No file uploaded")
	}

	mimeType := file.Header.Get(fiber.HeaderContentType)
	if mimeType == "" || mimeType == fiber.MIMEOctetStream {
		mimeType = transcription.MIMEForExtension(file.Filename)
	}

	body, err := file.Open()
	if err != nil {
		return respondError(c, h.logger, types.E(types.KindUnknown, "open upload", err))
	}
	defer body.Close()

	job, err := h.submitter.Submit(c.UserContext(), queue.Submission{
		UserID:   auth.UserID(c),
		Filename: file.Filename,
		MIMEType: mimeType,
		Size:     file.Size,
		Body:     body,
		Retry:    c.FormValue("retry") == "true",
		Source:   types.SourceUpload,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":   job.ID,
		"status":   job.Status,
		"duration": job.Duration,
		"message":  "File uploaded successfully, processing started",
	})
}
