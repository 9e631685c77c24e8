package handlers

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-insights/internal/archive"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// ExportHandler renders a meeting as a Word document
type ExportHandler struct {
	store  Store
	logger *slog.Logger
}

// NewExportHandler creates an export handler
func NewExportHandler(store Store, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{store: store, logger: logger}
}

// Handle streams the .docx export of a completed job
func (h *ExportHandler) Handle(c *fiber.Ctx) error {
	job, err := loadOwned(c, h.store)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if job.Status != types.StatusCompleted {
		return respondError(c, h.logger, types.Errorf(types.KindConflict, "export", "job %s is %s", job.ID, job.Status))
	}

	sum, err := summaryOf(c, h.store, job.ID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var content *types.SummaryContent
	if sum != nil {
		content = &sum.SummaryContent
	}

	data, err := archive.RenderDocxBytes(job, content)
	if err != nil {
		return respondError(c, h.logger, types.E(types.KindUnknown, "export", err))
	}

	c.Set(fiber.HeaderContentType, archive.DocxMIMEType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", archive.ExportName(job)))
	return c.Send(data)
}
