package handlers

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// ChatHandler serves questions about a meeting and its chat thread
type ChatHandler struct {
	store  Store
	qa     Asker
	logger *slog.Logger
}

// NewChatHandler creates a chat handler
func NewChatHandler(store Store, qa Asker, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{store: store, qa: qa, logger: logger}
}

type questionRequest struct {
	Question string `json:"question"`
}

// Ask answers a question grounded in the job's transcript and summary
func (h *ChatHandler) Ask(c *fiber.Ctx) error {
	job, err := loadOwned(c, h.store)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req questionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return badRequest(c, "question is required")
	}

	sum, err := summaryOf(c, h.store, job.ID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var content *types.SummaryContent
	if sum != nil {
		content = &sum.SummaryContent
	}

	answer, err := h.qa.Ask(c.UserContext(), job, content, req.Question)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(answer)
}

// Messages returns the job's chat thread, oldest first
func (h *ChatHandler) Messages(c *fiber.Ctx) error {
	job, err := loadOwned(c, h.store)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	messages, err := h.store.ListChatMessages(c.UserContext(), job.ID)
	if err != nil {
		return respondError(c, h.logger, types.E(types.KindPersistence, "list messages", err))
	}
	if messages == nil {
		messages = []*types.ChatMessage{}
	}
	return c.JSON(fiber.Map{"messages": messages})
}
