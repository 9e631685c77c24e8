package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-insights/internal/auth"
)

// UsageHandler reports the caller's entitlement
type UsageHandler struct {
	gate   LimitChecker
	logger *slog.Logger
}

// NewUsageHandler creates a usage handler
func NewUsageHandler(gate LimitChecker, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{gate: gate, logger: logger}
}

// Get returns {is_premium, transcription_count, has_reached_limit, remaining}
func (h *UsageHandler) Get(c *fiber.Ctx) error {
	limit, err := h.gate.CheckLimit(c.UserContext(), auth.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(limit)
}
