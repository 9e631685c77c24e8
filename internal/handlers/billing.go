package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-insights/internal/auth"
	"github.com/codebuildervaibhav/meeting-insights/internal/billing"
)

// BillingHandler starts checkouts and receives provider webhooks
type BillingHandler struct {
	checkout CheckoutCreator
	webhook  WebhookHandler
	logger   *slog.Logger
}

// NewBillingHandler creates a billing handler
func NewBillingHandler(checkout CheckoutCreator, webhook WebhookHandler, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{checkout: checkout, webhook: webhook, logger: logger}
}

type checkoutRequest struct {
	PriceID string `json:"price_id"`
}

// Checkout returns the hosted checkout URL for the premium plan
func (h *BillingHandler) Checkout(c *fiber.Ctx) error {
	var req checkoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	url, err := h.checkout.CreateSession(c.UserContext(), auth.UserID(c), auth.Email(c), req.PriceID, c.Get(fiber.HeaderOrigin))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// Webhook verifies and applies a signed billing event
func (h *BillingHandler) Webhook(c *fiber.Ctx) error {
	err := h.webhook.Handle(c.UserContext(), c.Body(), c.Get("Stripe-Signature"))
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"received": true})
	case errors.Is(err, billing.ErrInvalidSignature):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Webhook signature verification failed"})
	case errors.Is(err, billing.ErrNotConfigured):
		h.logger.ErrorContext(c.UserContext(), "webhook secret not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Webhook not configured"})
	default:
		h.logger.ErrorContext(c.UserContext(), "webhook handler failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Webhook handler failed"})
	}
}
