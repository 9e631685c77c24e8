package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-insights/internal/storage"
	"github.com/codebuildervaibhav/meeting-insights/internal/transcription"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind types.Kind) int {
	switch kind {
	case types.KindValidation, types.KindBadFormat:
		return fiber.StatusBadRequest
	case types.KindUnauthorized:
		return fiber.StatusUnauthorized
	case types.KindEntitlement:
		return fiber.StatusPaymentRequired
	case types.KindNotFound:
		return fiber.StatusNotFound
	case types.KindConflict:
		return fiber.StatusConflict
	case types.KindUnintelligibleInput:
		return fiber.StatusUnprocessableEntity
	case types.KindQuotaExceeded:
		return fiber.StatusTooManyRequests
	case types.KindMalformedResponse, types.KindTransport:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes {"error", "code"} for err. Server-side failures are logged.
func respondError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	if errors.Is(err, storage.ErrNotFound) && types.KindOf(err) == types.KindUnknown {
		err = types.E(types.KindNotFound, "", err)
	}
	return writeError(c, logger, StatusFor(types.KindOf(err)), err)
}

func writeError(c *fiber.Ctx, logger *slog.Logger, status int, err error) error {
	kind := types.KindOf(err)
	if status >= fiber.StatusInternalServerError {
		logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"kind", kind.String(),
			"error", err)
	}

	body := fiber.Map{
		"error": types.MessageOf(err),
		"code":  kind.Code(),
	}
	if kind == types.KindEntitlement {
		body["upgrade"] = true
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler shapes errors raised by fiber itself, such as an oversized
// body or an unknown route, the same way handlers report theirs.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			return respondError(c, logger, err)
		}
		switch fe.Code {
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, logger, fe.Code, types.E(types.KindValidation, "upload", transcription.ErrFileTooLarge))
		case fiber.StatusNotFound:
			return writeError(c, logger, fe.Code, types.E(types.KindNotFound, "", err))
		case fiber.StatusUnauthorized, fiber.StatusForbidden:
			return writeError(c, logger, fe.Code, types.E(types.KindUnauthorized, "", err))
		}
		if fe.Code < fiber.StatusInternalServerError {
			return writeError(c, logger, fe.Code, types.E(types.KindValidation, "", errors.New(fe.Message)))
		}
		return writeError(c, logger, fe.Code, err)
	}
}

// badRequest reports a malformed request body or parameter
func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  types.KindValidation.Code(),
	})
}
