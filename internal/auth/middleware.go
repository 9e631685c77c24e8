package auth

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

const (
	localUserID = "user_id"
	localEmail  = "email"
)

// UserSyncer creates or refreshes the caller's user row
type UserSyncer interface {
	EnsureUser(ctx context.Context, userID, email string) (*types.EntitlementRecord, error)
}

// Middleware authenticates every request. Websocket upgrades may pass the
// token as ?token= since browsers cannot set headers on them.
func Middleware(v *Verifier, users UserSyncer, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := BearerToken(c.Get(fiber.HeaderAuthorization))
		if raw == "" {
			raw = c.Query("token")
		}

		id, err := v.Verify(raw)
		if err != nil {
			logger.Debug("rejected credential", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": types.KindUnauthorized.UserMessage(),
				"code":  types.KindUnauthorized.Code(),
			})
		}

		if users != nil {
			if _, err := users.EnsureUser(c.UserContext(), id.UserID, id.Email); err != nil {
				logger.Error("failed to sync user", "user_id", id.UserID, "error", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": types.KindPersistence.UserMessage(),
					"code":  types.KindPersistence.Code(),
				})
			}
		}

		c.Locals(localUserID, id.UserID)
		c.Locals(localEmail, id.Email)
		return c.Next()
	}
}

// UserID returns the authenticated caller's id
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// Email returns the authenticated caller's email, if the token carried one
func Email(c *fiber.Ctx) string {
	email, _ := c.Locals(localEmail).(string)
	return email
}
