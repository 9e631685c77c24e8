package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/codebuildervaibhav/meeting-insights/internal/logger"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

func TestVerify(t *testing.T) {
	v := NewVerifier("secret", "meeting-insights")

	good, err := v.Issue("user-1", "a@example.com", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	expired, _ := v.Issue("user-1", "", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))})
	otherKey, _ := NewVerifier("other", "meeting-insights").Issue("user-1", "", jwt.RegisteredClaims{})
	otherIssuer, _ := NewVerifier("secret", "someone-else").Issue("user-1", "", jwt.RegisteredClaims{})
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "meeting-insights"}}).SignedString([]byte("secret"))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS384, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "meeting-insights"}}).SignedString([]byte("secret"))

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", good, false},
		{"empty", "", true},
		{"garbage", "not.a.jwt", true},
		{"expired", expired, true},
		{"wrong key", otherKey, true},
		{"wrong issuer", otherIssuer, true},
		{"no subject", noSubject, true},
		{"wrong algorithm", wrongAlg, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (id.UserID != "user-1" || id.Email != "a@example.com") {
				t.Fatalf("identity = %+v", id)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	}
	for in, want := range tests {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}

type syncRecorder struct {
	ids    []string
	emails []string
}

func (s *syncRecorder) EnsureUser(ctx context.Context, userID, email string) (*types.EntitlementRecord, error) {
	s.ids = append(s.ids, userID)
	s.emails = append(s.emails, email)
	return &types.EntitlementRecord{UserID: userID}, nil
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret", "")
	users := &syncRecorder{}

	app := fiber.New()
	app.Use(Middleware(v, users, logger.Discard()))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(UserID(c) + "|" + Email(c))
	})

	token, _ := v.Issue("user-9", "z@example.com", jwt.RegisteredClaims{})

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(users.ids) != 1 || users.ids[0] != "user-9" || users.emails[0] != "z@example.com" {
		t.Fatalf("synced = %v %v", users.ids, users.emails)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/me?token="+token, nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("query token status = %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/me", nil))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("missing token status = %d", resp.StatusCode)
	}
}
