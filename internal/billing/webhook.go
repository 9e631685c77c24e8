package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/codebuildervaibhav/meeting-insights/internal/storage"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

var (
	// ErrInvalidSignature is returned for a missing or unverifiable signature
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	// ErrNotConfigured is returned when no signing secret is set
	ErrNotConfigured = errors.New("webhook not configured")
)

// SubscriptionStore applies billing state to users
type SubscriptionStore interface {
	UpdateSubscription(ctx context.Context, userID string, u types.SubscriptionUpdate) error
	FindUserByCustomer(ctx context.Context, customerID string) (*types.EntitlementRecord, error)
}

// Webhook verifies and applies billing provider events
type Webhook struct {
	secret string
	store  SubscriptionStore
	logger *slog.Logger
}

// NewWebhook creates a webhook handler
func NewWebhook(secret string, store SubscriptionStore, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{secret: secret, store: store, logger: logger}
}

// Handle verifies payload against the signature header and applies the event.
// Nothing changes when verification fails.
func (w *Webhook) Handle(ctx context.Context, payload []byte, signature string) error {
	if w.secret == "" {
		return ErrNotConfigured
	}
	if signature == "" {
		return ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, w.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		w.logger.WarnContext(ctx, "webhook signature verification failed", "error", err)
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	log := w.logger.With("event_id", event.ID, "event_type", string(event.Type))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return w.checkoutCompleted(ctx, log, &sess)

	case stripe.EventTypeCustomerSubscriptionCreated, stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return w.subscriptionChanged(ctx, log, &sub)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return w.subscriptionDeleted(ctx, log, &sub, event.Created)

	case stripe.EventTypeInvoicePaymentSucceeded:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return w.paymentSucceeded(ctx, log, &inv)

	case stripe.EventTypeInvoicePaymentFailed:
		log.WarnContext(ctx, "invoice payment failed")
		return nil

	default:
		log.DebugContext(ctx, "unhandled webhook event")
		return nil
	}
}

func (w *Webhook) checkoutCompleted(ctx context.Context, log *slog.Logger, sess *stripe.CheckoutSession) error {
	userID := sess.ClientReferenceID
	if userID == "" {
		userID = sess.Metadata["user_id"]
	}
	if userID == "" {
		log.WarnContext(ctx, "checkout session without user reference", "session_id", sess.ID)
		return nil
	}
	if sess.Metadata["plan"] != PlanPremium {
		log.WarnContext(ctx, "checkout session is not a premium purchase", "session_id", sess.ID, "plan", sess.Metadata["plan"])
		return nil
	}

	status := types.SubscriptionActive
	u := types.SubscriptionUpdate{Status: &status}
	if id := customerID(sess.Customer); id != "" {
		u.CustomerID = &id
	}
	if sess.Subscription != nil && sess.Subscription.ID != "" {
		id := sess.Subscription.ID
		u.SubscriptionID = &id
	}
	return w.apply(ctx, log, userID, u)
}

func (w *Webhook) subscriptionChanged(ctx context.Context, log *slog.Logger, sub *stripe.Subscription) error {
	userID, err := w.resolveUser(ctx, sub.Metadata, customerID(sub.Customer))
	if err != nil || userID == "" {
		return w.unresolved(ctx, log, err)
	}

	status := MapStatus(sub.Status)
	subID := sub.ID
	u := types.SubscriptionUpdate{Status: &status, SubscriptionID: &subID}
	if id := customerID(sub.Customer); id != "" {
		u.CustomerID = &id
	}
	switch {
	case sub.CancelAt > 0:
		end := time.Unix(sub.CancelAt, 0).UTC()
		u.EndsAt = &end
	case sub.CurrentPeriodEnd > 0:
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		u.EndsAt = &end
	default:
		u.ClearEndsAt = true
	}
	return w.apply(ctx, log, userID, u)
}

func (w *Webhook) subscriptionDeleted(ctx context.Context, log *slog.Logger, sub *stripe.Subscription, created int64) error {
	userID, err := w.resolveUser(ctx, sub.Metadata, customerID(sub.Customer))
	if err != nil || userID == "" {
		return w.unresolved(ctx, log, err)
	}

	status := types.SubscriptionCancelled
	ended := sub.EndedAt
	if ended == 0 {
		ended = created
	}
	end := time.Unix(ended, 0).UTC()
	return w.apply(ctx, log, userID, types.SubscriptionUpdate{Status: &status, EndsAt: &end})
}

func (w *Webhook) paymentSucceeded(ctx context.Context, log *slog.Logger, inv *stripe.Invoice) error {
	var meta map[string]string
	if inv.SubscriptionDetails != nil {
		meta = inv.SubscriptionDetails.Metadata
	}
	userID, err := w.resolveUser(ctx, meta, customerID(inv.Customer))
	if err != nil || userID == "" {
		return w.unresolved(ctx, log, err)
	}

	status := types.SubscriptionActive
	return w.apply(ctx, log, userID, types.SubscriptionUpdate{Status: &status})
}

// resolveUser prefers the user_id metadata and falls back to the customer id
func (w *Webhook) resolveUser(ctx context.Context, meta map[string]string, customer string) (string, error) {
	if id := meta["user_id"]; id != "" {
		return id, nil
	}
	if customer == "" {
		return "", nil
	}
	rec, err := w.store.FindUserByCustomer(ctx, customer)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.UserID, nil
}

func (w *Webhook) unresolved(ctx context.Context, log *slog.Logger, err error) error {
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}
	log.WarnContext(ctx, "webhook event for unknown user")
	return nil
}

func (w *Webhook) apply(ctx context.Context, log *slog.Logger, userID string, u types.SubscriptionUpdate) error {
	err := w.store.UpdateSubscription(ctx, userID, u)
	if errors.Is(err, storage.ErrNotFound) {
		log.WarnContext(ctx, "webhook event for unknown user", "user_id", userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	log.InfoContext(ctx, "subscription updated", "user_id", userID)
	return nil
}

// MapStatus converts a provider subscription status to the app's
func MapStatus(s stripe.SubscriptionStatus) types.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return types.SubscriptionActive
	case stripe.SubscriptionStatusCanceled:
		return types.SubscriptionCancelled
	default:
		return types.SubscriptionExpired
	}
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
