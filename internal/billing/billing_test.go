package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/codebuildervaibhav/meeting-insights/internal/logger"
	"github.com/codebuildervaibhav/meeting-insights/internal/storage"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

const testSecret = "whsec_test"

type fakeSubscriptions struct {
	byCustomer map[string]string
	updates    map[string][]types.SubscriptionUpdate
}

func newFakeSubscriptions() *fakeSubscriptions {
	return &fakeSubscriptions{
		byCustomer: map[string]string{},
		updates:    map[string][]types.SubscriptionUpdate{},
	}
}

func (f *fakeSubscriptions) UpdateSubscription(ctx context.Context, userID string, u types.SubscriptionUpdate) error {
	f.updates[userID] = append(f.updates[userID], u)
	return nil
}

func (f *fakeSubscriptions) FindUserByCustomer(ctx context.Context, customerID string) (*types.EntitlementRecord, error) {
	id, ok := f.byCustomer[customerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &types.EntitlementRecord{UserID: id}, nil
}

func signed(t *testing.T, eventType, object string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"created":1700000000,"api_version":"2024-12-18.acacia","data":{"object":%s}}`, eventType, object))
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	store := newFakeSubscriptions()
	w := NewWebhook(testSecret, store, logger.Discard())

	payload, _ := signed(t, "checkout.session.completed", `{"id":"cs_1","client_reference_id":"u1"}`)

	if err := w.Handle(context.Background(), payload, ""); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("missing signature: %v", err)
	}
	if err := w.Handle(context.Background(), payload, "t=1,v1=deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("bad signature: %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatal("no state may change on a rejected event")
	}

	if err := NewWebhook("", store, logger.Discard()).Handle(context.Background(), payload, "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("unconfigured: %v", err)
	}
}

func TestWebhookEvents(t *testing.T) {
	future := time.Now().Add(30 * 24 * time.Hour).Unix()

	tests := []struct {
		name       string
		eventType  string
		object     string
		wantUser   string
		wantStatus types.SubscriptionStatus
		check      func(t *testing.T, u types.SubscriptionUpdate)
	}{
		{
			name:       "checkout completed links ids",
			eventType:  "checkout.session.completed",
			object:     `{"id":"cs_1","object":"checkout.session","client_reference_id":"u1","customer":"cus_1","subscription":"sub_1","metadata":{"plan":"premium"}}`,
			wantUser:   "u1",
			wantStatus: types.SubscriptionActive,
			check: func(t *testing.T, u types.SubscriptionUpdate) {
				if u.CustomerID == nil || *u.CustomerID != "cus_1" || u.SubscriptionID == nil || *u.SubscriptionID != "sub_1" {
					t.Fatalf("update = %+v", u)
				}
			},
		},
		{
			name:       "subscription updated uses period end",
			eventType:  "customer.subscription.updated",
			object:     fmt.Sprintf(`{"id":"sub_1","object":"subscription","status":"trialing","customer":"cus_1","current_period_end":%d,"metadata":{"user_id":"u2"}}`, future),
			wantUser:   "u2",
			wantStatus: types.SubscriptionActive,
			check: func(t *testing.T, u types.SubscriptionUpdate) {
				if u.EndsAt == nil || u.EndsAt.Unix() != future {
					t.Fatalf("EndsAt = %v", u.EndsAt)
				}
			},
		},
		{
			name:       "subscription canceled prefers cancel_at",
			eventType:  "customer.subscription.updated",
			object:     `{"id":"sub_1","object":"subscription","status":"canceled","customer":"cus_9","cancel_at":1800000000,"current_period_end":1900000000}`,
			wantUser:   "u9",
			wantStatus: types.SubscriptionCancelled,
			check: func(t *testing.T, u types.SubscriptionUpdate) {
				if u.EndsAt == nil || u.EndsAt.Unix() != 1800000000 {
					t.Fatalf("EndsAt = %v", u.EndsAt)
				}
			},
		},
		{
			name:       "subscription past due expires with no end",
			eventType:  "customer.subscription.created",
			object:     `{"id":"sub_1","object":"subscription","status":"past_due","customer":"cus_9"}`,
			wantUser:   "u9",
			wantStatus: types.SubscriptionExpired,
			check: func(t *testing.T, u types.SubscriptionUpdate) {
				if !u.ClearEndsAt {
					t.Fatalf("update = %+v", u)
				}
			},
		},
		{
			name:       "subscription deleted",
			eventType:  "customer.subscription.deleted",
			object:     `{"id":"sub_1","object":"subscription","status":"canceled","customer":"cus_9","ended_at":1750000000}`,
			wantUser:   "u9",
			wantStatus: types.SubscriptionCancelled,
			check: func(t *testing.T, u types.SubscriptionUpdate) {
				if u.EndsAt == nil || u.EndsAt.Unix() != 1750000000 {
					t.Fatalf("EndsAt = %v", u.EndsAt)
				}
			},
		},
		{
			name:       "invoice paid",
			eventType:  "invoice.payment_succeeded",
			object:     `{"id":"in_1","object":"invoice","customer":"cus_9"}`,
			wantUser:   "u9",
			wantStatus: types.SubscriptionActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeSubscriptions()
			store.byCustomer["cus_9"] = "u9"
			w := NewWebhook(testSecret, store, logger.Discard())

			payload, header := signed(t, tt.eventType, tt.object)
			if err := w.Handle(context.Background(), payload, header); err != nil {
				t.Fatalf("Handle: %v", err)
			}

			updates := store.updates[tt.wantUser]
			if len(updates) != 1 {
				t.Fatalf("updates = %+v", store.updates)
			}
			if updates[0].Status == nil || *updates[0].Status != tt.wantStatus {
				t.Fatalf("status = %v, want %s", updates[0].Status, tt.wantStatus)
			}
			if tt.check != nil {
				tt.check(t, updates[0])
			}
		})
	}
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	for _, eventType := range []string{"invoice.payment_failed", "customer.created"} {
		store := newFakeSubscriptions()
		w := NewWebhook(testSecret, store, logger.Discard())

		payload, header := signed(t, eventType, `{"id":"x","customer":"cus_9"}`)
		if err := w.Handle(context.Background(), payload, header); err != nil {
			t.Fatalf("%s: %v", eventType, err)
		}
		if len(store.updates) != 0 {
			t.Fatalf("%s changed state", eventType)
		}
	}
}

func TestMapStatus(t *testing.T) {
	tests := map[stripe.SubscriptionStatus]types.SubscriptionStatus{
		stripe.SubscriptionStatusActive:     types.SubscriptionActive,
		stripe.SubscriptionStatusTrialing:   types.SubscriptionActive,
		stripe.SubscriptionStatusCanceled:   types.SubscriptionCancelled,
		stripe.SubscriptionStatusUnpaid:     types.SubscriptionExpired,
		stripe.SubscriptionStatusIncomplete: types.SubscriptionExpired,
	}
	for in, want := range tests {
		if got := MapStatus(in); got != want {
			t.Errorf("MapStatus(%s) = %s, want %s", in, got, want)
		}
	}
}

type fakeSessions struct {
	params *stripe.CheckoutSessionParams
	err    error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{URL: "https://checkout.stripe.com/c/pay/cs_1"}, nil
}

func TestCreateSession(t *testing.T) {
	sessions := &fakeSessions{}
	c := &Checkout{sessions: sessions, priceID: "price_default", publicURL: "https://app.example.com"}

	url, err := c.CreateSession(context.Background(), "u1", "a@example.com", "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if url != "https://checkout.stripe.com/c/pay/cs_1" {
		t.Fatalf("url = %q", url)
	}

	p := sessions.params
	if *p.Mode != "subscription" || *p.LineItems[0].Price != "price_default" || *p.LineItems[0].Quantity != 1 {
		t.Fatalf("line items = %+v", p.LineItems[0])
	}
	if *p.SuccessURL != "https://app.example.com/success?session_id={CHECKOUT_SESSION_ID}" || *p.CancelURL != "https://app.example.com/upgrade" {
		t.Fatalf("urls = %s %s", *p.SuccessURL, *p.CancelURL)
	}
	if *p.ClientReferenceID != "u1" || p.Metadata["plan"] != "premium" || p.SubscriptionData.Metadata["user_id"] != "u1" {
		t.Fatalf("references = %+v", p)
	}
	if !*p.AutomaticTax.Enabled || *p.BillingAddressCollection != "required" {
		t.Fatal("tax and billing address must be required")
	}

	if _, err := c.CreateSession(context.Background(), "u1", "", "price_default", "http://localhost:3000/"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if *sessions.params.CancelURL != "http://localhost:3000/upgrade" {
		t.Fatal("request origin should win")
	}
}

func TestCreateSessionRejectsOtherPrices(t *testing.T) {
	sessions := &fakeSessions{}
	c := &Checkout{sessions: sessions, priceID: "price_default", publicURL: "https://app.example.com"}

	_, err := c.CreateSession(context.Background(), "u1", "", "price_cheap", "")
	if types.KindOf(err) != types.KindValidation {
		t.Fatalf("kind = %s, want validation", types.KindOf(err))
	}
	if sessions.params != nil {
		t.Fatal("no session may be created for an unknown price")
	}

	noPrice := &Checkout{sessions: sessions}
	if _, err := noPrice.CreateSession(context.Background(), "u1", "", "price_cheap", ""); types.KindOf(err) != types.KindMissingCredential {
		t.Fatalf("kind = %s, want missing credential", types.KindOf(err))
	}
}

func TestWebhookIgnoresNonPremiumCheckout(t *testing.T) {
	store := newFakeSubscriptions()
	w := NewWebhook(testSecret, store, logger.Discard())

	payload, header := signed(t, "checkout.session.completed",
		`{"id":"cs_2","object":"checkout.session","client_reference_id":"u1","customer":"cus_1","metadata":{"plan":"other"}}`)
	if err := w.Handle(context.Background(), payload, header); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("updates = %+v", store.updates)
	}
}

func TestCreateSessionUnconfigured(t *testing.T) {
	c := NewCheckout("", "price", "")
	_, err := c.CreateSession(context.Background(), "u1", "", "", "http://x")
	if types.KindOf(err) != types.KindMissingCredential {
		t.Fatalf("kind = %s", types.KindOf(err))
	}
}
