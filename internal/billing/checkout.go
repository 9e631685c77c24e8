package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// PlanPremium is the only paid plan
const PlanPremium = "premium"

type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Checkout starts hosted subscription checkouts
type Checkout struct {
	sessions  sessionCreator
	priceID   string
	publicURL string
}

// NewCheckout creates a checkout client. An empty secret key leaves it
// unconfigured and every call reports a missing credential.
func NewCheckout(secretKey, priceID, publicURL string) *Checkout {
	c := &Checkout{priceID: priceID, publicURL: strings.TrimRight(publicURL, "/")}
	if secretKey != "" {
		sc := &client.API{}
		sc.Init(secretKey, nil)
		c.sessions = sc.CheckoutSessions
	}
	return c
}

// CreateSession opens a premium subscription checkout for userID and returns
// the hosted page URL. origin is where the browser came from; the configured
// public URL is used when it is empty.
func (c *Checkout) CreateSession(ctx context.Context, userID, email, priceID, origin string) (string, error) {
	if c.sessions == nil {
		return "", types.E(types.KindMissingCredential, "checkout", errors.New("stripe secret key not configured"))
	}
	if c.priceID == "" {
		return "", types.E(types.KindMissingCredential, "checkout", errors.New("stripe price id not configured"))
	}
	// only the configured premium price may be bought
	if priceID == "" {
		priceID = c.priceID
	}
	if priceID != c.priceID {
		return "", types.E(types.KindValidation, "checkout", errors.New("unknown price id"))
	}
	origin = strings.TrimRight(origin, "/")
	if origin == "" {
		origin = c.publicURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:               stripe.String(origin + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:                stripe.String(origin + "/upgrade"),
		AutomaticTax:             &stripe.CheckoutSessionAutomaticTaxParams{Enabled: stripe.Bool(true)},
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		ClientReferenceID:        stripe.String(userID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"plan": PlanPremium, "user_id": userID},
		},
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx
	params.AddMetadata("plan", PlanPremium)
	params.AddMetadata("user_id", userID)

	sess, err := c.sessions.New(params)
	if err != nil {
		return "", classify(err)
	}
	return sess.URL, nil
}

func classify(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		switch {
		case serr.HTTPStatusCode == 401 || serr.HTTPStatusCode == 403:
			return types.E(types.KindMissingCredential, "checkout", err)
		case serr.HTTPStatusCode == 429:
			return types.E(types.KindQuotaExceeded, "checkout", err)
		case serr.Type == stripe.ErrorTypeInvalidRequest:
			return types.E(types.KindValidation, "checkout", errors.New(serr.Msg))
		}
	}
	return types.E(types.KindTransport, "checkout", err)
}
