package types

import "time"

// SubscriptionStatus mirrors the billing provider's lifecycle in app terms
type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = "none"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// EntitlementRecord holds per-user usage and subscription state
type EntitlementRecord struct {
	UserID               string             `json:"user_id"`
	Email                string             `json:"email,omitempty"`
	TranscriptionCount   int                `json:"transcription_count"`
	SubscriptionStatus   SubscriptionStatus `json:"subscription_status"`
	StripeCustomerID     string             `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string             `json:"stripe_subscription_id,omitempty"`
	SubscriptionEndsAt   *time.Time         `json:"subscription_ends_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// SubscriptionUpdate is a partial update applied by the billing webhook.
// Nil fields are left unchanged; ClearEndsAt removes the end timestamp.
type SubscriptionUpdate struct {
	Status         *SubscriptionStatus
	CustomerID     *string
	SubscriptionID *string
	EndsAt         *time.Time
	ClearEndsAt    bool
}

// Limit is the result of an entitlement check
type Limit struct {
	IsPremium          bool `json:"is_premium"`
	TranscriptionCount int  `json:"transcription_count"`
	HasReachedLimit    bool `json:"has_reached_limit"`
	// Remaining is nil when the user has no limit
	Remaining *int `json:"remaining"`
}
