// Package entitlement decides whether a user may start another transcription.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// DefaultFreeLimit is the lifetime number of transcriptions on the free plan
const DefaultFreeLimit = 2

// Store reads and updates per-user usage
type Store interface {
	GetUser(ctx context.Context, userID string) (*types.EntitlementRecord, error)
	IncrementTranscriptionCount(ctx context.Context, userID string) (int, error)
}

// Gate enforces the free-plan limit
type Gate struct {
	store     Store
	freeLimit int
	now       func() time.Time
}

// NewGate creates a gate. freeLimit <= 0 uses DefaultFreeLimit.
func NewGate(store Store, freeLimit int) *Gate {
	if freeLimit <= 0 {
		freeLimit = DefaultFreeLimit
	}
	return &Gate{store: store, freeLimit: freeLimit, now: time.Now}
}

// IsPremium reports whether rec has an active, unexpired subscription
func IsPremium(rec *types.EntitlementRecord, now time.Time) bool {
	if rec == nil {
		return false
	}
	if rec.SubscriptionStatus != types.SubscriptionActive || rec.StripeSubscriptionID == "" {
		return false
	}
	return rec.SubscriptionEndsAt == nil || rec.SubscriptionEndsAt.After(now)
}

// Evaluate computes the limit for rec without touching the store
func Evaluate(rec *types.EntitlementRecord, freeLimit int, now time.Time) types.Limit {
	count := 0
	if rec != nil {
		count = rec.TranscriptionCount
	}

	if IsPremium(rec, now) {
		return types.Limit{IsPremium: true, TranscriptionCount: count}
	}

	remaining := max(0, freeLimit-count)
	return types.Limit{
		TranscriptionCount: count,
		HasReachedLimit:    count >= freeLimit,
		Remaining:          &remaining,
	}
}

// CheckLimit reads the user's record and evaluates it
func (g *Gate) CheckLimit(ctx context.Context, userID string) (types.Limit, error) {
	rec, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return types.Limit{}, types.E(types.KindPersistence, "check limit", fmt.Errorf("load user %s: %w", userID, err))
	}
	return Evaluate(rec, g.freeLimit, g.now()), nil
}

// Allow returns a KindEntitlement error when the user is out of free transcriptions
func (g *Gate) Allow(ctx context.Context, userID string) (types.Limit, error) {
	limit, err := g.CheckLimit(ctx, userID)
	if err != nil {
		return limit, err
	}
	if limit.HasReachedLimit {
		return limit, types.E(types.KindEntitlement, "check limit",
			errors.New("free transcription limit reached"))
	}
	return limit, nil
}

// Increment records one completed transcription
func (g *Gate) Increment(ctx context.Context, userID string) (int, error) {
	n, err := g.store.IncrementTranscriptionCount(ctx, userID)
	if err != nil {
		return 0, types.E(types.KindPersistence, "increment usage", err)
	}
	return n, nil
}
