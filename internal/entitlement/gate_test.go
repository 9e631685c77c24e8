package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

type fakeStore struct {
	rec *types.EntitlementRecord
	err error
}

func (f *fakeStore) GetUser(context.Context, string) (*types.EntitlementRecord, error) {
	return f.rec, f.err
}

func (f *fakeStore) IncrementTranscriptionCount(context.Context, string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.rec.TranscriptionCount++
	return f.rec.TranscriptionCount, nil
}

func TestIsPremium(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		rec  *types.EntitlementRecord
		want bool
	}{
		{"nil", nil, false},
		{"free", &types.EntitlementRecord{SubscriptionStatus: types.SubscriptionNone}, false},
		{"active no end", &types.EntitlementRecord{SubscriptionStatus: types.SubscriptionActive, StripeSubscriptionID: "sub_1"}, true},
		{"active future end", &types.EntitlementRecord{SubscriptionStatus: types.SubscriptionActive, StripeSubscriptionID: "sub_1", SubscriptionEndsAt: &future}, true},
		{"active past end", &types.EntitlementRecord{SubscriptionStatus: types.SubscriptionActive, StripeSubscriptionID: "sub_1", SubscriptionEndsAt: &past}, false},
		{"active without subscription id", &types.EntitlementRecord{SubscriptionStatus: types.SubscriptionActive}, false},
		{"cancelled", &types.EntitlementRecord{SubscriptionStatus: types.SubscriptionCancelled, StripeSubscriptionID: "sub_1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPremium(tt.rec, now); got != tt.want {
				t.Fatalf("IsPremium() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		count     int
		premium   bool
		reached   bool
		remaining int
	}{
		{"fresh", 0, false, false, 2},
		{"one used", 1, false, false, 1},
		{"at limit", 2, false, true, 0},
		{"over limit", 5, false, true, 0},
		{"premium heavy user", 40, true, false, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &types.EntitlementRecord{TranscriptionCount: tt.count}
			if tt.premium {
				rec.SubscriptionStatus = types.SubscriptionActive
				rec.StripeSubscriptionID = "sub_1"
			}
			got := Evaluate(rec, DefaultFreeLimit, now)
			if got.IsPremium != tt.premium || got.HasReachedLimit != tt.reached {
				t.Fatalf("Evaluate() = %+v", got)
			}
			if tt.remaining < 0 {
				if got.Remaining != nil {
					t.Fatalf("premium Remaining = %d, want unlimited", *got.Remaining)
				}
				return
			}
			if got.Remaining == nil || *got.Remaining != tt.remaining {
				t.Fatalf("Remaining = %v, want %d", got.Remaining, tt.remaining)
			}
		})
	}
}

func TestAllow(t *testing.T) {
	store := &fakeStore{rec: &types.EntitlementRecord{UserID: "u1", TranscriptionCount: 1}}
	gate := NewGate(store, 0)

	if _, err := gate.Allow(context.Background(), "u1"); err != nil {
		t.Fatalf("Allow with one left: %v", err)
	}
	if n, err := gate.Increment(context.Background(), "u1"); err != nil || n != 2 {
		t.Fatalf("Increment = %d, %v", n, err)
	}
	_, err := gate.Allow(context.Background(), "u1")
	if types.KindOf(err) != types.KindEntitlement {
		t.Fatalf("Allow at limit kind = %s", types.KindOf(err))
	}
}

func TestCheckLimitStoreError(t *testing.T) {
	gate := NewGate(&fakeStore{err: errors.New("db down")}, 2)
	_, err := gate.CheckLimit(context.Background(), "u1")
	if types.KindOf(err) != types.KindPersistence {
		t.Fatalf("kind = %s", types.KindOf(err))
	}
}
