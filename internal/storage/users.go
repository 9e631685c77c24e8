package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

const userColumns = `id, email, transcription_count, subscription_status, stripe_customer_id,
	stripe_subscription_id, subscription_ends_at, created_at, updated_at`

func scanUser(row rowScanner) (*types.EntitlementRecord, error) {
	var (
		rec    types.EntitlementRecord
		endsAt sql.NullTime
	)
	err := row.Scan(&rec.UserID, &rec.Email, &rec.TranscriptionCount, &rec.SubscriptionStatus,
		&rec.StripeCustomerID, &rec.StripeSubscriptionID, &endsAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if endsAt.Valid {
		t := endsAt.Time
		rec.SubscriptionEndsAt = &t
	}
	return &rec, nil
}

// EnsureUser creates the user row on first sight and refreshes the email afterwards
func (s *Store) EnsureUser(ctx context.Context, userID, email string) (*types.EntitlementRecord, error) {
	now := s.now()
	_, err := s.exec(ctx, `
	INSERT INTO users (id, email, subscription_status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		email = CASE WHEN excluded.email <> '' THEN excluded.email ELSE users.email END,
		updated_at = CASE WHEN excluded.email <> '' AND excluded.email <> users.email
			THEN excluded.updated_at ELSE users.updated_at END`,
		userID, email, types.SubscriptionNone, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sync user: %w", err)
	}
	return s.GetUser(ctx, userID)
}

// GetUser returns the user's entitlement record
func (s *Store) GetUser(ctx context.Context, userID string) (*types.EntitlementRecord, error) {
	rec, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return rec, nil
}

// FindUserByCustomer looks a user up by billing customer id
func (s *Store) FindUserByCustomer(ctx context.Context, customerID string) (*types.EntitlementRecord, error) {
	if customerID == "" {
		return nil, ErrNotFound
	}
	rec, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE stripe_customer_id = ?`, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by customer: %w", err)
	}
	return rec, nil
}

// IncrementTranscriptionCount adds one to the counter in a single statement
// and returns the new value.
func (s *Store) IncrementTranscriptionCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.queryRow(ctx, `
	UPDATE users SET transcription_count = transcription_count + 1, updated_at = ?
	WHERE id = ? RETURNING transcription_count`, s.now(), userID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment transcription count: %w", err)
	}
	return count, nil
}

// UpdateSubscription applies the non-nil fields of u
func (s *Store) UpdateSubscription(ctx context.Context, userID string, u types.SubscriptionUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{s.now()}

	if u.Status != nil {
		sets = append(sets, "subscription_status = ?")
		args = append(args, *u.Status)
	}
	if u.CustomerID != nil {
		sets = append(sets, "stripe_customer_id = ?")
		args = append(args, *u.CustomerID)
	}
	if u.SubscriptionID != nil {
		sets = append(sets, "stripe_subscription_id = ?")
		args = append(args, *u.SubscriptionID)
	}
	switch {
	case u.ClearEndsAt:
		sets = append(sets, "subscription_ends_at = NULL")
	case u.EndsAt != nil:
		sets = append(sets, "subscription_ends_at = ?")
		args = append(args, u.EndsAt.UTC())
	}

	args = append(args, userID)
	res, err := s.exec(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return affectedOne(res)
}
