package queue

import (
	"context"
	"time"
)

// RetryPolicy runs an operation up to Attempts times, sleeping attempt*BaseDelay between tries
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	// Sleep waits for d or until ctx is done; nil uses a timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls op until it succeeds, retryable reports false, or attempts run out.
// The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error, retryable func(error) bool) error {
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == attempts || !retryable(err) {
			return err
		}
		if serr := p.sleep(ctx, time.Duration(attempt)*p.BaseDelay); serr != nil {
			return err
		}
	}
	return err
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Once is a policy that never retries
var Once = RetryPolicy{Attempts: 1}
