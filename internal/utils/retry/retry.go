package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// Policy 指数退避重试策略
type Policy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// Backoff returns the delay before the given zero based retry.
func (p Policy) Backoff(attempt int) time.Duration {
	b := &backoff.Backoff{Min: p.Base, Max: p.max(), Factor: 2}
	return b.ForAttempt(float64(attempt))
}

func (p Policy) max() time.Duration {
	if p.Max > 0 {
		return p.Max
	}
	return p.Base * 64
}

// Do runs fn until it succeeds, the attempts are used up or ctx ends.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if werr := Sleep(ctx, p.Backoff(i)); werr != nil {
			return werr
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
