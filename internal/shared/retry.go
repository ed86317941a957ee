package shared

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds retries of SQLite writes that hit lock contention.
// MaxRetries counts the retries after the first attempt.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// RetryOnConflict runs op until it succeeds, fails with a non-conflict error,
// or the retries are exhausted. The delay doubles after every attempt.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, name string, op func(context.Context) error) error {
	attempts := max(policy.MaxRetries, 0) + 1

	var err error
	for i := 0; i < attempts; i++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !IsSQLiteConflictError(err) || i == attempts-1 {
			break
		}

		delay := policy.BaseDelay * time.Duration(1<<i)
		slog.Debug("SQLite conflict, retrying", "operation", name, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(delay):
		}
	}

	if IsSQLiteConflictError(err) {
		return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
	}
	return err
}
