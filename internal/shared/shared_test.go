package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		conflict   bool
		constraint bool
	}{
		{"nil", nil, false, false},
		{"busy", errors.New("exec: SQLITE_BUSY (5)"), true, false},
		{"locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true, false},
		{"table locked", errors.New("SQLITE_LOCKED: table is locked"), true, false},
		{"unique", errors.New("constraint failed: UNIQUE constraint failed: conversations.id (1555)"), false, true},
		{"other", errors.New("no such table: conversations"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.conflict, IsSQLiteConflictError(tt.err))
			assert.Equal(t, tt.constraint, IsSQLiteConstraintError(tt.err))
		})
	}
}

func TestRetryOnConflictRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}, "update", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryOnConflictGivesUp(t *testing.T) {
	calls := 0
	busy := errors.New("SQLITE_BUSY")
	err := RetryOnConflict(context.Background(), RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}, "update", func(context.Context) error {
		calls++
		return busy
	})
	require.ErrorIs(t, err, busy)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls, "two retries after the first attempt")
}

func TestRetryOnConflictZeroRetriesRunsOnce(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), RetryPolicy{BaseDelay: time.Millisecond}, "update", func(context.Context) error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryOnConflictDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := RetryOnConflict(context.Background(), RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond}, "update", func(context.Context) error {
		calls++
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestRetryOnConflictHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryOnConflict(ctx, RetryPolicy{MaxRetries: 3, BaseDelay: time.Hour}, "update", func(context.Context) error {
		return errors.New("SQLITE_BUSY")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
