package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	seen  map[string]bool
	calls []execCall
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	if len(args) >= 2 {
		if k, ok := args[0].(string); ok {
			id := k + "/" + args[1].(string)
			if f.seen[id] {
				return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
			}
			f.seen[id] = true
		}
	}
	return pgconn.NewCommandTag("DELETE 3"), nil
}

func TestClaimDetectsReplay(t *testing.T) {
	exec := &fakeExecer{seen: map[string]bool{}}
	store := NewStore(exec)
	ctx := context.Background()

	require.NoError(t, store.Claim(ctx, "abc", "orders"))
	assert.ErrorIs(t, store.Claim(ctx, "abc", "orders"), ErrConflict)
	assert.NoError(t, store.Claim(ctx, "abc", "weeks"), "keys are scoped per module")
}

func TestClaimValidatesInput(t *testing.T) {
	store := NewStore(&fakeExecer{seen: map[string]bool{}})
	assert.Error(t, store.Claim(context.Background(), "  ", "orders"))
	assert.Error(t, store.Claim(context.Background(), "k", ""))

	var nilStore *Store
	assert.Error(t, nilStore.Claim(context.Background(), "k", "orders"))
}

func TestClaimPassesThroughOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	store := NewStore(&fakeExecer{err: boom})
	assert.ErrorIs(t, store.Claim(context.Background(), "k", "orders"), boom)
}

func TestCleanupUsesRetention(t *testing.T) {
	exec := &fakeExecer{seen: map[string]bool{}}
	store := NewStore(exec)
	fixed := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	n, err := store.Cleanup(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, fixed.Add(-24*time.Hour), exec.calls[0].args[0])
}
