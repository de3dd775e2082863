// Package idempotency records client-supplied request keys so that retried
// writes are detected instead of applied twice.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/db"
)

// HeaderName is the request header carrying the key.
const HeaderName = "Idempotency-Key"

// ErrConflict indicates the key was already processed.
var ErrConflict = errors.New("idempotent request already processed")

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Store persists processed keys per module.
type Store struct {
	db  Execer
	now func() time.Time
}

// NewStore constructs the store.
func NewStore(conn Execer) *Store {
	return &Store{db: conn, now: time.Now}
}

// Claim records key for module. It returns ErrConflict when the key exists.
func (s *Store) Claim(ctx context.Context, key, module string) error {
	if s == nil || s.db == nil {
		return errors.New("idempotency store not initialised")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, s.now())
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrConflict
		}
		return err
	}
	return nil
}

// Release removes a key so the request can be retried after a failure.
func (s *Store) Release(ctx context.Context, key, module string) error {
	if s == nil || s.db == nil || key == "" {
		return nil
	}
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND module = $2`, key, module)
	return err
}

// Cleanup removes entries older than retention.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
