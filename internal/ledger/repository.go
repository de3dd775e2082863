package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/db"
)

// Store is the persistence contract of the ledger service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	History(ctx context.Context, orderID int64) ([]Entry, error)
	OrderOwner(ctx context.Context, orderID int64) (int64, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	UpdateOrderStatus(ctx context.Context, orderID int64, status Status) (ownerID int64, err error)
	AppendHistory(ctx context.Context, entry Entry) (Entry, error)
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// History returns the transitions of an order, oldest first.
func (r *Repository) History(ctx context.Context, orderID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, status, reason, changed_by, changed_at
		FROM order_status_history WHERE order_id = $1 ORDER BY changed_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.ID, &e.OrderID, &status, &e.Reason, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// OrderOwner returns the user that placed the order.
func (r *Repository) OrderOwner(ctx context.Context, orderID int64) (int64, error) {
	var owner int64
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM orders WHERE id = $1`, orderID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return owner, err
}

func (t *txRepo) UpdateOrderStatus(ctx context.Context, orderID int64, status Status) (int64, error) {
	var owner int64
	err := t.tx.QueryRow(ctx, `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 RETURNING user_id`, orderID, string(status)).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return owner, err
}

func (t *txRepo) AppendHistory(ctx context.Context, entry Entry) (Entry, error) {
	return InsertEntry(ctx, t.tx, entry)
}

// InsertEntry appends a history row. changed_at is kept strictly increasing
// per order even when two transitions land within the same clock tick.
func InsertEntry(ctx context.Context, q Querier, entry Entry) (Entry, error) {
	var (
		id        int64
		changedAt time.Time
	)
	err := q.QueryRow(ctx, `INSERT INTO order_status_history (order_id, status, reason, changed_by, changed_at)
		SELECT $1, $2, $3, $4, GREATEST(now(), COALESCE(MAX(changed_at) + interval '1 microsecond', now()))
		FROM order_status_history WHERE order_id = $1
		RETURNING id, changed_at`,
		entry.OrderID, string(entry.Status), entry.Reason, entry.ChangedBy).Scan(&id, &changedAt)
	if err != nil {
		return Entry{}, err
	}
	entry.ID = id
	entry.ChangedAt = changedAt
	return entry, nil
}
