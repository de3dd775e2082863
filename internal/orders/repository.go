package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/clock"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/ledger"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/db"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/idempotency"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/weeks"
)

// IdempotencyModule scopes order keys in the idempotency store.
const IdempotencyModule = "orders"

const orderColumns = `id, user_id, total::text, metodo_pago, observaciones, comprobante_url,
	fecha_entrega, status, tipo_menu, created_at, updated_at`

// Store is the persistence contract of the order service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	Get(ctx context.Context, id int64) (*Order, error)
	Delete(ctx context.Context, id int64) error
}

// TxRepository exposes the writes of one order placement.
type TxRepository interface {
	ShareLockWeek(ctx context.Context, weekID int64) (*weeks.Week, error)
	ClaimKey(ctx context.Context, key string) error
	CreateOrder(ctx context.Context, o *Order) error
	InsertItem(ctx context.Context, it *Item) error
	RecordInitialStatus(ctx context.Context, orderID, actor int64) error
}

// Repository provides PostgreSQL backed persistence for orders.
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

// ShareLockWeek returns the week as committed, holding it against admin edits
// and deletion until the order commits.
func (t *txRepo) ShareLockWeek(ctx context.Context, weekID int64) (*weeks.Week, error) {
	return weeks.LockShared(ctx, t.tx, weekID)
}

func (t *txRepo) ClaimKey(ctx context.Context, key string) error {
	return idempotency.NewStore(t.tx).Claim(ctx, key, IdempotencyModule)
}

func (t *txRepo) CreateOrder(ctx context.Context, o *Order) error {
	return t.tx.QueryRow(ctx, `INSERT INTO orders
		(user_id, total, metodo_pago, observaciones, fecha_entrega, status, tipo_menu)
		VALUES ($1, $2::numeric, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		o.UserID, o.Total.StringFixed(2), o.PaymentMethod, o.Observations,
		o.DeliveryDate.Time(), string(o.Status), o.MenuType,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (t *txRepo) InsertItem(ctx context.Context, it *Item) error {
	var day *string
	if it.Day != nil {
		s := it.Day.String()
		day = &s
	}
	var dayDate *time.Time
	if it.DayDate != nil {
		d := it.DayDate.Time()
		dayDate = &d
	}
	var unit *string
	if it.UnitPrice != nil {
		s := it.UnitPrice.StringFixed(2)
		unit = &s
	}
	return t.tx.QueryRow(ctx, `INSERT INTO order_items
		(order_id, item_type, item_id, resolved_name, quantity, dia, fecha_dia, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric)
		RETURNING id`,
		it.OrderID, string(it.Type), it.Ref, it.Name, it.Quantity, day, dayDate, unit,
	).Scan(&it.ID)
}

func (t *txRepo) RecordInitialStatus(ctx context.Context, orderID, actor int64) error {
	entry := ledger.Entry{OrderID: orderID, Status: ledger.StatusPendiente}
	if actor > 0 {
		entry.ChangedBy = &actor
	}
	_, err := ledger.InsertEntry(ctx, t.tx, entry)
	return err
}

// ListByUser returns the user's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return r.withItems(ctx, rows)
}

// ListAll returns every order, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return r.withItems(ctx, rows)
}

// Get loads one order with its items.
func (r *Repository) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	items, err := r.items(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// Delete removes an order that has not entered fulfillment.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !deletable(ledger.Status(status)) {
			return ErrOrderLocked
		}
		_, err = tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
		return err
	})
}

func deletable(s ledger.Status) bool {
	return s == ledger.StatusPendiente || s == ledger.StatusCancelado
}

func (r *Repository) withItems(ctx context.Context, rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	ids := make([]int64, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *Repository) items(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, item_type, item_id, resolved_name, quantity,
		dia, fecha_dia, unit_price::text
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var (
			it       Item
			itemType string
			day      *string
			dayDate  *time.Time
			unit     *string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &itemType, &it.Ref, &it.Name, &it.Quantity, &day, &dayDate, &unit); err != nil {
			return nil, err
		}
		it.Type = ItemType(itemType)
		if day != nil {
			if wd, ok := clock.ParseWeekday(*day); ok {
				it.Day = &wd
			}
		}
		if dayDate != nil {
			d := clock.DateOf(*dayDate)
			it.DayDate = &d
		}
		if unit != nil {
			price, err := decimal.NewFromString(*unit)
			if err != nil {
				return nil, fmt.Errorf("item %d unit_price: %w", it.ID, err)
			}
			it.UnitPrice = &price
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o        Order
		total    string
		delivery time.Time
		status   string
	)
	err := row.Scan(&o.ID, &o.UserID, &total, &o.PaymentMethod, &o.Observations, &o.ReceiptURL,
		&delivery, &status, &o.MenuType, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("order %d total: %w", o.ID, err)
	}
	o.DeliveryDate = clock.DateOf(delivery)
	o.Status = ledger.Status(status)
	return &o, nil
}
