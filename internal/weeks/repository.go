package weeks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/clock"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/db"
)

const weekColumns = `id, semana_inicio, semana_fin, habilitado, cierre, dias_habilitados,
	inicio_toma_pedidos, created_at, updated_at`

// Store is the persistence contract of the week service.
type Store interface {
	FindContaining(ctx context.Context, d clock.Date) (*Week, error)
	FindByID(ctx context.Context, id int64) (*Week, error)
	InsertIfAbsent(ctx context.Context, w Week) (*Week, error)
	Upsert(ctx context.Context, w Week) (*Week, error)
	ListActive(ctx context.Context, now time.Time) ([]Week, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) (*Week, error)
	SetCloseAt(ctx context.Context, id int64, closeAt *time.Time) (*Week, error)
	SetDays(ctx context.Context, id int64, days clock.DayEnabled) (*Week, error)
	Backfill(ctx context.Context, id int64, days clock.DayEnabled, intake clock.Date) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockWeek(ctx context.Context, id int64) (*Week, error)
	HasOrdersBetween(ctx context.Context, from, to clock.Date) (bool, error)
	DeleteWeek(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence for weeks.
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

// FindContaining returns the week whose range includes d.
func (r *Repository) FindContaining(ctx context.Context, d clock.Date) (*Week, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+weekColumns+` FROM menu_semana
		WHERE semana_inicio <= $1 AND semana_fin >= $1
		ORDER BY semana_inicio LIMIT 1`, d.Time())
	return scanWeek(row)
}

// FindByID loads one week.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Week, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+weekColumns+` FROM menu_semana WHERE id = $1`, id)
	return scanWeek(row)
}

// InsertIfAbsent inserts w unless a week with the same start exists. Either
// way the stored row is returned, so concurrent callers observe one week.
func (r *Repository) InsertIfAbsent(ctx context.Context, w Week) (*Week, error) {
	days, err := json.Marshal(w.DayEnabled)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO menu_semana
		(semana_inicio, semana_fin, habilitado, cierre, dias_habilitados, inicio_toma_pedidos)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (semana_inicio) DO NOTHING
		RETURNING `+weekColumns,
		w.StartDate.Time(), w.EndDate.Time(), w.Enabled, w.CloseAt, string(days), nullableDate(w.IntakeStart))
	week, err := scanWeek(row)
	if !errors.Is(err, ErrNotFound) {
		return week, err
	}
	row = r.pool.QueryRow(ctx, `SELECT `+weekColumns+` FROM menu_semana WHERE semana_inicio = $1`, w.StartDate.Time())
	return scanWeek(row)
}

// Upsert creates the week or updates its end date and close instant.
func (r *Repository) Upsert(ctx context.Context, w Week) (*Week, error) {
	days, err := json.Marshal(w.DayEnabled)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO menu_semana
		(semana_inicio, semana_fin, habilitado, cierre, dias_habilitados, inicio_toma_pedidos)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (semana_inicio) DO UPDATE
		SET semana_fin = EXCLUDED.semana_fin, cierre = EXCLUDED.cierre, updated_at = now()
		RETURNING `+weekColumns,
		w.StartDate.Time(), w.EndDate.Time(), w.Enabled, w.CloseAt, string(days), nullableDate(w.IntakeStart))
	return scanWeek(row)
}

// ListActive returns enabled weeks whose close instant has not passed.
func (r *Repository) ListActive(ctx context.Context, now time.Time) ([]Week, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+weekColumns+` FROM menu_semana
		WHERE habilitado AND (cierre IS NULL OR cierre >= $1)
		ORDER BY semana_inicio`, now)
	if err != nil {
		return nil, err
	}
	return collectWeeks(rows)
}

// SetEnabled toggles the habilitado flag.
func (r *Repository) SetEnabled(ctx context.Context, id int64, enabled bool) (*Week, error) {
	row := r.pool.QueryRow(ctx, `UPDATE menu_semana SET habilitado = $2, updated_at = now()
		WHERE id = $1 RETURNING `+weekColumns, id, enabled)
	return scanWeek(row)
}

// SetCloseAt replaces the close instant.
func (r *Repository) SetCloseAt(ctx context.Context, id int64, closeAt *time.Time) (*Week, error) {
	row := r.pool.QueryRow(ctx, `UPDATE menu_semana SET cierre = $2, updated_at = now()
		WHERE id = $1 RETURNING `+weekColumns, id, closeAt)
	return scanWeek(row)
}

// SetDays replaces the per-day flags.
func (r *Repository) SetDays(ctx context.Context, id int64, days clock.DayEnabled) (*Week, error) {
	raw, err := json.Marshal(days)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `UPDATE menu_semana SET dias_habilitados = $2::jsonb, updated_at = now()
		WHERE id = $1 RETURNING `+weekColumns, id, string(raw))
	return scanWeek(row)
}

// Backfill fills fields that older rows were created without.
func (r *Repository) Backfill(ctx context.Context, id int64, days clock.DayEnabled, intake clock.Date) error {
	raw, err := json.Marshal(days)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `UPDATE menu_semana
		SET dias_habilitados = COALESCE(dias_habilitados, $2::jsonb),
		    inicio_toma_pedidos = COALESCE(inicio_toma_pedidos, $3),
		    updated_at = now()
		WHERE id = $1`, id, string(raw), nullableDate(intake))
	return err
}

func (t *txRepo) LockWeek(ctx context.Context, id int64) (*Week, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+weekColumns+` FROM menu_semana WHERE id = $1 FOR UPDATE`, id)
	return scanWeek(row)
}

func (t *txRepo) HasOrdersBetween(ctx context.Context, from, to clock.Date) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM orders WHERE fecha_entrega BETWEEN $1 AND $2)`, from.Time(), to.Time()).Scan(&exists)
	return exists, err
}

func (t *txRepo) DeleteWeek(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM menu_semana WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RowQuerier is satisfied by pgx.Tx and *pgxpool.Pool.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LockShared reads week id under FOR SHARE so admin edits and deletion wait
// for the caller's transaction to finish.
func LockShared(ctx context.Context, q RowQuerier, id int64) (*Week, error) {
	row := q.QueryRow(ctx, `SELECT `+weekColumns+` FROM menu_semana WHERE id = $1 FOR SHARE`, id)
	return scanWeek(row)
}

func scanWeek(row pgx.Row) (*Week, error) {
	var (
		w       Week
		start   time.Time
		end     time.Time
		days    []byte
		intake  *time.Time
		closeAt *time.Time
	)
	err := row.Scan(&w.ID, &start, &end, &w.Enabled, &closeAt, &days, &intake, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	w.StartDate = clock.DateOf(start)
	w.EndDate = clock.DateOf(end)
	w.CloseAt = closeAt
	if intake != nil {
		w.IntakeStart = clock.DateOf(*intake)
	}
	if len(days) > 0 {
		if err := json.Unmarshal(days, &w.DayEnabled); err != nil {
			return nil, fmt.Errorf("week %d: decode dias_habilitados: %w", w.ID, err)
		}
	}
	return &w, nil
}

func collectWeeks(rows pgx.Rows) ([]Week, error) {
	defer rows.Close()
	var out []Week
	for rows.Next() {
		w, err := scanWeek(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func nullableDate(d clock.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time()
}
