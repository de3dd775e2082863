// Package catalog resolves menu references to display names. The menu tables
// are maintained elsewhere; this package only reads them.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Kind selects the menu table a reference points into.
type Kind string

const (
	KindDaily Kind = "daily"
	KindFixed Kind = "fijo"
	KindExtra Kind = "extra"
)

// ErrUnknownKind is returned for kinds without a backing table.
var ErrUnknownKind = errors.New("catalog: unknown item kind")

// Resolver returns the display name of a menu entry. ok is false when the
// entry does not exist.
type Resolver interface {
	Name(ctx context.Context, kind Kind, id int64) (name string, ok bool, err error)
}

// Repository reads names from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Name implements Resolver.
func (r *Repository) Name(ctx context.Context, kind Kind, id int64) (string, bool, error) {
	query, err := nameQuery(kind)
	if err != nil {
		return "", false, err
	}
	var name string
	if err := r.pool.QueryRow(ctx, query, id).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("catalog %s %d: %w", kind, id, err)
	}
	return name, true, nil
}

func nameQuery(kind Kind) (string, error) {
	switch kind {
	case KindDaily:
		return `SELECT name FROM menu_daily WHERE id = $1`, nil
	case KindFixed:
		return `SELECT name FROM menu_fixed WHERE id = $1`, nil
	case KindExtra:
		return `SELECT name FROM menu_extras WHERE id = $1`, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
