package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/cache"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/shared"
)

// ErrConfigMissing indicates the price configuration row does not exist.
var ErrConfigMissing = errors.New("price configuration missing")

// Source loads the raw price data.
type Source interface {
	LoadRates(ctx context.Context) (Config, error)
	LoadTartas(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Repository reads prices from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// rates mirrors the stored JSON, where numbers sometimes arrive quoted.
type rates struct {
	Plato             decimal.Decimal `json:"plato"`
	Envio             decimal.Decimal `json:"envio"`
	Postre            decimal.Decimal `json:"postre"`
	Ensalada          decimal.Decimal `json:"ensalada"`
	Proteina          decimal.Decimal `json:"proteina"`
	DescuentoPorPlato decimal.Decimal `json:"descuento_por_plato"`
	UmbralDescuento   decimal.Decimal `json:"umbral_descuento"`
}

// LoadRates reads the "precios" configuration row.
func (r *Repository) LoadRates(ctx context.Context) (Config, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT valor FROM configuraciones WHERE clave = 'precios'`).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Config{}, ErrConfigMissing
		}
		return Config{}, err
	}
	return decodeRates(raw)
}

func decodeRates(raw []byte) (Config, error) {
	var rt rates
	if err := json.Unmarshal(raw, &rt); err != nil {
		return Config{}, fmt.Errorf("decode precios: %w", err)
	}
	return Config{
		Plato:             rt.Plato,
		Envio:             rt.Envio,
		Postre:            rt.Postre,
		Ensalada:          rt.Ensalada,
		Proteina:          rt.Proteina,
		DescuentoPorPlato: rt.DescuentoPorPlato,
		UmbralDescuento:   int(rt.UmbralDescuento.IntPart()),
	}, nil
}

// LoadTartas reads pastry prices keyed by folded name and folded key.
func (r *Repository) LoadTartas(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT "key", nombre, precio::text FROM tartas`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var key, name, price string
		if err := rows.Scan(&key, &name, &price); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("tarta %q: %w", name, err)
		}
		out[shared.Fold(name)] = amount
		if k := shared.Fold(key); k != "" {
			out[k] = amount
		}
	}
	return out, rows.Err()
}

// Store serves price snapshots, coalescing concurrent loads and caching them.
type Store struct {
	source Source
	cache  *cache.Versioned
	logger *slog.Logger
	group  singleflight.Group
}

// NewStore constructs a snapshot store.
func NewStore(source Source, c *cache.Versioned, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{source: source, cache: c, logger: logger}
}

// Snapshot returns the current price configuration. The shared load is
// detached from the caller's cancellation since other callers may be waiting
// on it.
func (s *Store) Snapshot(ctx context.Context) (Config, error) {
	v, err, _ := s.group.Do("snapshot", func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		key, err := s.cache.Key(ctx, "snapshot")
		if err != nil {
			s.logger.Warn("price cache unavailable", slog.Any("error", err))
			return s.load(ctx)
		}
		var cfg Config
		if err := s.cache.FetchJSON(ctx, key, &cfg, s.load); err != nil {
			return nil, err
		}
		return cfg, nil
	})
	if err != nil {
		return Config{}, err
	}
	return v.(Config), nil
}

// Invalidate forces the next Snapshot to reload from the source.
func (s *Store) Invalidate(ctx context.Context) error {
	ver, err := s.cache.Bump(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("price cache invalidated", slog.Int64("version", ver))
	return nil
}

func (s *Store) load(ctx context.Context) (any, error) {
	var (
		cfg    Config
		tartas map[string]decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cfg, err = s.source.LoadRates(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tartas, err = s.source.LoadTartas(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	cfg.Tartas = tartas
	return cfg, nil
}
