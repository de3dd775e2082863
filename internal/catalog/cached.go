package catalog

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/cache"
)

type cachedName struct {
	Name  string `json:"name"`
	Found bool   `json:"found"`
}

// Cached memoizes another Resolver in redis. Misses are cached too, so a
// missing entry does not hit the database on every order.
type Cached struct {
	next   Resolver
	cache  *cache.Versioned
	logger *slog.Logger
}

// NewCached wraps next with the versioned cache.
func NewCached(next Resolver, c *cache.Versioned, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, cache: c, logger: logger}
}

// Name implements Resolver.
func (c *Cached) Name(ctx context.Context, kind Kind, id int64) (string, bool, error) {
	key, err := c.cache.Key(ctx, string(kind), strconv.FormatInt(id, 10))
	if err != nil {
		c.logger.Warn("catalog cache unavailable", slog.Any("error", err))
		return c.next.Name(ctx, kind, id)
	}
	var out cachedName
	err = c.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		name, ok, err := c.next.Name(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		return cachedName{Name: name, Found: ok}, nil
	})
	if err != nil {
		return "", false, err
	}
	return out.Name, out.Found, nil
}

// Invalidate drops every cached name.
func (c *Cached) Invalidate(ctx context.Context) error {
	_, err := c.cache.Bump(ctx)
	return err
}
