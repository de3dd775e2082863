package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Versioned is a JSON cache whose keys embed a per-namespace version counter.
// Bumping the counter invalidates every key of the namespace at once.
type Versioned struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewVersioned instantiates the cache helper. A nil client disables caching.
func NewVersioned(client *redis.Client, namespace string, ttl time.Duration) *Versioned {
	return &Versioned{client: client, namespace: namespace, ttl: ttl}
}

func (c *Versioned) versionKey() string {
	return c.namespace + ":version"
}

// Version returns the current cache version, initialising when missing.
func (c *Versioned) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, c.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, c.versionKey(), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, c.versionKey()).Int64()
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, c.versionKey(), ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// Key composes a namespaced key carrying the current version.
func (c *Versioned) Key(ctx context.Context, parts ...string) (string, error) {
	ns := ""
	if c != nil {
		ns = c.namespace
	}
	joined := strings.Join(append([]string{ns}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON loads a cached value into dest or populates it using the loader.
// Redis failures degrade to calling the loader directly.
func (c *Versioned) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	cacheable := c != nil && c.client != nil
	if cacheable {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			cacheable = false
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if cacheable {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates the namespace by incrementing its version.
func (c *Versioned) Bump(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	return c.client.Incr(ctx, c.versionKey()).Result()
}
