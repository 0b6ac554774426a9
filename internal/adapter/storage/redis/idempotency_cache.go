package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache. Records are stored as
// JSON under a lowercased key so lookups match the database's
// case-insensitive comparison.
type IdempotencyCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client goredis.UniversalClient) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "idempotency:",
	}
}

func (c *IdempotencyCache) key(k string) string {
	return c.prefix + strings.ToLower(k)
}

// Get returns the cached record, or nil, nil on a miss.
func (c *IdempotencyCache) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}

	var rec domain.IdempotencyRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("redis idempotency decode: %w", err)
	}
	return &rec, nil
}

// Set caches rec for ttl. A non-positive ttl is a no-op.
func (c *IdempotencyCache) Set(ctx context.Context, rec *domain.IdempotencyRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis idempotency encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(rec.Key), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}
