package redis

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func testRecord(key string) *domain.IdempotencyRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.IdempotencyRecord{
		Key:          key,
		Endpoint:     "deposit:550e8400-e29b-41d4-a716-446655440000",
		RequestHash:  "hash",
		ResponseCode: 200,
		ResponseBody: []byte(`{"status":"success","code":200}`),
		CreatedAt:    now,
		ExpiresAt:    now.Add(24 * time.Hour),
	}
}

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	result, err := cache.Get(ctx, "Key-001")
	assert.NoError(t, err)
	assert.Nil(t, result)

	rec := testRecord("Key-001")
	require.NoError(t, cache.Set(ctx, rec, 24*time.Hour))

	result, err = cache.Get(ctx, "key-001")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, rec.Endpoint, result.Endpoint)
	assert.Equal(t, rec.ResponseBody, result.ResponseBody)
	assert.True(t, rec.ExpiresAt.Equal(result.ExpiresAt))
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testRecord("key-002"), time.Second))
	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, "key-002")
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestIdempotencyCache_NonPositiveTTL(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)

	require.NoError(t, cache.Set(context.Background(), testRecord("key-003"), 0))
	assert.False(t, s.Exists("idempotency:key-003"))
}

func TestIdempotencyCache_CorruptValue(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	require.NoError(t, s.Set("idempotency:bad", "not json"))

	_, err := cache.Get(context.Background(), "bad")
	assert.ErrorContains(t, err, "decode")
}

func TestIdempotencyCache_Unavailable(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	s.Close()

	_, err := cache.Get(context.Background(), "any")
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	s, client := newTestClient(t)
	h := NewHealthCheck(client)

	assert.Equal(t, "redis", h.Name())
	assert.NoError(t, h.Ping(context.Background()))

	s.Close()
	assert.Error(t, h.Ping(context.Background()))
}
