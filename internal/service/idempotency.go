package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// IdempotencyConfig tunes record lifetime and cleanup.
type IdempotencyConfig struct {
	TTL             time.Duration
	CleanupGrace    time.Duration
	CleanupInterval time.Duration
}

// IdempotencyGuard binds client keys to the first outcome produced for them.
// Lookups read the Redis cache first and fall through to the store.
type IdempotencyGuard struct {
	repo  ports.IdempotencyRepository
	cache ports.IdempotencyCache
	cfg   IdempotencyConfig
	now   func() time.Time
	log   zerolog.Logger

	lastCleanup atomic.Int64
	cleanups    sync.WaitGroup
}

// NewIdempotencyGuard creates a guard. cache may be nil.
func NewIdempotencyGuard(repo ports.IdempotencyRepository, cache ports.IdempotencyCache, cfg IdempotencyConfig, log zerolog.Logger) *IdempotencyGuard {
	if cfg.TTL <= 0 {
		cfg.TTL = domain.DefaultIdempotencyTTL
	}
	return &IdempotencyGuard{
		repo:  repo,
		cache: cache,
		cfg:   cfg,
		now:   time.Now,
		log:   log,
	}
}

// Lookup returns the replayable record for key, or nil on a miss. A key
// bound to another endpoint or payload, or an expired key, yields a
// rejection. The error return is reserved for store failures.
func (g *IdempotencyGuard) Lookup(ctx context.Context, key, endpoint, requestHash string) (*domain.IdempotencyRecord, *apperror.AppError, error) {
	g.maybeCleanup()

	rec, err := g.fetch(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, nil
	}

	switch {
	case rec.Endpoint != endpoint:
		return nil, apperror.ErrIdempotencyEndpointConflict(), nil
	case rec.RequestHash != requestHash:
		return nil, apperror.ErrIdempotencyPayloadConflict(), nil
	case rec.Expired(g.now()):
		return nil, apperror.ErrIdempotencyExpired(), nil
	}
	return rec, nil, nil
}

func (g *IdempotencyGuard) fetch(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	if g.cache != nil {
		rec, err := g.cache.Get(ctx, key)
		if err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if rec != nil {
			return rec, nil
		}
	}

	rec, err := g.repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("db idempotency check: %w", err)
	}
	if rec != nil {
		g.Cache(ctx, rec)
	}
	return rec, nil
}

// Record stores the outcome for key. With a non-nil tx the record commits
// together with the ledger writes. Losing a race returns
// domain.ErrIdempotencyKeyExists.
func (g *IdempotencyGuard) Record(ctx context.Context, tx ports.Tx, key, endpoint, requestHash string, code int, body []byte) (*domain.IdempotencyRecord, error) {
	now := g.now().UTC().Truncate(time.Microsecond)
	rec := &domain.IdempotencyRecord{
		Key:          key,
		Endpoint:     endpoint,
		RequestHash:  requestHash,
		ResponseCode: code,
		ResponseBody: body,
		CreatedAt:    now,
		ExpiresAt:    now.Add(g.cfg.TTL),
	}
	if err := g.repo.Create(ctx, tx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Cache writes rec to Redis for its remaining lifetime. Failures are logged.
func (g *IdempotencyGuard) Cache(ctx context.Context, rec *domain.IdempotencyRecord) {
	if g.cache == nil {
		return
	}
	ttl := rec.ExpiresAt.Sub(g.now())
	if ttl <= 0 {
		return
	}
	if err := g.cache.Set(ctx, rec, ttl); err != nil {
		g.log.Warn().Err(err).Str("key", rec.Key).Msg("failed to cache idempotency in redis")
	}
}

// maybeCleanup starts a background purge of long-expired records, at most
// once per CleanupInterval.
func (g *IdempotencyGuard) maybeCleanup() {
	if g.cfg.CleanupInterval <= 0 {
		return
	}
	now := g.now()
	last := g.lastCleanup.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < g.cfg.CleanupInterval {
		return
	}
	if !g.lastCleanup.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	cutoff := now.Add(-g.cfg.CleanupGrace)
	g.cleanups.Add(1)
	go func() {
		defer g.cleanups.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := g.repo.DeleteExpired(ctx, cutoff)
		if err != nil {
			g.log.Warn().Err(err).Msg("idempotency cleanup failed")
			return
		}
		if n > 0 {
			g.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("expired idempotency keys removed")
		}
	}()
}

// Wait blocks until running cleanups finish.
func (g *IdempotencyGuard) Wait() {
	g.cleanups.Wait()
}
