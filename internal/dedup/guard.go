package dedup

import (
	"context"
	"fmt"
	"time"

	"compass/internal/config"
	"compass/internal/constants"
	"compass/internal/logger"
	"compass/pkg/metrics"
)

// Guard suppresses republication of an event ID inside the TTL window.
// Event IDs are deterministic, so a sweep that re-runs over the same inputs
// claims the same keys.
type Guard struct {
	store   Store
	prefix  string
	ttl     time.Duration
	onError string
	service string
	logger  logger.Logger
}

// NewGuard returns nil when dedup is disabled or store is nil; a nil Guard
// claims every ID.
func NewGuard(store Store, cfg config.DedupConfig, service string, log logger.Logger) *Guard {
	if !cfg.Enabled || store == nil {
		return nil
	}
	return &Guard{
		store:   store,
		prefix:  cfg.KeyPrefix,
		ttl:     time.Duration(cfg.TTLSeconds) * time.Second,
		onError: cfg.OnRedisError,
		service: service,
		logger:  log,
	}
}

func (g *Guard) key(id string) string {
	return g.prefix + id
}

// Claim reports whether id is new and may be published. Store failures
// follow the configured on_redis_error policy.
func (g *Guard) Claim(ctx context.Context, id string) (bool, error) {
	if g == nil {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ok, err := g.store.SetNX(ctx, g.key(id), time.Now().Unix(), g.ttl)
	if err != nil {
		metrics.DedupChecksTotal.WithLabelValues("error").Inc()
		if g.onError == constants.FallbackFail {
			return false, fmt.Errorf("dedup check for %s: %w", id, err)
		}
		metrics.FallbackUsageTotal.WithLabelValues(g.service, constants.FallbackAllow, "redis_error").Inc()
		g.logger.WarnwCtx(ctx, "Dedup store unavailable, publishing anyway", "id", id, "error", err)
		return true, nil
	}

	if ok {
		metrics.DedupChecksTotal.WithLabelValues("new").Inc()
	} else {
		metrics.DedupChecksTotal.WithLabelValues("duplicate").Inc()
	}
	return ok, nil
}

// Release drops a claim after a failed publish so a later attempt can retry.
func (g *Guard) Release(ctx context.Context, id string) {
	if g == nil {
		return
	}
	if err := g.store.Del(ctx, g.key(id)); err != nil {
		g.logger.WarnwCtx(ctx, "Failed to release dedup claim", "id", id, "error", err)
	}
}
