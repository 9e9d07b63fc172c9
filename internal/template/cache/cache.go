// Package cache holds the resolver cache: resolution of the active template
// for a store is the hot read path (every visit submission hits it), while
// template mutations are rare. Entries are keyed under a generation counter;
// any lifecycle mutation bumps the generation, so stale resolutions are
// unreachable rather than merely expiring.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	platformredis "patrol/internal/platform/redis"
	"patrol/internal/template/models"
	id "patrol/pkg/domain"
)

const generationKey = "patrol:resolver:gen"

// Resolver caches resolved active templates in Redis.
type Resolver struct {
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewResolver creates a resolver cache. A nil redis client yields a nil
// *Resolver, which every method treats as cache-disabled.
func NewResolver(client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *Resolver {
	if client == nil {
		return nil
	}
	return &Resolver{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached resolution for (store, format), if any, together
// with the generation it was read under. On a miss the caller passes that
// generation back to Set, so an entry resolved from a pre-mutation read is
// written under the pre-mutation generation and a concurrent Invalidate
// orphans it. Cache failures degrade to a miss; resolution must never fail
// because Redis did.
func (c *Resolver) Get(ctx context.Context, storeID id.StoreID, format id.StoreFormat) (*models.FormTemplate, int64, bool) {
	if c == nil {
		return nil, 0, false
	}
	gen := c.generation(ctx)
	key := entryKey(gen, storeID, format)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, gen, false
	}
	var t models.FormTemplate
	if err := json.Unmarshal(payload, &t); err != nil {
		c.logger.WarnContext(ctx, "resolver cache entry corrupt, ignoring", "key", key, "error", err)
		return nil, gen, false
	}
	return &t, gen, true
}

// Set stores a resolution under the generation observed by the Get that
// missed. Re-reading the generation here would let a resolution computed
// before a concurrent Invalidate survive the bump.
func (c *Resolver) Set(ctx context.Context, storeID id.StoreID, format id.StoreFormat, t *models.FormTemplate, gen int64) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		c.logger.WarnContext(ctx, "resolver cache marshal failed", "error", err)
		return
	}
	key := entryKey(gen, storeID, format)
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "resolver cache set failed", "key", key, "error", err)
	}
}

// Invalidate bumps the generation counter, orphaning every cached entry.
// Orphaned keys expire via their TTL.
func (c *Resolver) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		c.logger.WarnContext(ctx, "resolver cache invalidation failed", "error", err)
	}
}

// generation reads the current counter. A missing counter is generation zero;
// a Redis failure also degrades to zero, which at worst writes an entry only
// a healthy generation-zero read can see.
func (c *Resolver) generation(ctx context.Context) int64 {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil {
		return 0
	}
	return gen
}

func entryKey(gen int64, storeID id.StoreID, format id.StoreFormat) string {
	return fmt.Sprintf("patrol:resolver:%d:%s:%s", gen, storeID, format)
}
