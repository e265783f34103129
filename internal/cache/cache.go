package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
)

// DefaultTTL bounds how stale a cached result page may get before the engine
// is asked again.
const DefaultTTL = 60 * time.Second

// QueryCache caches result pages in Redis, keyed by a hash of the compiled
// query. Compilation is deterministic, so equal filter states from any entry
// point share one cache entry. Cache problems only cost a miss; they never
// fail a search.
type QueryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a query cache. A non-positive ttl falls back to DefaultTTL.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *QueryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QueryCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get looks up a cached result page for the given compiled query.
func (c *QueryCache) Get(ctx context.Context, q *domain.CompiledQuery, collection string) (*domain.ResultPage, bool) {
	key, err := cacheKey(q, collection)
	if err != nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "query cache read failed",
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var page domain.ResultPage
	if err := json.Unmarshal(raw, &page); err != nil {
		c.logger.WarnContext(ctx, "query cache entry corrupt, ignoring",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	return &page, true
}

// Set stores a result page under the compiled query's key.
func (c *QueryCache) Set(ctx context.Context, q *domain.CompiledQuery, collection string, page *domain.ResultPage) {
	key, err := cacheKey(q, collection)
	if err != nil {
		return
	}

	raw, err := json.Marshal(page)
	if err != nil {
		c.logger.WarnContext(ctx, "query cache marshal failed",
			slog.String("error", err.Error()),
		)
		return
	}

	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "query cache write failed",
			slog.String("error", err.Error()),
		)
	}
}

// cacheKey hashes the canonical JSON form of the compiled query plus the
// target collection.
func cacheKey(q *domain.CompiledQuery, collection string) (string, error) {
	raw, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append(raw, []byte("|"+collection)...))
	return "search:query:" + hex.EncodeToString(sum[:]), nil
}
