// Package cache holds the redis-backed read caches. Caching is an
// optimization only: every failure degrades to a direct database read
// and is logged, never surfaced.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/musiccy/music-svc/internal/domain"
)

const topSongsKey = "music-svc:songs:top"

// TopSongs caches the top-songs listing. A nil *TopSongs disables
// caching entirely.
type TopSongs struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTopSongs wraps a redis client. Returns nil when client is nil so
// callers can wire the cache unconditionally.
func NewTopSongs(client *redis.Client, ttl time.Duration, logger *zap.Logger) *TopSongs {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopSongs{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached listing and whether it was present.
func (c *TopSongs) Get(ctx context.Context) ([]domain.Song, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, topSongsKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache: top songs read failed", zap.Error(err))
		}
		return nil, false
	}
	var songs []domain.Song
	if err := json.Unmarshal(payload, &songs); err != nil {
		c.logger.Warn("cache: top songs payload corrupt", zap.Error(err))
		return nil, false
	}
	return songs, true
}

// Set stores the listing for the configured TTL.
func (c *TopSongs) Set(ctx context.Context, songs []domain.Song) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(songs)
	if err != nil {
		c.logger.Warn("cache: top songs marshal failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, topSongsKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("cache: top songs write failed", zap.Error(err))
	}
}

// Invalidate drops the cached listing; called after any committed
// song or rating mutation.
func (c *TopSongs) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, topSongsKey).Err(); err != nil {
		c.logger.Warn("cache: top songs invalidate failed", zap.Error(err))
	}
}
