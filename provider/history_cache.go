package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	coreredis "github.com/onchaincommerce/minibet/db/redis"
	"github.com/onchaincommerce/minibet/game"
)

// CachedPage is a history page as stored in Redis.
type CachedPage struct {
	Records  []game.WinRecord `json:"records"`
	HasMore  bool             `json:"hasMore"`
	StoredAt time.Time        `json:"storedAt"`
}

// HistoryCache keeps explorer history pages in Redis for a short TTL.
type HistoryCache struct {
	redis   *coreredis.Client
	network string
	ttl     time.Duration
	logger  zerolog.Logger
}

// NewHistoryCache creates a Redis-backed page cache.
func NewHistoryCache(redisClient *coreredis.Client, network string, ttl time.Duration, logger zerolog.Logger) *HistoryCache {
	return &HistoryCache{
		redis:   redisClient,
		network: network,
		ttl:     ttl,
		logger:  logger.With().Str("component", "history_cache").Logger(),
	}
}

// PageKey is the Redis key of one player's history page.
func PageKey(network, player string, page int) string {
	return fmt.Sprintf("minibet:history:%s:%s:%d", network, strings.ToLower(player), page)
}

// LoadPage returns a cached page. The bool is false on a miss.
func (c *HistoryCache) LoadPage(ctx context.Context, player string, page int) ([]game.WinRecord, bool, bool) {
	key := PageKey(c.network, player, page)
	var cached CachedPage
	if err := c.redis.GetJSON(ctx, key, &cached); err != nil {
		if !errors.Is(err, coreredis.ErrNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("History cache read failed")
		}
		return nil, false, false
	}
	return cached.Records, cached.HasMore, true
}

// StorePage caches a page. Failures are logged and otherwise ignored.
func (c *HistoryCache) StorePage(ctx context.Context, player string, page int, records []game.WinRecord, hasMore bool) {
	key := PageKey(c.network, player, page)
	err := c.redis.SetJSON(ctx, key, CachedPage{
		Records:  records,
		HasMore:  hasMore,
		StoredAt: time.Now().UTC(),
	}, c.ttl)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("History cache write failed")
	}
}

// Invalidate drops every cached page of player, e.g. after a new spin lands.
func (c *HistoryCache) Invalidate(ctx context.Context, player string) {
	prefix := fmt.Sprintf("minibet:history:%s:%s:", c.network, strings.ToLower(player))
	n, err := c.redis.DeleteByPrefix(ctx, prefix)
	if err != nil {
		c.logger.Warn().Err(err).Str("prefix", prefix).Msg("History cache invalidation failed")
		return
	}
	c.logger.Debug().Int("deleted", n).Str("player", player).Msg("History cache invalidated")
}
