package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockwatch/internal/storage"
)

const latestKey = "stockwatch:latest_row"

// LatestCache mirrors the most recently appended row in Redis so read-heavy
// consumers can serve "latest" without touching PostgreSQL. Best effort:
// callers fall back to the store when the cache misses or errors.
type LatestCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects a LatestCache to the given Redis instance.
func New(addr string, db int, ttl time.Duration, logger zerolog.Logger) *LatestCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	return &LatestCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "latest_cache").Logger(),
	}
}

// Ping checks connectivity.
func (c *LatestCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (c *LatestCache) Close() error {
	return c.client.Close()
}

type cachedRow struct {
	CapturedAt time.Time          `json:"captured_at"`
	Prices     map[string]*string `json:"prices"`
}

// SetLatest stores row under the latest key with the configured TTL.
func (c *LatestCache) SetLatest(ctx context.Context, row storage.Row) error {
	entry := cachedRow{
		CapturedAt: row.CapturedAt,
		Prices:     make(map[string]*string, len(row.Prices)),
	}
	for ticker, price := range row.Prices {
		if price == nil {
			entry.Prices[ticker] = nil
			continue
		}
		s := price.String()
		entry.Prices[ticker] = &s
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cached row: %w", err)
	}
	if err := c.client.Set(ctx, latestKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set latest row: %w", err)
	}
	return nil
}

// GetLatest returns the cached latest row; ok is false on a miss.
func (c *LatestCache) GetLatest(ctx context.Context) (storage.Row, bool, error) {
	payload, err := c.client.Get(ctx, latestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return storage.Row{}, false, nil
	}
	if err != nil {
		return storage.Row{}, false, fmt.Errorf("get latest row: %w", err)
	}

	var entry cachedRow
	if err := json.Unmarshal(payload, &entry); err != nil {
		return storage.Row{}, false, fmt.Errorf("unmarshal cached row: %w", err)
	}

	row := storage.Row{
		CapturedAt: entry.CapturedAt,
		Prices:     make(map[string]*decimal.Decimal, len(entry.Prices)),
	}
	for ticker, raw := range entry.Prices {
		if raw == nil {
			row.Prices[ticker] = nil
			continue
		}
		value, convErr := decimal.NewFromString(*raw)
		if convErr != nil {
			return storage.Row{}, false, fmt.Errorf("parse cached price for %s: %w", ticker, convErr)
		}
		row.Prices[ticker] = &value
	}
	return row, true, nil
}
