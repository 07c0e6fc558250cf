// Package catalogcache caches product records in Redis in front of a slower
// product source.
package catalogcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
)

const (
	versionKey  = "catalog:version"
	recordsKey  = "catalog:products"
	bumpChannel = "catalog.bump"
)

// Cache wraps a product source with a versioned read-through cache. Bumping
// the version invalidates every cached snapshot at once.
type Cache struct {
	client *redis.Client
	source invoice.ProductSource
	ttl    time.Duration
	logger *slog.Logger
}

// New constructs the cache. A nil client disables caching.
func New(client *redis.Client, source invoice.ProductSource, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, source: source, ttl: ttl, logger: logger}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		if err := c.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey).Int64()
	}
	return ver, err
}

// Products returns cached records or loads and stores them. Redis failures
// degrade to a direct source read.
func (c *Cache) Products(ctx context.Context) ([]catalog.ProductRecord, error) {
	if c.client == nil {
		return c.source.Products(ctx)
	}
	key, err := c.key(ctx)
	if err != nil {
		c.logger.Warn("catalog cache unavailable", slog.Any("error", err))
		return c.source.Products(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var records []catalog.ProductRecord
		if err := json.Unmarshal(payload, &records); err == nil {
			return records, nil
		}
		c.logger.Warn("catalog cache entry corrupt", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("catalog cache read", slog.Any("error", err))
		return c.source.Products(ctx)
	}
	return c.fill(ctx, key)
}

// Warm reloads the source into the current version, replacing any cached
// snapshot.
func (c *Cache) Warm(ctx context.Context) ([]catalog.ProductRecord, error) {
	if c.client == nil {
		return c.source.Products(ctx)
	}
	key, err := c.key(ctx)
	if err != nil {
		return nil, err
	}
	return c.fill(ctx, key)
}

// Bump invalidates the cache by incrementing the version and publishing it.
func (c *Cache) Bump(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return fmt.Errorf("catalogcache: bump: %w", err)
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// Sink wraps an invoice sink so that every stored invoice bumps the cache;
// stock and prices may have moved.
func (c *Cache) Sink(next invoice.Sink) invoice.Sink {
	return bumpingSink{cache: c, next: next}
}

type bumpingSink struct {
	cache *Cache
	next  invoice.Sink
}

func (s bumpingSink) Submit(ctx context.Context, sub invoice.Submission) (invoice.StoredInvoice, error) {
	stored, err := s.next.Submit(ctx, sub)
	if err != nil {
		return stored, err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.cache.logger.Warn("catalog cache bump", slog.Any("error", err))
	}
	return stored, nil
}

func (c *Cache) key(ctx context.Context) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", recordsKey, ver), nil
}

func (c *Cache) fill(ctx context.Context, key string) ([]catalog.ProductRecord, error) {
	records, err := c.source.Products(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write", slog.Any("error", err))
	}
	return records, nil
}
