// Package cache keeps catalog snapshots in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	domain "storefront/backoffice/internal/domain/product"
	"storefront/backoffice/internal/infrastructure/circuitbreaker"
	usecase "storefront/backoffice/internal/usecase/product"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// The current snapshot lives under catalog:snapshot:<generation>. Invalidate
// bumps the generation, so a snapshot read from the store before a mutation
// is written under a key nobody reads any more and simply expires.
const (
	generationKey  = "catalog:generation"
	snapshotPrefix = "catalog:snapshot:"
)

// unknownGeneration is handed out when the generation could not be read;
// Store ignores it.
const unknownGeneration int64 = -1

func snapshotKey(generation int64) string {
	return snapshotPrefix + strconv.FormatInt(generation, 10)
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// CatalogCache stores the full product list as one JSON value.
type CatalogCache struct {
	client  redis.Cmdable
	ttl     time.Duration
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
}

var _ usecase.SnapshotCache = (*CatalogCache)(nil)

// NewCatalogCache wraps client. Calls stop for 30s after five consecutive failures.
func NewCatalogCache(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	return &CatalogCache{
		client:  client,
		ttl:     ttl,
		breaker: circuitbreaker.New(5, 30*time.Second),
		logger:  logger,
	}
}

// Load returns the snapshot for the current generation. Misses and errors
// both report false.
func (c *CatalogCache) Load(ctx context.Context) ([]*domain.Product, int64, bool) {
	generation := unknownGeneration
	var data []byte
	err := c.breaker.Execute(func() error {
		current, err := c.client.Get(ctx, generationKey).Int64()
		switch {
		case errors.Is(err, redis.Nil):
			current = 0
		case err != nil:
			return err
		}
		generation = current

		data, err = c.client.Get(ctx, snapshotKey(generation)).Bytes()
		if errors.Is(err, redis.Nil) {
			// A miss is not a failure of the dependency.
			return nil
		}
		return err
	})
	if err != nil {
		c.logFailure("load", err)
		return nil, unknownGeneration, false
	}
	if data == nil {
		return nil, generation, false
	}

	var products []*domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		c.logger.Warn("Discarding corrupt catalog snapshot", zap.Error(err))
		return nil, generation, false
	}
	return products, generation, true
}

// Store caches the snapshot under generation for the configured TTL.
func (c *CatalogCache) Store(ctx context.Context, generation int64, products []*domain.Product) {
	if generation < 0 {
		return
	}
	data, err := json.Marshal(products)
	if err != nil {
		c.logger.Warn("Failed to encode catalog snapshot", zap.Error(err))
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, snapshotKey(generation), data, c.ttl).Err()
	})
	if err != nil {
		c.logFailure("store", err)
	}
}

// Invalidate moves to a new generation and drops the previous snapshot.
// When Redis cannot be reached the cached snapshot stays visible until its
// TTL runs out.
func (c *CatalogCache) Invalidate(ctx context.Context) {
	err := c.breaker.Execute(func() error {
		next, err := c.client.Incr(ctx, generationKey).Result()
		if err != nil {
			return err
		}
		return c.client.Del(ctx, snapshotKey(next-1)).Err()
	})
	if err != nil {
		c.logFailure("invalidate", err)
	}
}

func (c *CatalogCache) logFailure(op string, err error) {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		c.logger.Debug("Catalog cache skipped", zap.String("op", op), zap.String("breaker", c.breaker.State().String()))
		return
	}
	c.logger.Warn("Catalog cache error", zap.String("op", op), zap.Error(err))
}
