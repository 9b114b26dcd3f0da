package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/commercekit/fulfillment-engine/internal/fulfillment"
	"github.com/commercekit/fulfillment-engine/internal/models"
)

// CachedReader wraps the datastore reader with a Redis cache on the hot
// pricing lookup. Entries expire on TTL; the pricing path tolerates stale
// stock figures, so writes never invalidate explicitly.
type CachedReader struct {
	fulfillment.Reader
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCachedReader connects to Redis and wraps the inner reader.
func NewCachedReader(inner fulfillment.Reader, addr string, ttl time.Duration) (*CachedReader, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("✅ Connected to Redis catalog cache")
	return &CachedReader{Reader: inner, client: client, ttl: ttl}, nil
}

// GetProduct serves from cache when possible. Concurrent misses for the same
// product are collapsed into a single database read.
func (c *CachedReader) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	key := "product:" + productID

	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var p models.Product
		if err := json.Unmarshal([]byte(val), &p); err == nil {
			return &p, nil
		}
		// Corrupt entry, fall through to the database.
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("⚠️ cache read failed for %s: %v", key, err)
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		product, err := c.Reader.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if product != nil {
			if data, err := json.Marshal(product); err == nil {
				if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
					log.Printf("⚠️ cache write failed for %s: %v", key, err)
				}
			}
		}
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Product), nil
}

// Close closes the Redis connection.
func (c *CachedReader) Close() error {
	return c.client.Close()
}
