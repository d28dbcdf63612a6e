// Package cache stores normalized products in Redis so repeated lookups of
// the same barcode skip the upstream API.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/allergen-risk/internal/model"
)

// ProductCache gets and stores products by identifier.
type ProductCache interface {
	Get(ctx context.Context, identifier string) (*model.ProductInfo, bool, error)
	Set(ctx context.Context, identifier string, p *model.ProductInfo) error
}

// redisClient is the subset of *redis.Client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Redis is a ProductCache backed by Redis.
type Redis struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

// NewRedis connects to the Redis server at url (redis://...) and verifies
// the connection with PING.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "cache: connect to redis at %s", opts.Addr)
	}

	return newRedis(client, ttl), nil
}

func newRedis(client redisClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{client: client, prefix: "allergen-risk:product:", ttl: ttl}
}

// Get returns the cached product. A miss is (nil, false, nil).
func (r *Redis) Get(ctx context.Context, identifier string) (*model.ProductInfo, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+identifier).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", identifier)
	}

	var p model.ProductInfo
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, eris.Wrapf(err, "cache: decode %s", identifier)
	}
	p.Normalize()
	return &p, true, nil
}

// Set stores p with the configured TTL.
func (r *Redis) Set(ctx context.Context, identifier string, p *model.ProductInfo) error {
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", identifier)
	}
	if err := r.client.Set(ctx, r.prefix+identifier, data, r.ttl).Err(); err != nil {
		return eris.Wrapf(err, "cache: set %s", identifier)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
