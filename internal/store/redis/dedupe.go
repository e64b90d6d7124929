// Package redis implements the dedupe store on SET NX.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "paybridge:dedupe:"

// Dedupe claims keys with SET NX so concurrent deliveries across replicas
// race on Redis, not in process memory. Keys expire after ttl, which must
// outlast the longest provider redelivery window.
type Dedupe struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewDedupe(rdb *goredis.Client, ttl time.Duration) *Dedupe {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Dedupe{rdb: rdb, ttl: ttl}
}

// Open connects and pings, returning the client for shutdown.
func Open(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (d *Dedupe) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe claim %s: %w", key, err)
	}
	return ok, nil
}

func (d *Dedupe) Release(ctx context.Context, key string) error {
	if err := d.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("dedupe release %s: %w", key, err)
	}
	return nil
}
