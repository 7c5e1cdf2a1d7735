package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Deduper records processed event ids with SETNX so redelivered events are
// handled once.
type Deduper struct {
	rdb      *redis.Client
	consumer string
	ttl      time.Duration
}

func NewDeduper(rdb *redis.Client, consumer string) *Deduper {
	return &Deduper{rdb: rdb, consumer: consumer, ttl: TTLDedup}
}

// Claim returns true when the caller is the first to see id.
func (d *Deduper) Claim(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, d.key(id), "1", d.ttl).Result()
}

// Release forgets id so a failed delivery can be retried on redelivery.
func (d *Deduper) Release(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, d.key(id)).Err()
}

func (d *Deduper) key(id string) string {
	return fmt.Sprintf(KeyDedup, d.consumer, id)
}
