package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyTTL = 24 * time.Hour

// Idempotency marks keys exactly once across concurrent callers, backed by
// Redis SETNX. The ledger uses it to refuse a reservation request that
// already committed, the notification side to drop redelivered events.
type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// SetIfAbsent marks key and reports whether this caller was first.
func (i *Idempotency) SetIfAbsent(ctx context.Context, key string) (bool, error) {
	return i.client.SetNX(ctx, key, 1, idempotencyTTL).Result()
}

// Delete unmarks key so it can be acquired again.
func (i *Idempotency) Delete(ctx context.Context, key string) error {
	return i.client.Del(ctx, key).Err()
}
