package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ikkim/shopcore-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyPrefix = "idempotency:checkout:"
	pendingMarker     = "pending"
)

// IdempotencyStore binds client supplied checkout keys to the order they produced.
// A key is "pending" from Reserve until Complete or Release.
type IdempotencyStore struct {
	client *redis.Client
}

func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func idempotencyKey(key string) string {
	return idempotencyPrefix + key
}

// Reserve claims key for a new checkout. When the key is already taken it
// reports the bound order id, or zero while the first checkout is still running.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (uint, bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyKey(key), pendingMarker, ttl).Result()
	if err != nil {
		logger.Error("Failed to reserve idempotency key", err)
		return 0, false, err
	}
	if ok {
		return 0, true, nil
	}

	val, err := s.client.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return parseReservation(val)
}

func parseReservation(val string) (uint, bool, error) {
	if val == pendingMarker {
		return 0, false, nil
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency value %q: %w", val, err)
	}
	return uint(id), false, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key string, orderID uint, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyKey(key), strconv.FormatUint(uint64(orderID), 10), ttl).Err()
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKey(key)).Err()
}
