package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// State is what a guard key says about a callback.
type State int

const (
	// StateAcquired means the caller now owns the key and must Complete or
	// Release it.
	StateAcquired State = iota
	StateInProgress
	StateCompleted
)

const (
	valueInProgress = "IN_PROGRESS"
	valueCompleted  = "COMPLETED"

	// Short, so a crashed worker never blocks redelivery for long.
	InProgressExpiry = 10 * time.Second
	CompletedExpiry  = 24 * time.Hour
)

// RedisGuard marks callbacks in progress / completed in Redis.
type RedisGuard struct {
	client *redis.Client
	prefix string
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client, prefix: "payment-callback:"}
}

// Connect opens a client and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (g *RedisGuard) key(k string) string {
	return g.prefix + k
}

// Acquire sets the key to IN_PROGRESS with SET NX unless it already exists.
func (g *RedisGuard) Acquire(ctx context.Context, k string) (State, error) {
	key := g.key(k)

	set, err := g.client.SetNX(ctx, key, valueInProgress, InProgressExpiry).Result()
	if err != nil {
		return StateAcquired, fmt.Errorf("redis SETNX error: %w", err)
	}
	if set {
		return StateAcquired, nil
	}

	current, err := g.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; let the caller through.
		return StateAcquired, nil
	}
	if err != nil {
		return StateAcquired, fmt.Errorf("redis GET error: %w", err)
	}
	if current == valueCompleted {
		return StateCompleted, nil
	}
	return StateInProgress, nil
}

// Complete marks the key COMPLETED with a long expiry.
func (g *RedisGuard) Complete(ctx context.Context, k string) error {
	return g.client.Set(ctx, g.key(k), valueCompleted, CompletedExpiry).Err()
}

// Release drops an IN_PROGRESS key so the next delivery is processed.
func (g *RedisGuard) Release(ctx context.Context, k string) error {
	return g.client.Del(ctx, g.key(k)).Err()
}
