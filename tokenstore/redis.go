package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/hosilim/dashboard-session/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ Backend = (*RedisBackend)(nil)

// RedisBackend stores values under prefix+key. An unreachable server makes every call
// fail fast, which the Store treats as "no session".
type RedisBackend struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// DialRedis builds a client without contacting the server.
func DialRedis(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   -1,
	})
}

func NewRedisBackend(client redis.UniversalClient, prefix string) (*RedisBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("[NewRedisBackend] client is required")
	}
	return &RedisBackend{client: client, prefix: prefix, timeout: 2 * time.Second}, nil
}

func (b *RedisBackend) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	v, err := b.client.Get(ctx, b.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("[RedisBackend.Get] %w", err)
	}
	return v, nil
}

func (b *RedisBackend) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := b.client.Set(ctx, b.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("[RedisBackend.Set] %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := b.client.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("[RedisBackend.Delete] %w", err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
