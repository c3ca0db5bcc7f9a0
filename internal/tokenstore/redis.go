package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores each client as one hash whose TTL slides on every write.
type RedisKV struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisKV(client redis.UniversalClient) *RedisKV {
	return &RedisKV{client: client, prefix: "portal:store:"}
}

func (r *RedisKV) key(clientID string) string {
	return r.prefix + clientID
}

func (r *RedisKV) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	v, err := r.client.HGet(ctx, r.key(clientID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, clientID string, values map[string]string, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]any, 0, len(values)*2)
	for k, v := range values {
		args = append(args, k, v)
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key(clientID), args...)
	pipe.Expire(ctx, r.key(clientID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisKV) Delete(ctx context.Context, clientID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.HDel(ctx, r.key(clientID), keys...).Err()
}

func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
