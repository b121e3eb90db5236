package step

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "nodeflow:steps:"

// RedisJournal keeps each run's steps in one redis hash that expires after ttl.
type RedisJournal struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisJournal(client redis.UniversalClient, ttl time.Duration) *RedisJournal {
	return &RedisJournal{client: client, ttl: ttl}
}

// DialRedisJournal connects to the redis instance at url and verifies the connection.
func DialRedisJournal(ctx context.Context, url string, ttl time.Duration) (*RedisJournal, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisJournal(client, ttl), nil
}

func (j *RedisJournal) LoadStep(ctx context.Context, runID, key string) ([]byte, bool, error) {
	result, err := j.client.HGet(ctx, redisKeyPrefix+runID, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, err
	}

	return result, true, nil
}

func (j *RedisJournal) SaveStep(ctx context.Context, runID, key string, result []byte) error {
	hash := redisKeyPrefix + runID

	pipe := j.client.TxPipeline()
	pipe.HSetNX(ctx, hash, key, result)

	if j.ttl > 0 {
		pipe.Expire(ctx, hash, j.ttl)
	}

	_, err := pipe.Exec(ctx)

	return err
}

func (j *RedisJournal) Close() error {
	return j.client.Close()
}
