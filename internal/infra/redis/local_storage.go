package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// LocalStorage keeps the session's key/value pairs in one Redis hash per
// profile:
//
//	HSET learnlab:storage:{profile} {key} {value}
//
// The hash expires ttl after the last write, matching the cookie lifetime.
type LocalStorage struct {
	client  *redis.Client
	profile string
	ttl     time.Duration
}

func NewLocalStorage(client *redis.Client, profile string, ttl time.Duration) *LocalStorage {
	return &LocalStorage{client: client, profile: profile, ttl: ttl}
}

func (s *LocalStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.hashKey(), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *LocalStorage) Set(ctx context.Context, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.hashKey(), key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.hashKey(), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *LocalStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.HDel(ctx, s.hashKey(), keys...).Err()
}

func (s *LocalStorage) hashKey() string {
	return "learnlab:storage:" + s.profile
}
