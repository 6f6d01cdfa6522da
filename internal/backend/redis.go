package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/web3-frozen/helium-monitor/internal/httpclient"
)

const redisKeyPrefix = "helium:cache:"

// RedisStore shares cache entries between processes. Keys expire after the
// retention window, so nothing outlives it.
type RedisStore struct {
	rdb       *redis.Client
	retention time.Duration
}

type redisEntry struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	FetchedAt  time.Time   `json:"fetched_at"`
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL, password string, retention time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{rdb: rdb, retention: retention}, nil
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var re redisEntry
	if err := json.Unmarshal(data, &re); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return Entry{
		Key:       key,
		Response:  &httpclient.Response{StatusCode: re.StatusCode, Header: re.Header, Body: re.Body},
		FetchedAt: re.FetchedAt,
	}, true, nil
}

func (s *RedisStore) Set(ctx context.Context, e Entry) error {
	if e.Response == nil {
		return fmt.Errorf("cache entry %s has no response", e.Key)
	}
	data, err := json.Marshal(redisEntry{
		StatusCode: e.Response.StatusCode,
		Header:     e.Response.Header,
		Body:       e.Response.Body,
		FetchedAt:  e.FetchedAt,
	})
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", e.Key, err)
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+e.Key, data, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", e.Key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, redisKeyPrefix+key).Err()
}

// Close shuts down the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
