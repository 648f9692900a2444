package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBlobStore persists index snapshots in Redis.
type RedisBlobStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configuration for the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "graphsearch:"
	TTL      time.Duration // Expiration for snapshots, default 0 (no expiration)
}

// NewRedisBlobStore creates a Redis-backed blob store.
func NewRedisBlobStore(opts RedisOptions) *RedisBlobStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "graphsearch:"
	}

	return &RedisBlobStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

func (s *RedisBlobStore) blobKey(key string) string {
	return fmt.Sprintf("%sindex:%s", s.prefix, key)
}

// Save stores a snapshot blob under key.
func (s *RedisBlobStore) Save(ctx context.Context, key string, blob []byte) error {
	if err := s.client.Set(ctx, s.blobKey(key), blob, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save blob to redis: %w", err)
	}
	return nil
}

// Load retrieves a snapshot blob by key.
func (s *RedisBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.blobKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("blob not found: %s", key)
		}
		return nil, fmt.Errorf("failed to load blob from redis: %w", err)
	}
	return data, nil
}

// Close closes the Redis connection.
func (s *RedisBlobStore) Close() error {
	return s.client.Close()
}
