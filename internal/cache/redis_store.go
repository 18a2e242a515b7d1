package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps entries as JSON documents under a key prefix so several
// gateway replicas share one cache. Payloads come back as generic JSON values.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	cipher    PayloadCipher
}

// PayloadCipher seals serialized entries before they leave the process
type PayloadCipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithCipher encrypts every entry written to Redis
func WithCipher(c PayloadCipher) RedisOption {
	return func(s *RedisStore) {
		s.cipher = c
	}
}

// NewRedisStore wraps a connected client. A positive retention is applied as
// the Redis expiry of every entry.
func NewRedisStore(client *redis.Client, prefix string, retention time.Duration, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: prefix, retention: retention}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DialRedis connects to addr and verifies the connection
func DialRedis(ctx context.Context, addr, password string, db, poolSize int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	if s.cipher != nil {
		if data, err = s.cipher.Decrypt(data); err != nil {
			s.client.Del(ctx, s.redisKey(key))
			return nil, false, fmt.Errorf("failed to decrypt cache entry: %w", err)
		}
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.client.Del(ctx, s.redisKey(key))
		return nil, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &entry, true, nil
}

// Set implements Store
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if s.cipher != nil {
		if data, err = s.cipher.Encrypt(data); err != nil {
			return fmt.Errorf("failed to encrypt cache entry: %w", err)
		}
	}
	if err := s.client.Set(ctx, s.redisKey(key), data, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete implements Store
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Clear removes every key under the prefix
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed for prefix %s: %w", s.prefix, err)
	}
	return nil
}

// Len counts keys under the prefix
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan failed for prefix %s: %w", s.prefix, err)
	}
	return count, nil
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
