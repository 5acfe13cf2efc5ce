package statestore

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix prefixes every key the redis backend writes. Full keys
// are "<prefix><bucket>:<key>".
const DefaultRedisPrefix = "plughost:state:"

// redisBackendConfig holds configuration for the RedisBackend.
type redisBackendConfig struct {
	prefix   string
	password string
	db       int
	scanSize int64
}

func defaultRedisBackendConfig() redisBackendConfig {
	return redisBackendConfig{
		prefix:   DefaultRedisPrefix,
		scanSize: 100,
	}
}

// RedisBackendOption configures a RedisBackend instance.
type RedisBackendOption func(*redisBackendConfig)

// WithKeyPrefix replaces DefaultRedisPrefix.
func WithKeyPrefix(prefix string) RedisBackendOption {
	return func(c *redisBackendConfig) {
		c.prefix = prefix
	}
}

// WithPassword sets the redis password.
func WithPassword(password string) RedisBackendOption {
	return func(c *redisBackendConfig) {
		c.password = password
	}
}

// WithDB selects the redis database.
func WithDB(db int) RedisBackendOption {
	return func(c *redisBackendConfig) {
		c.db = db
	}
}

// RedisBackend keeps state in redis, one string key per entry.
type RedisBackend struct {
	client *redis.Client
	config redisBackendConfig
}

// NewRedisBackend connects to addr and pings it.
func NewRedisBackend(ctx context.Context, addr string, opts ...RedisBackendOption) (*RedisBackend, error) {
	if addr == "" {
		return nil, stdErrors.New("redis address must not be empty")
	}
	cfg := defaultRedisBackendConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.password,
		DB:       cfg.db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisBackend{client: client, config: cfg}, nil
}

func (b *RedisBackend) key(bucket, key string) string {
	return b.config.prefix + bucket + ":" + key
}

func (b *RedisBackend) scanKeys(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, b.key(bucket, "*"), b.config.scanSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan redis keys: %w", err)
	}
	return keys, nil
}

func (b *RedisBackend) Get(ctx context.Context, bucket, key string) ([]byte, bool, error) {
	raw, err := b.client.Get(ctx, b.key(bucket, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get redis key: %w", err)
	}
	return raw, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, bucket, key string, raw []byte) error {
	if err := b.client.Set(ctx, b.key(bucket, key), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to set redis key: %w", err)
	}
	return nil
}

func (b *RedisBackend) Entries(ctx context.Context, bucket string) (map[string][]byte, error) {
	keys, err := b.scanKeys(ctx, bucket)
	if err != nil {
		return nil, err
	}
	entries := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return entries, nil
	}

	vals, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read redis keys: %w", err)
	}
	prefix := b.key(bucket, "")
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// Deleted between SCAN and MGET.
			continue
		}
		entries[strings.TrimPrefix(keys[i], prefix)] = []byte(s)
	}
	return entries, nil
}

func (b *RedisBackend) Replace(ctx context.Context, bucket string, entries map[string][]byte) error {
	old, err := b.scanKeys(ctx, bucket)
	if err != nil {
		return err
	}
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(old) > 0 {
			pipe.Del(ctx, old...)
		}
		for k, raw := range entries {
			pipe.Set(ctx, b.key(bucket, k), raw, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace redis bucket: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

var _ Backend = (*RedisBackend)(nil)
