package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/littleCareless/dish-tab-time/internal/config"
	"github.com/littleCareless/dish-tab-time/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client      *redis.Client
	recordStore *recordStore
	limitStore  *limitStore
}

// Open creates a new Redis-backed storage instance. Attribution keys are
// written with a TTL of retentionDays so stale days expire even if the
// retention sweeper never runs.
func Open(cfg config.RedisConfig, retentionDays int) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	// Create Redis client
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if retentionDays <= 0 {
		retentionDays = 90
	}

	ttlSeconds := int64(retentionDays) * 24 * 3600

	store := &Store{
		client:      client,
		recordStore: &recordStore{client: client, ttlSeconds: ttlSeconds},
		limitStore:  &limitStore{client: client},
	}

	return store, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Records returns the RecordStore implementation
func (s *Store) Records() storage.RecordStore {
	return s.recordStore
}

// Limits returns the LimitStore implementation
func (s *Store) Limits() storage.LimitStore {
	return s.limitStore
}
