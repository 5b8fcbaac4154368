package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/littleCareless/dish-tab-time/internal/storage"
	"github.com/redis/go-redis/v9"
)

// limitsKey holds all website limit configs as a hash: domain -> JSON.
const limitsKey = "tabtime:limits"

type limitStore struct {
	client *redis.Client
}

// List returns all website limit configs ordered by domain
func (s *limitStore) List(ctx context.Context) ([]storage.WebsiteLimit, error) {
	data, err := s.client.HGetAll(ctx, limitsKey).Result()
	if err != nil {
		return nil, err
	}

	limits := make([]storage.WebsiteLimit, 0, len(data))
	for _, value := range data {
		var limit storage.WebsiteLimit
		if err := json.Unmarshal([]byte(value), &limit); err != nil {
			return nil, fmt.Errorf("failed to decode limit config: %w", err)
		}
		limits = append(limits, limit)
	}

	// The hash has no stable iteration order
	sort.Slice(limits, func(i, j int) bool { return limits[i].Domain < limits[j].Domain })

	return limits, nil
}

// Get returns the limit config for a domain
func (s *limitStore) Get(ctx context.Context, domain string) (*storage.WebsiteLimit, error) {
	value, err := s.client.HGet(ctx, limitsKey, domain).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var limit storage.WebsiteLimit
	if err := json.Unmarshal([]byte(value), &limit); err != nil {
		return nil, fmt.Errorf("failed to decode limit config: %w", err)
	}

	return &limit, nil
}

// Upsert stores the limit config keyed by its domain
func (s *limitStore) Upsert(ctx context.Context, limit storage.WebsiteLimit) error {
	if limit.Domain == "" {
		return fmt.Errorf("limit config requires a domain")
	}

	value, err := json.Marshal(limit)
	if err != nil {
		return fmt.Errorf("failed to encode limit config: %w", err)
	}

	return s.client.HSet(ctx, limitsKey, limit.Domain, value).Err()
}

// Delete removes the limit config for a domain
func (s *limitStore) Delete(ctx context.Context, domain string) error {
	deleted, err := s.client.HDel(ctx, limitsKey, domain).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return storage.ErrNotFound
	}
	return nil
}
