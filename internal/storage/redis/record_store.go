package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/littleCareless/dish-tab-time/internal/storage"
	"github.com/redis/go-redis/v9"
)

type recordStore struct {
	client     *redis.Client
	ttlSeconds int64
}

func recordKey(date, url string) string {
	return fmt.Sprintf("tabtime:record:%s:%s", date, url)
}

func indexKey(date string) string {
	return fmt.Sprintf("tabtime:records:index:%s", date)
}

func hourlyKey(date string) string {
	return fmt.Sprintf("tabtime:hourly:%s", date)
}

// CommitInterval atomically adds elapsedMS to the (url, date) record and
// the hourly bucket for the given hour
func (s *recordStore) CommitInterval(ctx context.Context, rec storage.TabTimeRecord, hour int, elapsedMS int64) error {
	script := redis.NewScript(commitIntervalScript)

	keys := []string{
		recordKey(rec.Date, rec.URL),
		indexKey(rec.Date),
		hourlyKey(rec.Date),
	}
	args := []interface{}{
		rec.URL,
		rec.Title,
		rec.Domain,
		rec.Date,
		elapsedMS,
		rec.LastActiveMS,
		strconv.Itoa(hour),
		s.ttlSeconds,
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// ListRecords returns all attribution records for a date
func (s *recordStore) ListRecords(ctx context.Context, date string) ([]storage.TabTimeRecord, error) {
	// Get all URLs recorded for this date
	urls, err := s.client.SMembers(ctx, indexKey(date)).Result()
	if err != nil {
		return nil, err
	}

	if len(urls) == 0 {
		return []storage.TabTimeRecord{}, nil
	}

	// Deterministic order: the index is an unordered set
	sort.Strings(urls)

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(urls))

	for i, url := range urls {
		cmds[i] = pipe.HGetAll(ctx, recordKey(date, url))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	// Parse results
	records := make([]storage.TabTimeRecord, 0, len(urls))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		rec, err := parseTabTimeRecord(data)
		if err == nil {
			records = append(records, *rec)
		}
	}

	return records, nil
}

// ListHourly returns the stored hourly buckets for a date. Hours with no
// activity have no entry; callers synthesize missing hours.
func (s *recordStore) ListHourly(ctx context.Context, date string) ([]storage.HourlyBucket, error) {
	data, err := s.client.HGetAll(ctx, hourlyKey(date)).Result()
	if err != nil {
		return nil, err
	}

	buckets := make([]storage.HourlyBucket, 0, len(data))
	for field, value := range data {
		hour, err := strconv.Atoi(field)
		if err != nil || hour < 0 || hour > 23 {
			continue
		}
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		buckets = append(buckets, storage.HourlyBucket{Hour: hour, TimeSpentMS: ms})
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Hour < buckets[j].Hour })

	return buckets, nil
}

// DeleteDaysBefore deletes all attribution keys for days before cutoffDate.
// Date keys are YYYY-MM-DD so lexicographic comparison is chronological.
func (s *recordStore) DeleteDaysBefore(ctx context.Context, cutoffDate string) (int, error) {
	var cursor uint64
	var deletedDays int

	for {
		var keys []string
		var err error
		keys, cursor, err = s.client.Scan(ctx, cursor, "tabtime:records:index:*", 100).Result()
		if err != nil {
			return deletedDays, err
		}

		for _, key := range keys {
			date := strings.TrimPrefix(key, "tabtime:records:index:")
			if date >= cutoffDate {
				continue
			}

			urls, err := s.client.SMembers(ctx, key).Result()
			if err != nil {
				return deletedDays, err
			}

			toDelete := make([]string, 0, len(urls)+2)
			for _, url := range urls {
				toDelete = append(toDelete, recordKey(date, url))
			}
			toDelete = append(toDelete, key, hourlyKey(date))

			if err := s.client.Del(ctx, toDelete...).Err(); err != nil {
				return deletedDays, err
			}
			deletedDays++
		}

		if cursor == 0 {
			break
		}
	}

	return deletedDays, nil
}
