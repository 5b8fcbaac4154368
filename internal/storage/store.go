package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Records() RecordStore
	Limits() LimitStore
}

// RecordStore manages per-day time attribution data.
//
// CommitInterval is the only write path for attribution data: it
// increments the (url, date) record and the hourly bucket for the
// commit hour as one atomic unit, so a crash between the two writes
// cannot leave them inconsistent.
type RecordStore interface {
	CommitInterval(ctx context.Context, rec TabTimeRecord, hour int, elapsedMS int64) error
	ListRecords(ctx context.Context, date string) ([]TabTimeRecord, error)
	ListHourly(ctx context.Context, date string) ([]HourlyBucket, error)
	DeleteDaysBefore(ctx context.Context, cutoffDate string) (int, error)
}

// LimitStore manages website limit configurations.
// Configs are keyed by domain; Upsert replaces the stored config wholesale.
type LimitStore interface {
	List(ctx context.Context) ([]WebsiteLimit, error)
	Get(ctx context.Context, domain string) (*WebsiteLimit, error)
	Upsert(ctx context.Context, limit WebsiteLimit) error
	Delete(ctx context.Context, domain string) error
}
