package stats

import (
	"context"

	"github.com/littleCareless/dish-tab-time/internal/policy"
	"github.com/littleCareless/dish-tab-time/internal/storage"
)

// Aggregator computes derived daily views from stored records. Nothing
// here is persisted; every call recomputes from the attribution data.
type Aggregator struct {
	records storage.RecordStore
	clock   policy.Clock
}

// NewAggregator creates an Aggregator
func NewAggregator(records storage.RecordStore, clock policy.Clock) *Aggregator {
	return &Aggregator{records: records, clock: clock}
}

// Daily returns the full derived view for a date
func (a *Aggregator) Daily(ctx context.Context, date string) (*DailyStats, error) {
	records, err := a.records.ListRecords(ctx, date)
	if err != nil {
		return nil, err
	}

	buckets, err := a.records.ListHourly(ctx, date)
	if err != nil {
		return nil, err
	}

	return &DailyStats{
		Date:        date,
		TotalMS:     Total(records),
		Domains:     DomainStats(records),
		Hourly:      HourlyStats(buckets),
		Records:     records,
		RecordCount: len(records),
	}, nil
}

// RecentDays returns derived views for the last n days ending today,
// oldest first. Days with no activity produce empty views.
func (a *Aggregator) RecentDays(ctx context.Context, n int) ([]DailyStats, error) {
	if n <= 0 {
		n = 7
	}

	today := a.clock.Now()
	out := make([]DailyStats, 0, n)

	for i := n - 1; i >= 0; i-- {
		date := storage.DayKey(today.AddDate(0, 0, -i))
		daily, err := a.Daily(ctx, date)
		if err != nil {
			return nil, err
		}
		out = append(out, *daily)
	}

	return out, nil
}

// DomainUsage returns the accumulated time for one domain on a date
func (a *Aggregator) DomainUsage(ctx context.Context, date, domain string) (int64, error) {
	records, err := a.records.ListRecords(ctx, date)
	if err != nil {
		return 0, err
	}
	return DomainTotal(records, domain), nil
}
