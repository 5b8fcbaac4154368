package stats

import (
	"sort"

	"github.com/littleCareless/dish-tab-time/internal/storage"
)

// DomainStat is the per-domain rollup for one day
type DomainStat struct {
	Domain      string `json:"domain"`
	TimeSpentMS int64  `json:"time_spent_ms"`
	VisitCount  int    `json:"visit_count"`
}

// HourlyStat is the per-hour rollup for one day. All 24 hours are
// always present.
type HourlyStat struct {
	Hour        int   `json:"hour"`
	TimeSpentMS int64 `json:"time_spent_ms"`
}

// DailyStats is the full derived view for one day
type DailyStats struct {
	Date        string                  `json:"date"`
	TotalMS     int64                   `json:"total_ms"`
	Domains     []DomainStat            `json:"domains"`
	Hourly      []HourlyStat            `json:"hourly"`
	Records     []storage.TabTimeRecord `json:"records"`
	RecordCount int                     `json:"record_count"`
}

// DomainStats groups records by domain, summing time and counting each
// record as one visit. Records without a domain (hostless URLs) are
// left out of the rollup; they still count toward the daily total. The
// result is sorted by time spent descending; ties keep domain order
// stable by name.
func DomainStats(records []storage.TabTimeRecord) []DomainStat {
	byDomain := make(map[string]*DomainStat)
	for _, rec := range records {
		if rec.Domain == "" {
			continue
		}
		stat, ok := byDomain[rec.Domain]
		if !ok {
			stat = &DomainStat{Domain: rec.Domain}
			byDomain[rec.Domain] = stat
		}
		stat.TimeSpentMS += rec.TimeSpentMS
		stat.VisitCount++
	}

	out := make([]DomainStat, 0, len(byDomain))
	for _, stat := range byDomain {
		out = append(out, *stat)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeSpentMS != out[j].TimeSpentMS {
			return out[i].TimeSpentMS > out[j].TimeSpentMS
		}
		return out[i].Domain < out[j].Domain
	})

	return out
}

// HourlyStats expands sparse stored buckets to the full 24-hour shape
func HourlyStats(buckets []storage.HourlyBucket) []HourlyStat {
	out := make([]HourlyStat, 24)
	for i := range out {
		out[i].Hour = i
	}
	for _, b := range buckets {
		if b.Hour < 0 || b.Hour > 23 {
			continue
		}
		out[b.Hour].TimeSpentMS = b.TimeSpentMS
	}
	return out
}

// Total sums time across records
func Total(records []storage.TabTimeRecord) int64 {
	var total int64
	for _, rec := range records {
		total += rec.TimeSpentMS
	}
	return total
}

// DomainTotal sums time across records belonging to one domain
func DomainTotal(records []storage.TabTimeRecord, domain string) int64 {
	var total int64
	for _, rec := range records {
		if rec.Domain == domain {
			total += rec.TimeSpentMS
		}
	}
	return total
}
