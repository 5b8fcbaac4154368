package storage

import "time"

// DateFormat is the calendar-day key format used throughout storage.
const DateFormat = "2006-01-02"

// DayKey returns the local calendar date key for a point in time.
func DayKey(t time.Time) string {
	return t.Format(DateFormat)
}

// TabTimeRecord accumulates active time for one URL on one calendar day.
// TimeSpentMS only ever increases for a given (url, date).
type TabTimeRecord struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Domain       string `json:"domain"`
	Date         string `json:"date"`
	TimeSpentMS  int64  `json:"time_spent_ms"`
	LastActiveMS int64  `json:"last_active_ms"`
}

// HourlyBucket accumulates active time for one hour of one calendar day.
type HourlyBucket struct {
	Hour        int   `json:"hour"`
	TimeSpentMS int64 `json:"time_spent_ms"`
}

// WebsiteLimit is the usage policy for one domain.
//
// Domain is the stable identity key; MatchPattern, when set, overrides it
// for enforcement matching. LastNotificationMS and UnlockUntilMS are
// mutated only by the evaluation/enforcement path, never by policy editing.
type WebsiteLimit struct {
	Domain             string `json:"domain"`
	MatchPattern       string `json:"match_pattern,omitempty"`
	DailyLimitMS       int64  `json:"daily_limit_ms"`
	WorkdayLimitMS     *int64 `json:"workday_limit_ms,omitempty"`
	WeekendLimitMS     *int64 `json:"weekend_limit_ms,omitempty"`
	Enabled            bool   `json:"enabled"`
	LastNotificationMS int64  `json:"last_notification_ms,omitempty"`
	UnlockUntilMS      int64  `json:"unlock_until_ms,omitempty"`
}
