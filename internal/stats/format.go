package stats

import "fmt"

// FormatTimeSpent renders an accumulated duration for display:
// "42s" under a minute, "12m" under an hour, "2h 5m" above.
func FormatTimeSpent(ms int64) string {
	if ms < 0 {
		ms = 0
	}

	seconds := ms / 1000
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	return fmt.Sprintf("%dh %dm", hours, minutes%60)
}

// FormatTimeLimit renders a configured limit: whole hours as "2h",
// sub-hour limits as "45m", mixed as "1h 30m". A zero limit is a
// standing block.
func FormatTimeLimit(ms int64) string {
	if ms <= 0 {
		return "blocked"
	}

	minutes := ms / 60000
	if minutes < 1 {
		minutes = 1
	}

	hours := minutes / 60
	rem := minutes % 60

	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", rem)
	case rem == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dm", hours, rem)
	}
}
