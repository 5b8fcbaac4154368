package redis

import (
	"fmt"
	"strconv"

	"github.com/littleCareless/dish-tab-time/internal/storage"
)

// parseTabTimeRecord converts a Redis hash to TabTimeRecord
func parseTabTimeRecord(data map[string]string) (*storage.TabTimeRecord, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	timeSpent, err := strconv.ParseInt(data["time_spent_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse time_spent_ms: %w", err)
	}

	lastActive, err := strconv.ParseInt(data["last_active_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_active_ms: %w", err)
	}

	return &storage.TabTimeRecord{
		URL:          data["url"],
		Title:        data["title"],
		Domain:       data["domain"],
		Date:         data["date"],
		TimeSpentMS:  timeSpent,
		LastActiveMS: lastActive,
	}, nil
}
