package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/littleCareless/dish-tab-time/internal/config"
	"github.com/littleCareless/dish-tab-time/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := config.RedisConfig{
		Host:         mr.Addr(), // Full address "host:port"
		Port:         0,         // Not used when host contains port
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg, 90)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestRecordStore_CommitInterval(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	records := store.Records()

	rec := storage.TabTimeRecord{
		URL:          "https://a.com/",
		Title:        "A",
		Domain:       "a.com",
		Date:         "2024-01-15",
		LastActiveMS: 5000,
	}

	if err := records.CommitInterval(ctx, rec, 10, 5000); err != nil {
		t.Fatalf("CommitInterval failed: %v", err)
	}

	got, err := records.ListRecords(ctx, "2024-01-15")
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}
	if got[0].TimeSpentMS != 5000 {
		t.Errorf("Expected TimeSpentMS 5000, got %d", got[0].TimeSpentMS)
	}
	if got[0].Domain != "a.com" {
		t.Errorf("Expected domain a.com, got %s", got[0].Domain)
	}
	if got[0].LastActiveMS != 5000 {
		t.Errorf("Expected LastActiveMS 5000, got %d", got[0].LastActiveMS)
	}
}

func TestRecordStore_CommitIntervalAccumulates(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	records := store.Records()

	rec := storage.TabTimeRecord{
		URL:          "https://a.com/",
		Title:        "A",
		Domain:       "a.com",
		Date:         "2024-01-15",
		LastActiveMS: 5000,
	}

	if err := records.CommitInterval(ctx, rec, 10, 5000); err != nil {
		t.Fatalf("First CommitInterval failed: %v", err)
	}

	rec.Title = "A updated"
	rec.LastActiveMS = 8000
	if err := records.CommitInterval(ctx, rec, 10, 3000); err != nil {
		t.Fatalf("Second CommitInterval failed: %v", err)
	}

	got, err := records.ListRecords(ctx, "2024-01-15")
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}
	if got[0].TimeSpentMS != 8000 {
		t.Errorf("Expected TimeSpentMS 8000, got %d", got[0].TimeSpentMS)
	}
	if got[0].Title != "A updated" {
		t.Errorf("Expected refreshed title, got %q", got[0].Title)
	}
	if got[0].LastActiveMS != 8000 {
		t.Errorf("Expected LastActiveMS 8000, got %d", got[0].LastActiveMS)
	}
}

func TestRecordStore_CommitIntervalKeepsTitleWhenEmpty(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	records := store.Records()

	rec := storage.TabTimeRecord{
		URL:          "https://a.com/",
		Title:        "A",
		Domain:       "a.com",
		Date:         "2024-01-15",
		LastActiveMS: 5000,
	}

	_ = records.CommitInterval(ctx, rec, 10, 5000)

	rec.Title = ""
	rec.LastActiveMS = 8000
	_ = records.CommitInterval(ctx, rec, 10, 3000)

	got, err := records.ListRecords(ctx, "2024-01-15")
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if got[0].Title != "A" {
		t.Errorf("Expected title to be preserved, got %q", got[0].Title)
	}
}

func TestRecordStore_ListHourly(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	records := store.Records()

	rec := storage.TabTimeRecord{
		URL:          "https://a.com/",
		Domain:       "a.com",
		Date:         "2024-01-15",
		LastActiveMS: 5000,
	}

	_ = records.CommitInterval(ctx, rec, 9, 1000)
	_ = records.CommitInterval(ctx, rec, 9, 2000)
	_ = records.CommitInterval(ctx, rec, 17, 4000)

	buckets, err := records.ListHourly(ctx, "2024-01-15")
	if err != nil {
		t.Fatalf("ListHourly failed: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("Expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Hour != 9 || buckets[0].TimeSpentMS != 3000 {
		t.Errorf("Expected hour 9 with 3000ms, got hour %d with %dms", buckets[0].Hour, buckets[0].TimeSpentMS)
	}
	if buckets[1].Hour != 17 || buckets[1].TimeSpentMS != 4000 {
		t.Errorf("Expected hour 17 with 4000ms, got hour %d with %dms", buckets[1].Hour, buckets[1].TimeSpentMS)
	}
}

func TestRecordStore_ListRecordsMultipleURLs(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	records := store.Records()

	for _, url := range []string{"https://b.com/x", "https://a.com/", "https://a.com/page"} {
		rec := storage.TabTimeRecord{
			URL:          url,
			Domain:       "a.com",
			Date:         "2024-01-15",
			LastActiveMS: 5000,
		}
		if err := records.CommitInterval(ctx, rec, 10, 1000); err != nil {
			t.Fatalf("CommitInterval(%s) failed: %v", url, err)
		}
	}

	got, err := records.ListRecords(ctx, "2024-01-15")
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}

	// Order must be deterministic (sorted by URL)
	if got[0].URL != "https://a.com/" || got[1].URL != "https://a.com/page" || got[2].URL != "https://b.com/x" {
		t.Errorf("Unexpected record order: %q, %q, %q", got[0].URL, got[1].URL, got[2].URL)
	}
}

func TestRecordStore_DeleteDaysBefore(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	records := store.Records()

	for _, date := range []string{"2024-01-10", "2024-01-14", "2024-01-15"} {
		rec := storage.TabTimeRecord{
			URL:          "https://a.com/",
			Domain:       "a.com",
			Date:         date,
			LastActiveMS: 5000,
		}
		_ = records.CommitInterval(ctx, rec, 10, 1000)
	}

	deleted, err := records.DeleteDaysBefore(ctx, "2024-01-15")
	if err != nil {
		t.Fatalf("DeleteDaysBefore failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 days deleted, got %d", deleted)
	}

	kept, err := records.ListRecords(ctx, "2024-01-15")
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(kept) != 1 {
		t.Errorf("Expected the cutoff day to survive, got %d records", len(kept))
	}

	gone, err := records.ListRecords(ctx, "2024-01-10")
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(gone) != 0 {
		t.Errorf("Expected old day to be deleted, got %d records", len(gone))
	}
}

func TestLimitStore_UpsertGetDelete(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	limits := store.Limits()

	workday := int64(30 * 60 * 1000)
	limit := storage.WebsiteLimit{
		Domain:         "example.com",
		MatchPattern:   "*.example.com",
		DailyLimitMS:   60 * 60 * 1000,
		WorkdayLimitMS: &workday,
		Enabled:        true,
	}

	if err := limits.Upsert(ctx, limit); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := limits.Get(ctx, "example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.MatchPattern != "*.example.com" {
		t.Errorf("Expected match pattern *.example.com, got %s", got.MatchPattern)
	}
	if got.WorkdayLimitMS == nil || *got.WorkdayLimitMS != workday {
		t.Errorf("Expected workday limit %d, got %v", workday, got.WorkdayLimitMS)
	}

	if err := limits.Delete(ctx, "example.com"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := limits.Get(ctx, "example.com"); err != storage.ErrNotFound {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestLimitStore_DeleteMissing(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()

	if err := store.Limits().Delete(ctx, "nope.com"); err != storage.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLimitStore_ListSorted(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	limits := store.Limits()

	for _, domain := range []string{"b.com", "a.com", "c.com"} {
		if err := limits.Upsert(ctx, storage.WebsiteLimit{Domain: domain, DailyLimitMS: 1000, Enabled: true}); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", domain, err)
		}
	}

	got, err := limits.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 limits, got %d", len(got))
	}
	if got[0].Domain != "a.com" || got[1].Domain != "b.com" || got[2].Domain != "c.com" {
		t.Errorf("Unexpected order: %s, %s, %s", got[0].Domain, got[1].Domain, got[2].Domain)
	}
}
