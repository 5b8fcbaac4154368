package enforce

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/littleCareless/dish-tab-time/internal/config"
	"github.com/littleCareless/dish-tab-time/internal/policy"
	"github.com/littleCareless/dish-tab-time/internal/storage"
	redisstore "github.com/littleCareless/dish-tab-time/internal/storage/redis"
	"github.com/rs/zerolog"
)

type fakeNotifier struct {
	calls []string
}

func (n *fakeNotifier) Notify(title, message string) {
	n.calls = append(n.calls, title)
}

type fakeBlocker struct {
	rules []string
}

func (b *fakeBlocker) SetBlockRules(domains []string) error {
	b.rules = domains
	return nil
}

func setupController(t *testing.T, clock policy.Clock) (*Controller, *fakeNotifier, *fakeBlocker, storage.LimitStore) {
	t.Helper()

	mr := miniredis.RunT(t)

	store, err := redisstore.Open(config.RedisConfig{
		Host:         mr.Addr(),
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}, 90)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	notifier := &fakeNotifier{}
	blocker := &fakeBlocker{}
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	ctrl := NewController(store.Limits(), clock, notifier, blocker, 5*time.Minute, logger)
	return ctrl, notifier, blocker, store.Limits()
}

func TestController_BlockTransition(t *testing.T) {
	now := time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)
	clock := &policy.TestClock{Time: now}
	ctrl, notifier, blocker, limits := setupController(t, clock)

	ctx := context.Background()
	limit := storage.WebsiteLimit{Domain: "example.com", DailyLimitMS: 60000, Enabled: true}
	if err := limits.Upsert(ctx, limit); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	eval := policy.Evaluation{Status: policy.StatusBlocked, Limit: &limit, EffectiveLimitMS: 60000, UsedMS: 60000}
	ctrl.Transition(ctx, "example.com", policy.StatusWarning, policy.StatusBlocked, eval)

	if len(notifier.calls) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifier.calls))
	}
	if got := ctrl.Blocked(); len(got) != 1 || got[0] != "example.com" {
		t.Errorf("Expected block set [example.com], got %v", got)
	}
	if len(blocker.rules) != 1 || blocker.rules[0] != "example.com" {
		t.Errorf("Expected blocker rules [example.com], got %v", blocker.rules)
	}

	// Notification time must be persisted for the throttle
	stored, err := limits.Get(ctx, "example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.LastNotificationMS != now.UnixMilli() {
		t.Errorf("Expected persisted notification time %d, got %d", now.UnixMilli(), stored.LastNotificationMS)
	}
}

func TestController_NotificationThrottle(t *testing.T) {
	now := time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)
	clock := &policy.TestClock{Time: now}
	ctrl, notifier, _, limits := setupController(t, clock)

	ctx := context.Background()
	limit := storage.WebsiteLimit{Domain: "example.com", DailyLimitMS: 60000, Enabled: true}
	_ = limits.Upsert(ctx, limit)

	eval := policy.Evaluation{Status: policy.StatusBlocked, Limit: &limit, EffectiveLimitMS: 60000, UsedMS: 60000}
	ctrl.Transition(ctx, "example.com", policy.StatusNormal, policy.StatusBlocked, eval)

	// Second transition 2 minutes later with the persisted notification time
	clock.Time = now.Add(2 * time.Minute)
	stored, _ := limits.Get(ctx, "example.com")
	eval.Limit = stored
	ctrl.Transition(ctx, "example.com", policy.StatusNormal, policy.StatusBlocked, eval)

	if len(notifier.calls) != 1 {
		t.Fatalf("Expected second notification to be throttled, got %d calls", len(notifier.calls))
	}

	// After the cooldown a new notification goes out
	clock.Time = now.Add(6 * time.Minute)
	stored, _ = limits.Get(ctx, "example.com")
	eval.Limit = stored
	ctrl.Transition(ctx, "example.com", policy.StatusNormal, policy.StatusBlocked, eval)

	if len(notifier.calls) != 2 {
		t.Fatalf("Expected notification after cooldown, got %d calls", len(notifier.calls))
	}
}

func TestController_SameStatusIsNoop(t *testing.T) {
	clock := &policy.TestClock{Time: time.Now()}
	ctrl, notifier, _, _ := setupController(t, clock)

	eval := policy.Evaluation{Status: policy.StatusBlocked}
	ctrl.Transition(context.Background(), "example.com", policy.StatusBlocked, policy.StatusBlocked, eval)

	if len(notifier.calls) != 0 {
		t.Errorf("Expected no notification for unchanged status, got %d", len(notifier.calls))
	}
	if len(ctrl.Blocked()) != 0 {
		t.Errorf("Expected empty block set, got %v", ctrl.Blocked())
	}
}

func TestController_NormalTransitionUnblocks(t *testing.T) {
	now := time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)
	clock := &policy.TestClock{Time: now}
	ctrl, _, blocker, limits := setupController(t, clock)

	ctx := context.Background()
	limit := storage.WebsiteLimit{Domain: "example.com", DailyLimitMS: 60000, Enabled: true}
	_ = limits.Upsert(ctx, limit)

	eval := policy.Evaluation{Status: policy.StatusBlocked, Limit: &limit, EffectiveLimitMS: 60000, UsedMS: 60000}
	ctrl.Transition(ctx, "example.com", policy.StatusNormal, policy.StatusBlocked, eval)

	eval.Status = policy.StatusNormal
	ctrl.Transition(ctx, "example.com", policy.StatusBlocked, policy.StatusNormal, eval)

	if len(ctrl.Blocked()) != 0 {
		t.Errorf("Expected empty block set after unblock, got %v", ctrl.Blocked())
	}
	if len(blocker.rules) != 0 {
		t.Errorf("Expected blocker rules cleared, got %v", blocker.rules)
	}
}

func TestController_Unlock(t *testing.T) {
	now := time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)
	clock := &policy.TestClock{Time: now}
	ctrl, _, _, limits := setupController(t, clock)

	ctx := context.Background()
	limit := storage.WebsiteLimit{Domain: "example.com", DailyLimitMS: 60000, Enabled: true}
	_ = limits.Upsert(ctx, limit)

	eval := policy.Evaluation{Status: policy.StatusBlocked, Limit: &limit, EffectiveLimitMS: 60000, UsedMS: 60000}
	ctrl.Transition(ctx, "example.com", policy.StatusNormal, policy.StatusBlocked, eval)

	if err := ctrl.Unlock(ctx, "example.com", 5); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	if len(ctrl.Blocked()) != 0 {
		t.Errorf("Expected block lifted after unlock, got %v", ctrl.Blocked())
	}

	stored, err := limits.Get(ctx, "example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := now.Add(5 * time.Minute).UnixMilli()
	if stored.UnlockUntilMS != want {
		t.Errorf("Expected unlock_until %d, got %d", want, stored.UnlockUntilMS)
	}
}

func TestController_UnlockUnknownDomain(t *testing.T) {
	clock := &policy.TestClock{Time: time.Now()}
	ctrl, _, _, _ := setupController(t, clock)

	if err := ctrl.Unlock(context.Background(), "nope.com", 5); err != storage.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
