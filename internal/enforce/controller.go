package enforce

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/littleCareless/dish-tab-time/internal/metrics"
	"github.com/littleCareless/dish-tab-time/internal/policy"
	"github.com/littleCareless/dish-tab-time/internal/stats"
	"github.com/littleCareless/dish-tab-time/internal/storage"
	"github.com/rs/zerolog"
)

// Notifier delivers a user-facing notification
type Notifier interface {
	Notify(title, message string)
}

// Blocker applies the current block set to a network surface
type Blocker interface {
	SetBlockRules(domains []string) error
}

// Controller reacts to status transitions: it maintains the in-memory
// block set, pushes it to the blocker, and sends throttled
// notifications. The block set always starts empty; enforcement state
// does not survive a restart.
type Controller struct {
	limits   storage.LimitStore
	clock    policy.Clock
	notifier Notifier
	blocker  Blocker
	cooldown time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	blocked map[string]struct{}
}

// NewController creates a Controller. blocker may be nil when no
// network enforcement surface is configured.
func NewController(limits storage.LimitStore, clock policy.Clock, notifier Notifier, blocker Blocker, cooldown time.Duration, logger zerolog.Logger) *Controller {
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}

	return &Controller{
		limits:   limits,
		clock:    clock,
		notifier: notifier,
		blocker:  blocker,
		cooldown: cooldown,
		logger:   logger.With().Str("component", "enforce").Logger(),
		blocked:  make(map[string]struct{}),
	}
}

// Transition handles a status change for a domain
func (c *Controller) Transition(ctx context.Context, domain string, from, to policy.Status, eval policy.Evaluation) {
	if from == to {
		return
	}

	c.logger.Info().
		Str("domain", domain).
		Str("from", string(from)).
		Str("to", string(to)).
		Int64("used_ms", eval.UsedMS).
		Int64("limit_ms", eval.EffectiveLimitMS).
		Msg("Limit status changed")

	switch to {
	case policy.StatusBlocked:
		c.setBlocked(domain, true)
		c.notify(ctx, eval,
			"Time limit reached",
			fmt.Sprintf("You have used %s on %s today. The site is now blocked.",
				stats.FormatTimeSpent(eval.UsedMS), domain))
	case policy.StatusWarning:
		c.notify(ctx, eval,
			"Time limit approaching",
			fmt.Sprintf("You have used %s of %s on %s today.",
				stats.FormatTimeSpent(eval.UsedMS), stats.FormatTimeLimit(eval.EffectiveLimitMS), domain))
	case policy.StatusNormal:
		c.setBlocked(domain, false)
	}
}

// Unlock grants a temporary unlock for a domain and lifts its block
func (c *Controller) Unlock(ctx context.Context, domain string, minutes int) error {
	limit, err := c.limits.Get(ctx, domain)
	if err != nil {
		return err
	}

	limit.UnlockUntilMS = c.clock.Now().Add(time.Duration(minutes) * time.Minute).UnixMilli()
	if err := c.limits.Upsert(ctx, *limit); err != nil {
		return err
	}

	c.logger.Info().
		Str("domain", domain).
		Int("minutes", minutes).
		Msg("Temporary unlock granted")

	c.setBlocked(domain, false)
	return nil
}

// Release removes a domain from the block set, e.g. after its limit
// config was deleted or disabled.
func (c *Controller) Release(domain string) {
	c.setBlocked(domain, false)
}

// Blocked returns the current block set, sorted
func (c *Controller) Blocked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.blocked))
	for domain := range c.blocked {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

func (c *Controller) setBlocked(domain string, blocked bool) {
	c.mu.Lock()
	if blocked {
		c.blocked[domain] = struct{}{}
	} else {
		delete(c.blocked, domain)
	}
	size := len(c.blocked)
	rules := make([]string, 0, size)
	for d := range c.blocked {
		rules = append(rules, d)
	}
	c.mu.Unlock()

	metrics.BlockedDomains.Set(float64(size))

	if c.blocker != nil {
		sort.Strings(rules)
		if err := c.blocker.SetBlockRules(rules); err != nil {
			c.logger.Error().Err(err).Msg("Failed to apply block rules")
		}
	}
}

// notify sends a notification unless the matched config was notified
// within the cooldown window. The notification time is persisted on the
// config so the throttle survives a restart.
func (c *Controller) notify(ctx context.Context, eval policy.Evaluation, title, message string) {
	if c.notifier == nil || eval.Limit == nil {
		return
	}

	now := c.clock.Now().UnixMilli()
	last := eval.Limit.LastNotificationMS
	if last != 0 && now-last < c.cooldown.Milliseconds() {
		metrics.NotificationsThrottledTotal.Inc()
		return
	}

	c.notifier.Notify(title, message)
	metrics.NotificationsTotal.Inc()

	updated := *eval.Limit
	updated.LastNotificationMS = now
	if err := c.limits.Upsert(ctx, updated); err != nil {
		c.logger.Error().
			Err(err).
			Str("domain", updated.Domain).
			Msg("Failed to persist notification time")
	}
}
