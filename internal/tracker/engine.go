package tracker

import (
	"context"
	"net/url"
	"strings"

	"github.com/littleCareless/dish-tab-time/internal/metrics"
	"github.com/littleCareless/dish-tab-time/internal/policy"
	"github.com/littleCareless/dish-tab-time/internal/stats"
	"github.com/littleCareless/dish-tab-time/internal/storage"
	"github.com/rs/zerolog"
)

// MaxIntervalMS is the sanity cap on a single attribution interval.
// Anything longer means the cursor is stale (suspend, clock jump) and
// the interval is discarded rather than attributed.
const MaxIntervalMS = 3_600_000

// Enforcer reacts to limit status transitions
type Enforcer interface {
	Transition(ctx context.Context, domain string, from, to policy.Status, eval policy.Evaluation)
}

// Engine turns the attribution cursor into persisted records. Commit is
// called right before the cursor is replaced or cleared, and on every
// periodic tick.
type Engine struct {
	records   storage.RecordStore
	limits    storage.LimitStore
	evaluator *policy.Evaluator
	enforcer  Enforcer
	clock     policy.Clock
	logger    zerolog.Logger
}

// NewEngine creates an Engine. enforcer may be nil when enforcement is
// disabled.
func NewEngine(records storage.RecordStore, limits storage.LimitStore, evaluator *policy.Evaluator, enforcer Enforcer, clock policy.Clock, logger zerolog.Logger) *Engine {
	return &Engine{
		records:   records,
		limits:    limits,
		evaluator: evaluator,
		enforcer:  enforcer,
		clock:     clock,
		logger:    logger.With().Str("component", "tracker").Logger(),
	}
}

// internalSchemes are browser-internal pages that never accumulate time
var internalSchemes = []string{
	"chrome://",
	"chrome-extension://",
	"edge://",
	"devtools://",
	"about:",
	"moz-extension://",
}

func isInternalURL(rawURL string) bool {
	for _, prefix := range internalSchemes {
		if strings.HasPrefix(rawURL, prefix) {
			return true
		}
	}
	return false
}

// Commit attributes the elapsed interval since the cursor to the
// resource the cursor points at, then re-evaluates the domain's limit.
// The cursor is always advanced to now, even when the interval is
// discarded or the write fails, so time is never attributed twice.
func (e *Engine) Commit(ctx context.Context, state *ActiveTabState) error {
	if !state.Active() {
		return nil
	}

	now := e.clock.Now()
	nowMS := now.UnixMilli()

	if isInternalURL(state.URL) {
		state.LastActiveMS = nowMS
		return nil
	}

	elapsed := nowMS - state.LastActiveMS

	// Cursor always advances; a failed or discarded interval must not
	// be re-attributed on the next commit
	state.LastActiveMS = nowMS

	if elapsed <= 0 {
		metrics.DiscardedIntervalsTotal.WithLabelValues("non_positive").Inc()
		return nil
	}
	if elapsed > MaxIntervalMS {
		e.logger.Warn().
			Str("url", state.URL).
			Int64("elapsed_ms", elapsed).
			Msg("Discarding oversized interval")
		metrics.DiscardedIntervalsTotal.WithLabelValues("oversized").Inc()
		return nil
	}

	domain := domainOf(state.URL)

	rec := storage.TabTimeRecord{
		URL:          state.URL,
		Title:        state.Title,
		Domain:       domain,
		Date:         storage.DayKey(now),
		LastActiveMS: nowMS,
	}

	if err := e.records.CommitInterval(ctx, rec, now.Hour(), elapsed); err != nil {
		metrics.CommitsTotal.WithLabelValues("error").Inc()
		e.logger.Error().
			Err(err).
			Str("url", state.URL).
			Int64("elapsed_ms", elapsed).
			Msg("Failed to persist interval")
		return err
	}

	metrics.CommitsTotal.WithLabelValues("ok").Inc()
	metrics.AttributedMillisecondsTotal.Add(float64(elapsed))

	e.logger.Debug().
		Str("domain", domain).
		Int64("elapsed_ms", elapsed).
		Msg("Interval committed")

	if domain != "" {
		e.evaluate(ctx, state, domain, rec.Date)
	}

	return nil
}

// evaluate recomputes the domain's limit status and hands transitions
// to the enforcer
func (e *Engine) evaluate(ctx context.Context, state *ActiveTabState, domain, date string) {
	limits, err := e.limits.List(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load limit configs")
		return
	}
	if len(limits) == 0 {
		state.Status = policy.StatusNormal
		state.StatusDomain = domain
		return
	}

	records, err := e.records.ListRecords(ctx, date)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load records for evaluation")
		return
	}

	used := stats.DomainTotal(records, domain)
	eval := e.evaluator.Evaluate(domain, used, limits)

	metrics.EvaluationsTotal.WithLabelValues(string(eval.Status)).Inc()

	// The previous status only applies if it was computed for the same
	// domain; a fresh domain starts from NORMAL
	from := policy.StatusNormal
	if state.StatusDomain == domain && state.Status != "" {
		from = state.Status
	}

	state.Status = eval.Status
	state.StatusDomain = domain

	if from != eval.Status && e.enforcer != nil {
		e.enforcer.Transition(ctx, domain, from, eval.Status, eval)
	}
}

// domainOf extracts the lowercased hostname. Unparseable or hostless
// URLs attribute to the empty domain; the record is still kept.
func domainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
