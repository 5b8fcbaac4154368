package policy

import (
	"time"

	"github.com/littleCareless/dish-tab-time/internal/storage"
)

// Evaluation is the outcome of checking a domain against its limits
type Evaluation struct {
	Status Status

	// Limit is the matched config, nil when no enabled config matched
	Limit *storage.WebsiteLimit

	// EffectiveLimitMS is the limit in force for the evaluation day,
	// after workday/weekend overrides. Zero means hard-blocked.
	EffectiveLimitMS int64

	// UsedMS is the usage the verdict was computed from
	UsedMS int64
}

// Evaluator computes usage verdicts for domains
type Evaluator struct {
	clock   Clock
	matcher *Matcher
}

// NewEvaluator creates an Evaluator
func NewEvaluator(clock Clock, matcher *Matcher) *Evaluator {
	return &Evaluator{clock: clock, matcher: matcher}
}

// Evaluate returns the verdict for a domain given its accumulated usage
// for the current day. The first enabled config that matches the domain
// is authoritative; later configs are not consulted.
func (e *Evaluator) Evaluate(domain string, usedMS int64, limits []storage.WebsiteLimit) Evaluation {
	now := e.clock.Now()

	for i := range limits {
		limit := &limits[i]
		if !limit.Enabled {
			continue
		}
		if !e.matcher.Matches(domain, *limit) {
			continue
		}

		// A temporary unlock overrides everything else
		if limit.UnlockUntilMS > now.UnixMilli() {
			return Evaluation{Status: StatusNormal, Limit: limit, EffectiveLimitMS: EffectiveLimit(*limit, now), UsedMS: usedMS}
		}

		effective := EffectiveLimit(*limit, now)

		return Evaluation{
			Status:           statusFor(usedMS, effective),
			Limit:            limit,
			EffectiveLimitMS: effective,
			UsedMS:           usedMS,
		}
	}

	return Evaluation{Status: StatusNormal, UsedMS: usedMS}
}

// EffectiveLimit resolves the limit in force for the day: the workday
// override applies Monday through Friday, the weekend override Saturday
// and Sunday, otherwise the daily limit.
func EffectiveLimit(limit storage.WebsiteLimit, day time.Time) int64 {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		if limit.WeekendLimitMS != nil {
			return *limit.WeekendLimitMS
		}
	default:
		if limit.WorkdayLimitMS != nil {
			return *limit.WorkdayLimitMS
		}
	}
	return limit.DailyLimitMS
}

// statusFor maps usage against a limit to a status. A zero limit is a
// standing block.
func statusFor(usedMS, limitMS int64) Status {
	if limitMS == 0 {
		return StatusBlocked
	}
	if usedMS >= limitMS {
		return StatusBlocked
	}
	if float64(usedMS) >= float64(limitMS)*WarningThreshold {
		return StatusWarning
	}
	return StatusNormal
}
