package events

import (
	"context"
	"errors"
	"time"

	"github.com/littleCareless/dish-tab-time/internal/metrics"
	"github.com/littleCareless/dish-tab-time/internal/policy"
	"github.com/littleCareless/dish-tab-time/internal/tracker"
	"github.com/rs/zerolog"
)

// ErrBufferFull is returned when an event cannot be queued
var ErrBufferFull = errors.New("events: buffer full")

// Dispatcher serializes all event handling onto one goroutine. It owns
// the attribution cursor; every handler commits the pending interval
// before moving the cursor, so no active time is lost on a switch.
type Dispatcher struct {
	engine       *tracker.Engine
	clock        policy.Clock
	tickInterval time.Duration
	logger       zerolog.Logger

	events chan queuedEvent
	state  tracker.ActiveTabState
}

// queuedEvent pairs an event with an optional completion signal, closed
// once the event has been applied
type queuedEvent struct {
	ev   Event
	done chan struct{}
}

// NewDispatcher creates a Dispatcher with the given event buffer size
func NewDispatcher(engine *tracker.Engine, clock policy.Clock, tickInterval time.Duration, buffer int, logger zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if tickInterval <= 0 {
		tickInterval = 30 * time.Second
	}

	return &Dispatcher{
		engine:       engine,
		clock:        clock,
		tickInterval: tickInterval,
		logger:       logger.With().Str("component", "dispatcher").Logger(),
		events:       make(chan queuedEvent, buffer),
	}
}

// Enqueue submits an event without blocking. Returns false when the
// buffer is full and the event was dropped.
func (d *Dispatcher) Enqueue(ev Event) bool {
	return d.enqueue(ev, nil) == nil
}

// EnqueueWait submits an event and blocks until the dispatcher has
// applied it, so enforcement state observed afterwards reflects the
// event. Returns ErrBufferFull when the event was dropped.
func (d *Dispatcher) EnqueueWait(ctx context.Context, ev Event) error {
	done := make(chan struct{})
	if err := d.enqueue(ev, done); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(ev Event, done chan struct{}) error {
	select {
	case d.events <- queuedEvent{ev: ev, done: done}:
		metrics.EventsTotal.WithLabelValues(ev.Type()).Inc()
		return nil
	default:
		metrics.EventsDroppedTotal.Inc()
		d.logger.Warn().Str("type", ev.Type()).Msg("Event buffer full, dropping event")
		return ErrBufferFull
	}
}

// Run processes events and periodic ticks until ctx is cancelled. The
// pending interval is committed one last time on shutdown.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	d.logger.Info().
		Dur("tick_interval", d.tickInterval).
		Msg("Dispatcher started")

	for {
		select {
		case q := <-d.events:
			d.handle(ctx, q.ev)
			if q.done != nil {
				close(q.done)
			}
		case <-ticker.C:
			d.commit(ctx)
		case <-ctx.Done():
			// Final commit so the open interval is not lost. ctx is
			// done, so use a short independent deadline for the write.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			d.commit(flushCtx)
			cancel()
			d.logger.Info().Msg("Dispatcher stopped")
			return
		}
	}
}

// handle applies one event. Handler errors are logged and dropped; the
// cursor is managed so a failure never corrupts later attribution.
func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case TabActivated:
		d.commit(ctx)
		d.state.SetActive(e.TabID, e.URL, e.Title, d.nowMS())

	case TabUpdated:
		if d.state.TabID == nil || *d.state.TabID != e.TabID {
			// Background tab navigation, nothing to attribute
			return
		}
		if d.state.URL == e.URL {
			// Tab events often arrive without a title; never wipe a
			// known one
			if e.Title != "" {
				d.state.Title = e.Title
			}
			return
		}
		d.commit(ctx)
		d.state.SetActive(e.TabID, e.URL, e.Title, d.nowMS())

	case TabClosed:
		if d.state.TabID == nil || *d.state.TabID != e.TabID {
			return
		}
		d.commit(ctx)
		d.state.Clear()

	case FocusChanged:
		d.commit(ctx)
		if !e.Focused {
			d.state.Clear()
			return
		}
		if e.TabID != nil && e.URL != "" {
			d.state.SetActive(*e.TabID, e.URL, e.Title, d.nowMS())
		}

	case Tick:
		d.commit(ctx)

	default:
		d.logger.Warn().Str("type", ev.Type()).Msg("Unknown event type")
	}
}

func (d *Dispatcher) commit(ctx context.Context) {
	// Commit logs its own failures; the cursor has already advanced so
	// there is nothing further to unwind here
	_ = d.engine.Commit(ctx, &d.state)
}

func (d *Dispatcher) nowMS() int64 {
	return d.clock.Now().UnixMilli()
}
