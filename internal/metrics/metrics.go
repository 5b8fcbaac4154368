package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// CommitsTotal counts interval commits by result
	CommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabtime_commits_total",
		Help: "Total number of attribution interval commits by result",
	}, []string{"result"})

	// AttributedMillisecondsTotal counts attributed active time
	AttributedMillisecondsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabtime_attributed_milliseconds_total",
		Help: "Total milliseconds of active time attributed to records",
	})

	// DiscardedIntervalsTotal counts intervals rejected by the sanity check
	DiscardedIntervalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabtime_discarded_intervals_total",
		Help: "Total number of intervals discarded by the sanity check",
	}, []string{"reason"})

	// EvaluationsTotal counts policy evaluations by resulting status
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabtime_evaluations_total",
		Help: "Total number of limit evaluations by status",
	}, []string{"status"})

	// NotificationsTotal counts user notifications sent
	NotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabtime_notifications_total",
		Help: "Total number of limit notifications sent",
	})

	// NotificationsThrottledTotal counts notifications suppressed by the cooldown
	NotificationsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabtime_notifications_throttled_total",
		Help: "Total number of notifications suppressed by the cooldown",
	})

	// BlockedDomains tracks the current size of the block set
	BlockedDomains = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tabtime_blocked_domains",
		Help: "Current number of domains in the block set",
	})

	// EventsTotal counts ingested browser events by type
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabtime_events_total",
		Help: "Total number of browser events ingested by type",
	}, []string{"type"})

	// EventsDroppedTotal counts events dropped because the buffer was full
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabtime_events_dropped_total",
		Help: "Total number of events dropped due to a full buffer",
	})

	// DNSQueriesTotal counts DNS queries by outcome
	DNSQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabtime_dns_queries_total",
		Help: "Total number of DNS queries by outcome",
	}, []string{"outcome"})

	// RetentionDeletedDaysTotal counts days removed by the retention sweeper
	RetentionDeletedDaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabtime_retention_deleted_days_total",
		Help: "Total number of days removed by the retention sweeper",
	})
)

// Server serves Prometheus metrics and a health endpoint
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start starts the metrics server on its configured address
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Serve starts the metrics server on a pre-bound listener
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting metrics server on inherited listener")
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
