package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/littleCareless/dish-tab-time/internal/enforce"
	"github.com/littleCareless/dish-tab-time/internal/events"
	"github.com/littleCareless/dish-tab-time/internal/policy"
	"github.com/littleCareless/dish-tab-time/internal/stats"
	"github.com/littleCareless/dish-tab-time/internal/storage"
	"github.com/rs/zerolog"
)

// Server is the HTTP API used by browser clients: event ingestion,
// derived stats, limit management and enforcement state.
type Server struct {
	dispatcher *events.Dispatcher
	aggregator *stats.Aggregator
	evaluator  *policy.Evaluator
	controller *enforce.Controller
	limits     storage.LimitStore
	clock      policy.Clock
	logger     zerolog.Logger
	server     *http.Server

	// DefaultUnlockMinutes is used when an unlock request carries no
	// duration
	DefaultUnlockMinutes int
}

// NewServer creates the API server
func NewServer(addr string, dispatcher *events.Dispatcher, aggregator *stats.Aggregator, evaluator *policy.Evaluator, controller *enforce.Controller, limits storage.LimitStore, clock policy.Clock, logger zerolog.Logger) *Server {
	s := &Server{
		dispatcher: dispatcher,
		aggregator: aggregator,
		evaluator:  evaluator,
		controller: controller,
		limits:     limits,
		clock:      clock,
		logger:     logger.With().Str("component", "api").Logger(),

		DefaultUnlockMinutes: 5,
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logMiddleware)

	r.HandleFunc("/api/events", s.handleIngestEvent).Methods(http.MethodPost)

	r.HandleFunc("/api/stats/daily/{date}", s.handleDailyStats).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/recent", s.handleRecentStats).Methods(http.MethodGet)

	r.HandleFunc("/api/limits", s.handleListLimits).Methods(http.MethodGet)
	r.HandleFunc("/api/limits", s.handleUpsertLimit).Methods(http.MethodPut)
	r.HandleFunc("/api/limits/{domain}", s.handleDeleteLimit).Methods(http.MethodDelete)
	r.HandleFunc("/api/limits/{domain}/toggle", s.handleToggleLimit).Methods(http.MethodPost)
	r.HandleFunc("/api/limits/{domain}/unlock", s.handleUnlockLimit).Methods(http.MethodPost)

	r.HandleFunc("/api/check/{domain}", s.handleCheckDomain).Methods(http.MethodGet)
	r.HandleFunc("/api/blocked", s.handleBlocked).Methods(http.MethodGet)

	return r
}

// Start starts the API server on its configured address
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting API server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Serve starts the API server on a pre-bound listener
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting API server on inherited listener")
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the API server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
