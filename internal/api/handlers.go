package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/littleCareless/dish-tab-time/internal/events"
	"github.com/littleCareless/dish-tab-time/internal/stats"
	"github.com/littleCareless/dish-tab-time/internal/storage"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ingestPayload is the wire form of a browser event: a type tag plus
// the union of all event fields.
type ingestPayload struct {
	Type    string `json:"type"`
	TabID   *int   `json:"tab_id,omitempty"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Focused *bool  `json:"focused,omitempty"`
}

func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var payload ingestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	var ev events.Event
	switch payload.Type {
	case "tab_activated":
		if payload.TabID == nil {
			s.writeError(w, http.StatusBadRequest, "tab_activated requires tab_id")
			return
		}
		ev = events.TabActivated{TabID: *payload.TabID, URL: payload.URL, Title: payload.Title}
	case "tab_updated":
		if payload.TabID == nil {
			s.writeError(w, http.StatusBadRequest, "tab_updated requires tab_id")
			return
		}
		ev = events.TabUpdated{TabID: *payload.TabID, URL: payload.URL, Title: payload.Title}
	case "tab_closed":
		if payload.TabID == nil {
			s.writeError(w, http.StatusBadRequest, "tab_closed requires tab_id")
			return
		}
		ev = events.TabClosed{TabID: *payload.TabID}
	case "focus_changed":
		if payload.Focused == nil {
			s.writeError(w, http.StatusBadRequest, "focus_changed requires focused")
			return
		}
		ev = events.FocusChanged{Focused: *payload.Focused, TabID: payload.TabID, URL: payload.URL, Title: payload.Title}
	case "tick":
		ev = events.Tick{}
	default:
		s.writeError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	// Wait until the dispatcher has applied the event so the block set
	// in the response reflects it: a block triggered by this very event
	// must reach the client now, not on the next navigation
	if err := s.dispatcher.EnqueueWait(r.Context(), ev); err != nil {
		if err == events.ErrBufferFull {
			s.writeError(w, http.StatusServiceUnavailable, "event buffer full")
			return
		}
		s.writeError(w, http.StatusServiceUnavailable, "event not applied")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "accepted",
		"blocked": s.controller.Blocked(),
	})
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if !dateRe.MatchString(date) {
		s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	daily, err := s.aggregator.Daily(r.Context(), date)
	if err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("Failed to compute daily stats")
		s.writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	s.writeJSON(w, http.StatusOK, daily)
}

func (s *Server) handleRecentStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			s.writeError(w, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = parsed
	}

	recent, err := s.aggregator.RecentDays(r.Context(), days)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute recent stats")
		s.writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	s.writeJSON(w, http.StatusOK, recent)
}

func (s *Server) handleListLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := s.limits.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list limits")
		s.writeError(w, http.StatusInternalServerError, "failed to list limits")
		return
	}

	s.writeJSON(w, http.StatusOK, limits)
}

// limitPayload allows partial updates: omitted fields keep their
// stored values when the domain already has a config.
type limitPayload struct {
	Domain         string  `json:"domain"`
	MatchPattern   *string `json:"match_pattern"`
	DailyLimitMS   *int64  `json:"daily_limit_ms"`
	WorkdayLimitMS *int64  `json:"workday_limit_ms"`
	WeekendLimitMS *int64  `json:"weekend_limit_ms"`
	Enabled        *bool   `json:"enabled"`
}

func (s *Server) handleUpsertLimit(w http.ResponseWriter, r *http.Request) {
	var payload limitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid limit payload")
		return
	}
	if payload.Domain == "" {
		s.writeError(w, http.StatusBadRequest, "domain is required")
		return
	}
	if payload.DailyLimitMS != nil && *payload.DailyLimitMS < 0 {
		s.writeError(w, http.StatusBadRequest, "daily_limit_ms must not be negative")
		return
	}

	existing, err := s.limits.Get(r.Context(), payload.Domain)
	if err != nil && err != storage.ErrNotFound {
		s.logger.Error().Err(err).Msg("Failed to load limit")
		s.writeError(w, http.StatusInternalServerError, "failed to load limit")
		return
	}

	merged := storage.WebsiteLimit{Domain: payload.Domain, Enabled: true}
	if existing != nil {
		merged = *existing
	}
	if payload.MatchPattern != nil {
		merged.MatchPattern = *payload.MatchPattern
	}
	if payload.DailyLimitMS != nil {
		merged.DailyLimitMS = *payload.DailyLimitMS
	}
	if payload.WorkdayLimitMS != nil {
		merged.WorkdayLimitMS = payload.WorkdayLimitMS
	}
	if payload.WeekendLimitMS != nil {
		merged.WeekendLimitMS = payload.WeekendLimitMS
	}
	if payload.Enabled != nil {
		merged.Enabled = *payload.Enabled
	}

	if err := s.limits.Upsert(r.Context(), merged); err != nil {
		s.logger.Error().Err(err).Msg("Failed to store limit")
		s.writeError(w, http.StatusInternalServerError, "failed to store limit")
		return
	}

	if !merged.Enabled {
		s.controller.Release(merged.Domain)
	}

	s.writeJSON(w, http.StatusOK, merged)
}

func (s *Server) handleDeleteLimit(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]

	if err := s.limits.Delete(r.Context(), domain); err != nil {
		if err == storage.ErrNotFound {
			s.writeError(w, http.StatusNotFound, "limit not found")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to delete limit")
		s.writeError(w, http.StatusInternalServerError, "failed to delete limit")
		return
	}

	s.controller.Release(domain)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleToggleLimit(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]

	limit, err := s.limits.Get(r.Context(), domain)
	if err != nil {
		if err == storage.ErrNotFound {
			s.writeError(w, http.StatusNotFound, "limit not found")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to load limit")
		s.writeError(w, http.StatusInternalServerError, "failed to load limit")
		return
	}

	limit.Enabled = !limit.Enabled
	if err := s.limits.Upsert(r.Context(), *limit); err != nil {
		s.logger.Error().Err(err).Msg("Failed to store limit")
		s.writeError(w, http.StatusInternalServerError, "failed to store limit")
		return
	}

	if !limit.Enabled {
		s.controller.Release(domain)
	}

	s.writeJSON(w, http.StatusOK, limit)
}

type unlockPayload struct {
	Minutes int `json:"minutes"`
}

func (s *Server) handleUnlockLimit(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]

	var payload unlockPayload
	if r.Body != nil {
		// An empty body means the default unlock duration
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}
	if payload.Minutes <= 0 {
		payload.Minutes = s.DefaultUnlockMinutes
	}

	if err := s.controller.Unlock(r.Context(), domain, payload.Minutes); err != nil {
		if err == storage.ErrNotFound {
			s.writeError(w, http.StatusNotFound, "limit not found")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to unlock")
		s.writeError(w, http.StatusInternalServerError, "failed to unlock")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "unlocked",
		"domain":  domain,
		"minutes": payload.Minutes,
	})
}

// checkResponse is the evaluation of one domain right now
type checkResponse struct {
	Domain      string `json:"domain"`
	Status      string `json:"status"`
	UsedMS      int64  `json:"used_ms"`
	LimitMS     int64  `json:"limit_ms"`
	UsedHuman   string `json:"used_human"`
	LimitHuman  string `json:"limit_human,omitempty"`
	HasLimit    bool   `json:"has_limit"`
	LimitDomain string `json:"limit_domain,omitempty"`
}

func (s *Server) handleCheckDomain(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]

	limits, err := s.limits.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list limits")
		s.writeError(w, http.StatusInternalServerError, "failed to list limits")
		return
	}

	date := storage.DayKey(s.clock.Now())
	used, err := s.aggregator.DomainUsage(r.Context(), date, domain)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute usage")
		s.writeError(w, http.StatusInternalServerError, "failed to compute usage")
		return
	}

	eval := s.evaluator.Evaluate(domain, used, limits)

	resp := checkResponse{
		Domain:    domain,
		Status:    string(eval.Status),
		UsedMS:    eval.UsedMS,
		LimitMS:   eval.EffectiveLimitMS,
		UsedHuman: stats.FormatTimeSpent(eval.UsedMS),
		HasLimit:  eval.Limit != nil,
	}
	if eval.Limit != nil {
		resp.LimitHuman = stats.FormatTimeLimit(eval.EffectiveLimitMS)
		resp.LimitDomain = eval.Limit.Domain
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBlocked(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"blocked": s.controller.Blocked()})
}
