// Package http implements the REST API of the gamification engine.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/listora/gamification-engine/internal/application/command"
	"github.com/listora/gamification-engine/internal/application/query"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Gamification Engine API",
		"version":     "v1",
		"description": "Points, levels, streaks, badges, challenges and leaderboards",
		"endpoints": map[string]string{
			"health":      "/health",
			"events":      "/api/v1/events",
			"dashboard":   "/api/v1/users/{id}/dashboard",
			"leaderboard": "/api/v1/leaderboard",
			"badges":      "/api/v1/badges",
			"challenges":  "/api/v1/challenges",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles the metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps a domain error to an HTTP status and error code.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Request validation failed", err.Error())
	case shared.IsUnknownUser(err):
		writeJSONError(w, http.StatusNotFound, "unknown_user", "User has no recorded activity")
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", "Requested resource not found")
	case shared.IsConflict(err):
		writeJSONError(w, http.StatusConflict, "conflict", "Concurrent update conflict, retry the request")
	case shared.IsRetryable(err):
		writeJSONError(w, http.StatusServiceUnavailable, "store_unavailable", "Storage is temporarily unavailable")
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT INGESTION
// ══════════════════════════════════════════════════════════════════════════════

// submitEventRequest is the JSON body of POST /api/v1/events.
type submitEventRequest struct {
	EventID     string                 `json:"event_id"`
	UserID      string                 `json:"user_id"`
	Type        string                 `json:"type"`
	PointsDelta int64                  `json:"points_delta"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}

// handleSubmitEvent handles POST /api/v1/events
func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitEventHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Event handler not configured")
		return
	}

	var req submitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload", err.Error())
		return
	}
	defer r.Body.Close()

	cmd := command.SubmitEventCommand{
		EventID:     req.EventID,
		UserID:      req.UserID,
		Type:        req.Type,
		PointsDelta: req.PointsDelta,
		OccurredAt:  req.OccurredAt,
		Payload:     req.Payload,
	}

	result, err := s.deps.SubmitEventHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.logger.Error("failed to submit event",
			logger.Err(err),
			logger.UserID(req.UserID),
			logger.EventID(req.EventID),
		)
		writeDomainError(w, err)
		return
	}

	// A duplicate is not an error: the first submission already took effect.
	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}

	writeJSON(w, status, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// USER REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// registerUserRequest is the JSON body of PUT /api/v1/users/{id}.
type registerUserRequest struct {
	DisplayName string `json:"display_name"`
	TimeZone    string `json:"time_zone"`
}

// handleRegisterUser handles PUT /api/v1/users/{id}
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	if s.deps.RegisterUserHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "User handler not configured")
		return
	}

	userID := r.PathValue("id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload", err.Error())
		return
	}
	defer r.Body.Close()

	cmd := command.RegisterUserCommand{
		UserID:      userID,
		DisplayName: req.DisplayName,
		TimeZone:    req.TimeZone,
	}

	result, err := s.deps.RegisterUserHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.logger.Error("failed to register user", logger.Err(err), logger.UserID(userID))
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleGetDashboard handles GET /api/v1/users/{id}/dashboard
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	if s.deps.GetDashboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Dashboard handler not configured")
		return
	}

	q := query.GetDashboardQuery{UserID: userID}

	result, err := s.deps.GetDashboardHandler.Handle(r.Context(), q)
	if err != nil {
		if !shared.IsUnknownUser(err) {
			s.logger.Error("failed to get dashboard", logger.Err(err), logger.UserID(userID))
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	q := query.GetLeaderboardQuery{
		Scope:  getQueryParam(r, "scope", ""),
		Window: getQueryParam(r, "window", ""),
		Limit:  getQueryParamInt(r, "limit", 20),
		Offset: getQueryParamInt(r, "offset", 0),
		UserID: getQueryParam(r, "user_id", ""),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to get leaderboard", logger.Err(err),
			logger.Scope(q.Scope), logger.Window(q.Window))
		writeDomainError(w, err)
		return
	}

	meta := &ResponseMeta{
		TotalCount: result.TotalCount,
		PageSize:   q.Limit,
		HasMore:    result.HasMore,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListBadges handles GET /api/v1/badges
func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListBadgesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Badge handler not configured")
		return
	}

	q := query.ListBadgesQuery{
		UserID: getQueryParam(r, "user_id", ""),
	}

	result, err := s.deps.ListBadgesHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to list badges", logger.Err(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetUserBadges handles GET /api/v1/users/{id}/badges
func (s *Server) handleGetUserBadges(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	if s.deps.ListBadgesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Badge handler not configured")
		return
	}

	result, err := s.deps.ListBadgesHandler.Handle(r.Context(), query.ListBadgesQuery{UserID: userID})
	if err != nil {
		s.logger.Error("failed to list user badges", logger.Err(err), logger.UserID(userID))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListChallenges handles GET /api/v1/challenges
func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListChallengesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Challenge handler not configured")
		return
	}

	q := query.ListChallengesQuery{
		UserID:     getQueryParam(r, "user_id", ""),
		ActiveOnly: getQueryParamBool(r, "active_only"),
	}

	result, err := s.deps.ListChallengesHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to list challenges", logger.Err(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetUserChallenges handles GET /api/v1/users/{id}/challenges
func (s *Server) handleGetUserChallenges(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	if s.deps.ListChallengesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Challenge handler not configured")
		return
	}

	q := query.ListChallengesQuery{
		UserID:     userID,
		ActiveOnly: getQueryParamBool(r, "active_only"),
	}

	result, err := s.deps.ListChallengesHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to list user challenges", logger.Err(err), logger.UserID(userID))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMINISTRATIVE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleReplayLedger handles POST /api/v1/admin/replay
//
// Rebuilds all derived state from the event ledger. Long-running on large
// ledgers, so the request context controls cancellation.
func (s *Server) handleReplayLedger(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReplayLedgerHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Replay handler not configured")
		return
	}

	s.logger.Info("ledger replay requested", logger.String("ip", getClientIP(r)))

	result, err := s.deps.ReplayLedgerHandler.Handle(r.Context())
	if err != nil {
		s.logger.Error("ledger replay failed", logger.Err(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRebuildLeaderboards handles POST /api/v1/admin/leaderboards/rebuild
func (s *Server) handleRebuildLeaderboards(w http.ResponseWriter, r *http.Request) {
	if s.deps.RebuildLeaderboardsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Rebuild handler not configured")
		return
	}

	s.logger.Info("leaderboard rebuild requested", logger.String("ip", getClientIP(r)))

	result, err := s.deps.RebuildLeaderboardsHandler.Handle(r.Context(), command.RebuildLeaderboardsCommand{})
	if err != nil {
		s.logger.Error("leaderboard rebuild failed", logger.Err(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
