// Package api provides the HTTP API of the reference Token Burner server
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/alexbotov/tokenburner/internal/audit"
	"github.com/alexbotov/tokenburner/internal/auth"
	"github.com/alexbotov/tokenburner/internal/config"
	"github.com/alexbotov/tokenburner/internal/control"
	"github.com/alexbotov/tokenburner/internal/domain"
	"github.com/alexbotov/tokenburner/internal/game"
	"github.com/alexbotov/tokenburner/internal/rng"
	"github.com/gorilla/mux"
)

// Pinger reports database reachability
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler contains all HTTP handlers
type Handler struct {
	auth    *auth.Service
	audit   *audit.Service
	control *control.Service
	game    *game.Engine
	rng     *rng.Service
	db      Pinger
	config  *config.Config
	logger  *log.Logger

	startLimiter    *keyedLimiter // by agent
	registerLimiter *keyedLimiter // by client IP
}

// New creates a new API handler. db may be nil when games are kept in memory.
func New(cfg *config.Config, authSvc *auth.Service, gameEngine *game.Engine, rngSvc *rng.Service,
	auditSvc *audit.Service, ctrl *control.Service, db Pinger, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	if ctrl == nil {
		ctrl = control.New(nil, auditSvc)
	}
	return &Handler{
		auth:    authSvc,
		audit:   auditSvc,
		control: ctrl,
		game:    gameEngine,
		rng:     rngSvc,
		db:      db,
		config:  cfg,
		logger:  logger,

		startLimiter:    newKeyedLimiter(cfg.RateLimit.StartInterval, cfg.RateLimit.StartBurst),
		registerLimiter: newKeyedLimiter(cfg.RateLimit.RegisterInterval, cfg.RateLimit.RegisterBurst),
	}
}

// Response helpers

// APIError is the body of every non-2xx response
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, APIError{Error: message, Code: code})
}

// === Health & Info ===

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	database := "memory"
	if h.db != nil {
		database = "connected"
		if err := h.db.PingContext(r.Context()); err != nil {
			database = "disconnected"
		}
	}

	rngHealth, _ := h.rng.HealthCheck()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  database,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"env":       h.config.Server.Env,
		"rng":       rngHealth,
	})
}

// ServerInfo handles GET /
func (h *Handler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Token Burner",
		"version": "2.0.0",
		"api":     h.config.Server.PathPrefix,
		"methods": domain.ActionMethods,
	})
}

// === Authentication ===

type tokenRequest struct {
	AgentID string `json:"agentId"`
	APIKey  string `json:"apiKey"`
}

// IssueToken handles POST /auth/token
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.APIKey == "" {
		respondError(w, http.StatusBadRequest, "MISSING_API_KEY", "apiKey is required")
		return
	}

	resp, err := h.auth.Authenticate(req.AgentID, req.APIKey)
	if err != nil {
		h.audit.Log(r.Context(), audit.EventAuthFailed, err.Error(), nil, audit.WithAgent(req.AgentID))
		switch {
		case errors.Is(err, auth.ErrInvalidAPIKey):
			respondError(w, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key")
		case errors.Is(err, auth.ErrAgentMismatch):
			respondError(w, http.StatusUnauthorized, "AGENT_MISMATCH", "API key does not belong to agent")
		default:
			respondError(w, http.StatusInternalServerError, "AUTH_ERROR", "Failed to issue token")
		}
		return
	}

	h.audit.Log(r.Context(), audit.EventTokenIssued, "Bearer token issued",
		map[string]string{"expiresAt": resp.ExpiresAt}, audit.WithAgent(resp.AgentID))

	respondJSON(w, http.StatusOK, resp)
}

type registerRequest struct {
	AgentID string `json:"agentId"`
}

type registerResponse struct {
	AgentID   string `json:"agentId"`
	APIKey    string `json:"apiKey"`
	CreatedAt string `json:"createdAt"`
}

// RegisterKey handles POST /keys/register
func (h *Handler) RegisterKey(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !h.registerLimiter.Allow(ip) {
		respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many key registrations, try again later")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	agent, apiKey, err := h.auth.RegisterGenerated(req.AgentID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidAgent):
			respondError(w, http.StatusBadRequest, "INVALID_AGENT_ID", err.Error())
		case errors.Is(err, auth.ErrAgentExists):
			respondError(w, http.StatusConflict, "AGENT_EXISTS", "Agent already has an API key")
		default:
			h.logger.Printf("register error: %v", err)
			respondError(w, http.StatusInternalServerError, "REGISTER_ERROR", "Failed to register API key")
		}
		return
	}

	h.audit.Log(r.Context(), audit.EventKeyRegistered, "API key registered",
		map[string]string{"ip": ip, "keyHash": agent.KeyHash}, audit.WithAgent(agent.ID))

	respondJSON(w, http.StatusCreated, registerResponse{
		AgentID:   agent.ID,
		APIKey:    apiKey,
		CreatedAt: agent.CreatedAt.Format(time.RFC3339),
	})
}

// === Games ===

type startRequest struct {
	Duration *int `json:"duration"`
}

// StartGame handles POST /games/start
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	duration := h.config.Game.DefaultDuration
	if req.Duration != nil {
		duration = *req.Duration
	}

	agentID := agentFromContext(r.Context())
	if !h.checkAccess(w, agentID) {
		return
	}
	if !h.startLimiter.Allow(agentID) {
		respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many games started, try again later")
		return
	}

	started, err := h.game.StartGame(r.Context(), agentID, duration)
	if err != nil {
		h.respondGameError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, started)
}

// GetGameStatus handles GET /games/{gameId}
func (h *Handler) GetGameStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.game.Status(r.Context(), mux.Vars(r)["gameId"])
	if err != nil {
		h.respondGameError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

type actionRequest struct {
	Method domain.ActionMethod `json:"method"`
}

// PerformAction handles POST /games/{gameId}/actions
func (h *Handler) PerformAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if !h.checkAccess(w, agentFromContext(r.Context())) {
		return
	}

	result, err := h.game.PerformAction(r.Context(), mux.Vars(r)["gameId"], req.Method)
	if err != nil {
		h.respondGameError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// FinishGame handles POST /games/{gameId}/finish
func (h *Handler) FinishGame(w http.ResponseWriter, r *http.Request) {
	result, err := h.game.Finish(r.Context(), mux.Vars(r)["gameId"])
	if err != nil {
		h.respondGameError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// accessError maps a control error to a response; blocked is false when play is allowed
func accessError(err error) (status int, code, message string, blocked bool) {
	switch {
	case errors.Is(err, control.ErrGamingDisabled):
		return http.StatusServiceUnavailable, "GAMING_DISABLED", "Gaming is currently disabled", true
	case errors.Is(err, control.ErrAgentDisabled):
		return http.StatusForbidden, "AGENT_DISABLED", "Agent is disabled", true
	}
	return 0, "", "", false
}

// checkAccess writes an error response and returns false when play is blocked for agentID
func (h *Handler) checkAccess(w http.ResponseWriter, agentID string) bool {
	if status, code, message, blocked := accessError(h.control.CheckAccess(agentID)); blocked {
		respondError(w, status, code, message)
		return false
	}
	return true
}

// gameError maps an engine error to a response
func gameError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		return http.StatusNotFound, "GAME_NOT_FOUND", "Game not found"
	case errors.Is(err, game.ErrGameNotPlaying):
		return http.StatusBadRequest, "GAME_NOT_PLAYING", "Game is not in playing state"
	case errors.Is(err, game.ErrInvalidMethod):
		return http.StatusBadRequest, "INVALID_METHOD", "Invalid method"
	case errors.Is(err, game.ErrInvalidDuration):
		return http.StatusBadRequest, "INVALID_DURATION", err.Error()
	default:
		return http.StatusInternalServerError, "GAME_ERROR", "Internal server error"
	}
}

func (h *Handler) respondGameError(w http.ResponseWriter, err error) {
	status, code, message := gameError(err)
	if status == http.StatusInternalServerError {
		h.logger.Printf("game error: %v", err)
	}
	respondError(w, status, code, message)
}

// === Leaderboard ===

// GetLeaderboard handles GET /leaderboard
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), h.config.Game.LeaderboardLimit)

	entries, err := h.game.Leaderboard(r.Context(), limit)
	if err != nil {
		h.logger.Printf("leaderboard error: %v", err)
		respondError(w, http.StatusInternalServerError, "LEADERBOARD_ERROR", "Failed to get leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// parseLimit returns the limit query value when it lies in [1, upper], otherwise 0
func parseLimit(value string, upper int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 || n > upper {
		return 0
	}
	return n
}

// GetAgentRank handles GET /leaderboard/rank/{agentId}
func (h *Handler) GetAgentRank(w http.ResponseWriter, r *http.Request) {
	rank, err := h.game.AgentRank(r.Context(), mux.Vars(r)["agentId"])
	if err != nil {
		h.logger.Printf("rank error: %v", err)
		respondError(w, http.StatusInternalServerError, "LEADERBOARD_ERROR", "Failed to get rank")
		return
	}

	respondJSON(w, http.StatusOK, rank)
}
