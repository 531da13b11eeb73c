package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRouter creates and configures the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(NotFoundHandler)
	// Method mismatches skip route middleware, so preflights are answered here
	r.MethodNotAllowedHandler = CORSMiddleware(http.HandlerFunc(MethodNotAllowedHandler))

	// Apply global middleware
	r.Use(h.RecoveryMiddleware)
	r.Use(CORSMiddleware)
	r.Use(h.LoggingMiddleware)

	r.HandleFunc("/", h.ServerInfo).Methods("GET")

	api := r.PathPrefix(h.config.Server.PathPrefix).Subrouter()

	// Public routes
	api.HandleFunc("/health", h.HealthCheck).Methods("GET")
	api.HandleFunc("/auth/token", h.IssueToken).Methods("POST", "OPTIONS")
	api.HandleFunc("/keys/register", h.RegisterKey).Methods("POST", "OPTIONS")

	// Operator routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.AdminMiddleware)
	admin.HandleFunc("/status", h.SystemStatus).Methods("GET")
	admin.HandleFunc("/gaming", h.SetGaming).Methods("POST")
	admin.HandleFunc("/agents/{agentId}", h.SetAgent).Methods("POST")
	admin.HandleFunc("/audit", h.AuditEvents).Methods("GET")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(h.AuthMiddleware)

	// Games
	protected.HandleFunc("/games/start", h.StartGame).Methods("POST")
	protected.HandleFunc("/games/{gameId}", h.GetGameStatus).Methods("GET")
	protected.HandleFunc("/games/{gameId}/actions", h.PerformAction).Methods("POST")
	protected.HandleFunc("/games/{gameId}/finish", h.FinishGame).Methods("POST")
	protected.HandleFunc("/games/{gameId}/ws", h.HandleWebSocket).Methods("GET")

	// Leaderboard
	protected.HandleFunc("/leaderboard", h.GetLeaderboard).Methods("GET")
	protected.HandleFunc("/leaderboard/rank/{agentId}", h.GetAgentRank).Methods("GET")

	return r
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowedHandler handles 405 errors
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}
