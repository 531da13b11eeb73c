package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/alexbotov/tokenburner/internal/audit"
	"github.com/gorilla/mux"
)

const operatorName = "admin"

// AdminMiddleware requires the configured admin key in X-Admin-Key.
// Without a configured key the admin routes do not exist.
func (h *Handler) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := h.config.Auth.AdminKey
		if want == "" {
			NotFoundHandler(w, r)
			return
		}
		got := r.Header.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			respondError(w, http.StatusUnauthorized, "INVALID_ADMIN_KEY", "Invalid admin key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type switchRequest struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
}

// SystemStatus handles GET /admin/status
func (h *Handler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.control.Status())
}

// SetGaming handles POST /admin/gaming
func (h *Handler) SetGaming(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	var err error
	if req.Enabled {
		err = h.control.EnableAllGaming(r.Context(), operatorName)
	} else {
		err = h.control.DisableAllGaming(r.Context(), req.Reason, operatorName)
	}
	if err != nil {
		h.logger.Printf("control error: %v", err)
		respondError(w, http.StatusInternalServerError, "CONTROL_ERROR", "Failed to change gaming state")
		return
	}

	respondJSON(w, http.StatusOK, h.control.Status())
}

// SetAgent handles POST /admin/agents/{agentId}
func (h *Handler) SetAgent(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	agentID := mux.Vars(r)["agentId"]
	var err error
	if req.Enabled {
		err = h.control.EnableAgent(r.Context(), agentID, operatorName)
	} else {
		err = h.control.DisableAgent(r.Context(), agentID, req.Reason, operatorName)
	}
	if err != nil {
		h.logger.Printf("control error: %v", err)
		respondError(w, http.StatusInternalServerError, "CONTROL_ERROR", "Failed to change agent state")
		return
	}

	respondJSON(w, http.StatusOK, h.control.Status())
}

// AuditEvents handles GET /admin/audit?agentId=&gameId=&type=&limit=
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &audit.EventFilter{
		AgentID: q.Get("agentId"),
		GameID:  q.Get("gameId"),
		Type:    q.Get("type"),
		Limit:   parseLimit(q.Get("limit"), 1000),
	}

	events, err := h.audit.GetEvents(r.Context(), filter)
	if err != nil {
		h.logger.Printf("audit error: %v", err)
		respondError(w, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to get audit events")
		return
	}
	if events == nil {
		respondJSON(w, http.StatusOK, []struct{}{})
		return
	}

	respondJSON(w, http.StatusOK, events)
}
