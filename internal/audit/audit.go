// Package audit records significant game and authentication events
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/alexbotov/tokenburner/internal/domain"
	"github.com/google/uuid"
)

// Event types
const (
	EventKeyRegistered = "key_registered"
	EventTokenIssued   = "token_issued"
	EventAuthFailed    = "auth_failed"
	EventGameStarted   = "game_started"
	EventGameFinished  = "game_finished"
	EventGameExpired   = "game_expired"

	EventGamingDisabled = "gaming_disabled"
	EventGamingEnabled  = "gaming_enabled"
	EventAgentDisabled  = "agent_disabled"
	EventAgentEnabled   = "agent_enabled"
)

// recentLimit bounds the in-memory event history
const recentLimit = 1000

// Service records audit events to the logger, an in-memory history and,
// when db is set, the audit_events table. A nil *Service discards events.
type Service struct {
	db     *sql.DB
	logger *log.Logger

	mu     sync.RWMutex
	recent []*domain.AuditEvent
}

// New creates a new audit service. db may be nil.
func New(db *sql.DB, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{db: db, logger: logger}
}

// LogEvent records a significant event
func (s *Service) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	if s == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	s.logger.Printf("audit: %s agent=%s game=%s %s", event.Type, event.AgentID, event.GameID, event.Description)

	s.mu.Lock()
	s.recent = append(s.recent, event)
	if len(s.recent) > recentLimit {
		s.recent = s.recent[len(s.recent)-recentLimit:]
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	data := event.Data
	if data == nil {
		data = json.RawMessage("null")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, timestamp, agent_id, game_id, description, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.Type, event.Timestamp, event.AgentID, event.GameID, event.Description, string(data))
	if err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}
	return nil
}

// Log is a convenience method for logging events
func (s *Service) Log(ctx context.Context, eventType, description string, data interface{}, opts ...EventOption) error {
	if s == nil {
		return nil
	}

	event := &domain.AuditEvent{
		Type:        eventType,
		Description: description,
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err == nil {
			event.Data = jsonData
		}
	}

	for _, opt := range opts {
		opt(event)
	}

	return s.LogEvent(ctx, event)
}

// EventOption is a functional option for configuring audit events
type EventOption func(*domain.AuditEvent)

// WithAgent sets the agent ID for the event
func WithAgent(agentID string) EventOption {
	return func(e *domain.AuditEvent) {
		e.AgentID = agentID
	}
}

// WithGame sets the game ID for the event
func WithGame(gameID string) EventOption {
	return func(e *domain.AuditEvent) {
		e.GameID = gameID
	}
}

// EventFilter defines criteria for filtering audit events
type EventFilter struct {
	AgentID string
	GameID  string
	Type    string
	Limit   int
}

func (f *EventFilter) matches(e *domain.AuditEvent) bool {
	if f == nil {
		return true
	}
	return (f.AgentID == "" || f.AgentID == e.AgentID) &&
		(f.GameID == "" || f.GameID == e.GameID) &&
		(f.Type == "" || f.Type == e.Type)
}

// GetEvents returns matching events, newest first.
// Events come from the database when one is set, otherwise from memory.
func (s *Service) GetEvents(ctx context.Context, filter *EventFilter) ([]*domain.AuditEvent, error) {
	if s == nil {
		return nil, nil
	}

	limit := 100
	if filter != nil && filter.Limit > 0 {
		limit = filter.Limit
	}

	if s.db != nil {
		return s.queryEvents(ctx, filter, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*domain.AuditEvent
	for i := len(s.recent) - 1; i >= 0 && len(events) < limit; i-- {
		if filter.matches(s.recent[i]) {
			events = append(events, s.recent[i])
		}
	}
	return events, nil
}

func (s *Service) queryEvents(ctx context.Context, filter *EventFilter, limit int) ([]*domain.AuditEvent, error) {
	query := `SELECT id, type, timestamp, agent_id, game_id, description, data
			  FROM audit_events WHERE 1=1`
	args := []interface{}{}
	paramIdx := 1

	if filter != nil {
		if filter.AgentID != "" {
			query += fmt.Sprintf(" AND agent_id = $%d", paramIdx)
			args = append(args, filter.AgentID)
			paramIdx++
		}
		if filter.GameID != "" {
			query += fmt.Sprintf(" AND game_id = $%d", paramIdx)
			args = append(args, filter.GameID)
			paramIdx++
		}
		if filter.Type != "" {
			query += fmt.Sprintf(" AND type = $%d", paramIdx)
			args = append(args, filter.Type)
			paramIdx++
		}
	}

	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", paramIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		var data string

		err := rows.Scan(&event.ID, &event.Type, &event.Timestamp,
			&event.AgentID, &event.GameID, &event.Description, &data)
		if err != nil {
			return nil, err
		}
		if data != "" && data != "null" {
			event.Data = json.RawMessage(data)
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}
