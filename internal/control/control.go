// Package control lets an operator stop play server-wide or for single agents.
//
// Disabling only blocks new games and actions. Status, finish and the
// leaderboard stay available so running games can be wound down.
package control

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alexbotov/tokenburner/internal/audit"
	"github.com/alexbotov/tokenburner/internal/domain"
)

var (
	ErrGamingDisabled = errors.New("gaming is currently disabled")
	ErrAgentDisabled  = errors.New("agent is disabled")
)

// Service holds the gaming switch and the disabled agents.
// State is persisted when db is set.
type Service struct {
	db    *sql.DB
	audit *audit.Service

	mu             sync.RWMutex
	gamingEnabled  bool
	disabledAt     *time.Time
	disabledBy     string
	disabledReason string
	disabledAgents map[string]string
}

// New creates a new control service. db and auditSvc may be nil.
func New(db *sql.DB, auditSvc *audit.Service) *Service {
	return &Service{
		db:             db,
		audit:          auditSvc,
		gamingEnabled:  true,
		disabledAgents: make(map[string]string),
	}
}

// DisableAllGaming stops new games and actions for every agent
func (s *Service) DisableAllGaming(ctx context.Context, reason, authorizedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if err := s.saveGamingState(ctx, false, now, authorizedBy, reason); err != nil {
		return err
	}

	s.gamingEnabled = false
	s.disabledAt = &now
	s.disabledBy = authorizedBy
	s.disabledReason = reason

	s.audit.Log(ctx, audit.EventGamingDisabled,
		fmt.Sprintf("All gaming disabled: %s", reason),
		map[string]string{"authorizedBy": authorizedBy, "reason": reason})
	return nil
}

// EnableAllGaming resumes play
func (s *Service) EnableAllGaming(ctx context.Context, authorizedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveGamingState(ctx, true, time.Now().UTC(), authorizedBy, ""); err != nil {
		return err
	}

	s.gamingEnabled = true
	s.disabledAt = nil
	s.disabledBy = ""
	s.disabledReason = ""

	s.audit.Log(ctx, audit.EventGamingEnabled, "All gaming enabled",
		map[string]string{"authorizedBy": authorizedBy})
	return nil
}

func (s *Service) saveGamingState(ctx context.Context, enabled bool, at time.Time, by, reason string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_state (key, value, reason, updated_at, updated_by)
		VALUES ('gaming_enabled', $1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET value = $1, reason = $2, updated_at = $3, updated_by = $4
	`, fmt.Sprint(enabled), reason, at, by)
	if err != nil {
		return fmt.Errorf("failed to persist gaming state: %w", err)
	}
	return nil
}

// DisableAgent stops new games and actions for one agent
func (s *Service) DisableAgent(ctx context.Context, agentID, reason, authorizedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO disabled_agents (agent_id, reason, disabled_at, disabled_by)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (agent_id) DO UPDATE SET reason = $2, disabled_at = $3, disabled_by = $4
		`, agentID, reason, time.Now().UTC(), authorizedBy)
		if err != nil {
			return fmt.Errorf("failed to persist agent state: %w", err)
		}
	}

	s.disabledAgents[agentID] = reason

	s.audit.Log(ctx, audit.EventAgentDisabled,
		fmt.Sprintf("Agent disabled: %s", reason),
		map[string]string{"authorizedBy": authorizedBy, "reason": reason},
		audit.WithAgent(agentID))
	return nil
}

// EnableAgent lets a disabled agent play again
func (s *Service) EnableAgent(ctx context.Context, agentID, authorizedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM disabled_agents WHERE agent_id = $1`, agentID); err != nil {
			return fmt.Errorf("failed to persist agent state: %w", err)
		}
	}

	delete(s.disabledAgents, agentID)

	s.audit.Log(ctx, audit.EventAgentEnabled, "Agent enabled",
		map[string]string{"authorizedBy": authorizedBy},
		audit.WithAgent(agentID))
	return nil
}

// IsGamingEnabled reports the server-wide switch
func (s *Service) IsGamingEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gamingEnabled
}

// IsAgentEnabled reports whether agentID has been disabled
func (s *Service) IsAgentEnabled(agentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, disabled := s.disabledAgents[agentID]
	return !disabled
}

// CheckAccess verifies agentID may start games and perform actions
func (s *Service) CheckAccess(agentID string) error {
	if !s.IsGamingEnabled() {
		return ErrGamingDisabled
	}
	if !s.IsAgentEnabled(agentID) {
		return ErrAgentDisabled
	}
	return nil
}

// Status returns the current switch state and disabled agents
func (s *Service) Status() *domain.SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]string, 0, len(s.disabledAgents))
	for id := range s.disabledAgents {
		agents = append(agents, id)
	}
	sort.Strings(agents)

	return &domain.SystemStatus{
		GamingEnabled:  s.gamingEnabled,
		DisabledAt:     s.disabledAt,
		DisabledBy:     s.disabledBy,
		DisabledReason: s.disabledReason,
		DisabledAgents: agents,
	}
}

// LoadState restores persisted state on startup. It is a no-op without a database.
func (s *Service) LoadState(ctx context.Context) error {
	if s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		value, reason, by string
		at                time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT value, reason, updated_at, updated_by FROM system_state WHERE key = 'gaming_enabled'
	`).Scan(&value, &reason, &at, &by)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to load gaming state: %w", err)
	default:
		s.gamingEnabled = value != "false"
		if !s.gamingEnabled {
			at = at.UTC()
			s.disabledAt = &at
			s.disabledBy = by
			s.disabledReason = reason
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT agent_id, reason FROM disabled_agents`)
	if err != nil {
		return fmt.Errorf("failed to load disabled agents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var agentID, reason string
		if err := rows.Scan(&agentID, &reason); err != nil {
			return err
		}
		s.disabledAgents[agentID] = reason
	}
	return rows.Err()
}
