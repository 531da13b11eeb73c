// Package game provides the reference Token Burner game engine
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/tokenburner/internal/audit"
	"github.com/alexbotov/tokenburner/internal/config"
	"github.com/alexbotov/tokenburner/internal/domain"
	"github.com/alexbotov/tokenburner/internal/rng"
	"github.com/google/uuid"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameNotPlaying  = errors.New("game is not playing")
	ErrInvalidMethod   = errors.New("invalid action method")
	ErrInvalidDuration = errors.New("invalid game duration")
)

// Engine runs games against a repository
type Engine struct {
	repo  Repository
	rng   *rng.Service
	audit *audit.Service
	rules config.GameConfig
	now   func() time.Time
}

// New creates a new game engine. auditSvc may be nil.
func New(repo Repository, rngSvc *rng.Service, auditSvc *audit.Service, rules config.GameConfig) *Engine {
	return &Engine{
		repo:  repo,
		rng:   rngSvc,
		audit: auditSvc,
		rules: rules,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// StartGame creates a game for agentID lasting duration seconds
func (e *Engine) StartGame(ctx context.Context, agentID string, duration int) (*domain.GameStarted, error) {
	if duration < e.rules.MinDuration || duration > e.rules.MaxDuration {
		return nil, fmt.Errorf("%w: must be between %d and %d seconds",
			ErrInvalidDuration, e.rules.MinDuration, e.rules.MaxDuration)
	}

	now := e.now()
	g := &domain.Game{
		ID:               "game_" + uuid.New().String(),
		AgentID:          agentID,
		Status:           domain.GameStatusPlaying,
		ComplexityWeight: 1,
		Duration:         duration,
		EndsAt:           now.Add(time.Duration(duration) * time.Second),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := e.repo.CreateGame(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	e.audit.Log(ctx, audit.EventGameStarted,
		fmt.Sprintf("Game started for %d seconds", duration),
		map[string]interface{}{"duration": duration, "endsAt": g.EndsAt},
		audit.WithAgent(agentID), audit.WithGame(g.ID))

	return &domain.GameStarted{
		GameID:   g.ID,
		Status:   g.Status,
		EndsAt:   g.EndsAt.Format(time.RFC3339Nano),
		Duration: g.Duration,
	}, nil
}

// Status returns the game's state, finishing it when its time is up
func (e *Engine) Status(ctx context.Context, gameID string) (*domain.GameState, error) {
	g, err := e.repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	timeLeft := g.TimeLeft(e.now())
	if g.Status == domain.GameStatusPlaying && timeLeft == 0 {
		if g, err = e.finish(ctx, gameID, audit.EventGameExpired); err != nil {
			return nil, err
		}
	}

	return &domain.GameState{
		GameID:            g.ID,
		Status:            g.Status,
		TokensBurned:      g.TokensBurned,
		ComplexityWeight:  g.ComplexityWeight,
		InefficiencyScore: g.InefficiencyScore,
		Score:             g.Score,
		TimeLeft:          timeLeft,
		TotalActions:      g.TotalActions,
	}, nil
}

// PerformAction runs one action against a playing game.
// The action's totals are added by the repository, so actions and finishes
// racing on the same game never overwrite each other.
func (e *Engine) PerformAction(ctx context.Context, gameID string, method domain.ActionMethod) (*domain.ActionResult, error) {
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}

	g, err := e.repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Status != domain.GameStatusPlaying {
		return nil, ErrGameNotPlaying
	}
	if g.TimeLeft(e.now()) == 0 {
		if _, err := e.finish(ctx, gameID, audit.EventGameExpired); err != nil {
			return nil, err
		}
		return nil, ErrGameNotPlaying
	}

	sim, err := e.simulate(method)
	if err != nil {
		return nil, fmt.Errorf("failed to simulate action: %w", err)
	}

	text := preview(sim.Text)
	action := &domain.Action{
		GameID:            gameID,
		Method:            method,
		TokensBurned:      EstimateTokens(sim.Text),
		ComplexityWeight:  sim.ComplexityWeight,
		InefficiencyScore: sim.InefficiencyScore,
		TextPreview:       text,
		CreatedAt:         e.now(),
	}
	updated, err := e.repo.RecordAction(ctx, action)
	switch {
	case errors.Is(err, ErrGameNotPlaying), errors.Is(err, ErrGameNotFound):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to record action: %w", err)
	}

	return &domain.ActionResult{
		TokensBurned:      action.TokensBurned,
		ComplexityWeight:  sim.ComplexityWeight,
		InefficiencyScore: sim.InefficiencyScore,
		Score:             updated.Score,
		Text:              text,
	}, nil
}

// Finish ends the game and returns its final result.
// Finishing an already finished game returns the same result.
func (e *Engine) Finish(ctx context.Context, gameID string) (*domain.GameResult, error) {
	g, err := e.finish(ctx, gameID, audit.EventGameFinished)
	if err != nil {
		return nil, err
	}

	return &domain.GameResult{
		GameID:       g.ID,
		Status:       g.Status,
		FinalScore:   g.Score,
		TokensBurned: g.TokensBurned,
		TotalActions: g.TotalActions,
		Duration:     g.Duration,
	}, nil
}

// finish moves the game to finished and records eventType when this call
// made the transition
func (e *Engine) finish(ctx context.Context, gameID, eventType string) (*domain.Game, error) {
	g, finished, err := e.repo.FinishGame(ctx, gameID, e.now())
	switch {
	case errors.Is(err, ErrGameNotFound):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to finish game: %w", err)
	}

	if finished {
		e.audit.Log(ctx, eventType,
			fmt.Sprintf("Game finished with score %d", g.Score),
			map[string]interface{}{
				"score":        g.Score,
				"tokensBurned": g.TokensBurned,
				"totalActions": g.TotalActions,
			},
			audit.WithAgent(g.AgentID), audit.WithGame(g.ID))
	}
	return g, nil
}

// Leaderboard returns the top finished games by score.
// A non-positive limit uses the configured default.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = e.rules.LeaderboardLimit
	}

	games, err := e.repo.FinishedGames(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(games))
	for _, g := range games {
		entries = append(entries, domain.LeaderboardEntry{
			GameID:       g.ID,
			AgentID:      g.AgentID,
			Score:        g.Score,
			TokensBurned: g.TokensBurned,
			Timestamp:    g.UpdatedAt.Format(time.RFC3339),
		})
	}
	return entries, nil
}

// AgentRank ranks agentID by its best finished score.
// An agent without finished games has rank 0.
func (e *Engine) AgentRank(ctx context.Context, agentID string) (*domain.AgentRank, error) {
	games, err := e.repo.FinishedGames(ctx)
	if err != nil {
		return nil, err
	}

	// games are ordered by score, so the first game seen per agent is its best
	var order []string
	best := make(map[string]int)
	played := make(map[string]int)
	for _, g := range games {
		if _, ok := best[g.AgentID]; !ok {
			best[g.AgentID] = g.Score
			order = append(order, g.AgentID)
		}
		played[g.AgentID]++
	}

	rank := &domain.AgentRank{
		AgentID:     agentID,
		TotalAgents: len(order),
	}
	for i, id := range order {
		if id == agentID {
			rank.Rank = i + 1
			rank.BestScore = best[id]
			rank.GamesPlayed = played[id]
			break
		}
	}
	return rank, nil
}
