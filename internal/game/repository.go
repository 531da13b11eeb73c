package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alexbotov/tokenburner/internal/domain"
)

// Repository persists games and their actions.
// Totals and status change only through RecordAction and FinishGame, which
// apply their change atomically against the stored game.
type Repository interface {
	CreateGame(ctx context.Context, g *domain.Game) error
	// GetGame returns ErrGameNotFound when no game has the ID.
	GetGame(ctx context.Context, id string) (*domain.Game, error)
	// RecordAction adds a's tokens and weights to its game, rescores the game
	// and stores a. It returns the updated game, or ErrGameNotPlaying when the
	// game is no longer playing.
	RecordAction(ctx context.Context, a *domain.Action) (*domain.Game, error)
	// FinishGame marks a playing game finished at at and returns the stored game.
	// finished reports whether this call made the transition.
	FinishGame(ctx context.Context, id string, at time.Time) (g *domain.Game, finished bool, err error)
	// FinishedGames returns finished games ordered by score descending,
	// ties broken by creation time.
	FinishedGames(ctx context.Context) ([]*domain.Game, error)
}

// MemoryRepository keeps games in process
type MemoryRepository struct {
	mu      sync.RWMutex
	games   map[string]*domain.Game
	actions map[string][]*domain.Action
	nextID  int64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		games:   make(map[string]*domain.Game),
		actions: make(map[string][]*domain.Action),
	}
}

func (r *MemoryRepository) CreateGame(ctx context.Context, g *domain.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *g
	r.games[g.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetGame(ctx context.Context, id string) (*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return r.snapshot(g), nil
}

func (r *MemoryRepository) RecordAction(ctx context.Context, a *domain.Action) (*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[a.GameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	if g.Status != domain.GameStatusPlaying {
		return nil, ErrGameNotPlaying
	}

	g.TokensBurned += a.TokensBurned
	g.ComplexityWeight += a.ComplexityWeight
	g.InefficiencyScore += a.InefficiencyScore
	g.Score = CalculateScore(g.TokensBurned, g.ComplexityWeight, g.InefficiencyScore)
	g.UpdatedAt = a.CreatedAt

	r.nextID++
	a.ID = r.nextID
	copiedAction := *a
	r.actions[g.ID] = append(r.actions[g.ID], &copiedAction)

	return r.snapshot(g), nil
}

func (r *MemoryRepository) FinishGame(ctx context.Context, id string, at time.Time) (*domain.Game, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[id]
	if !ok {
		return nil, false, ErrGameNotFound
	}
	finished := g.Status == domain.GameStatusPlaying
	if finished {
		g.Status = domain.GameStatusFinished
		g.UpdatedAt = at
	}
	return r.snapshot(g), finished, nil
}

// snapshot copies g with its action count. r.mu must be held.
func (r *MemoryRepository) snapshot(g *domain.Game) *domain.Game {
	copied := *g
	copied.TotalActions = len(r.actions[g.ID])
	return &copied
}

func (r *MemoryRepository) FinishedGames(ctx context.Context) ([]*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]*domain.Game, 0, len(r.games))
	for _, g := range r.games {
		if g.Status == domain.GameStatusFinished {
			games = append(games, r.snapshot(g))
		}
	}

	sort.SliceStable(games, func(i, j int) bool {
		if games[i].Score != games[j].Score {
			return games[i].Score > games[j].Score
		}
		return games[i].CreatedAt.Before(games[j].CreatedAt)
	})
	return games, nil
}
