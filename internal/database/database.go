// Package database provides PostgreSQL storage for Token Burner games
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/tokenburner/internal/domain"
	"github.com/alexbotov/tokenburner/internal/game"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates all required tables
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		game_id VARCHAR(64) PRIMARY KEY,
		agent_id VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'playing',
		tokens_burned BIGINT NOT NULL DEFAULT 0,
		complexity_weight DOUBLE PRECISION NOT NULL DEFAULT 1,
		inefficiency_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		score BIGINT NOT NULL DEFAULT 0,
		duration INTEGER NOT NULL,
		ends_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS game_actions (
		action_id BIGSERIAL PRIMARY KEY,
		game_id VARCHAR(64) NOT NULL REFERENCES games(game_id),
		method VARCHAR(50) NOT NULL,
		tokens_burned BIGINT NOT NULL,
		complexity_weight DOUBLE PRECISION NOT NULL,
		inefficiency_score DOUBLE PRECISION NOT NULL,
		text_preview TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		type VARCHAR(100) NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		agent_id VARCHAR(100) NOT NULL DEFAULT '',
		game_id VARCHAR(64) NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		data JSONB
	);

	CREATE TABLE IF NOT EXISTS system_state (
		key VARCHAR(100) PRIMARY KEY,
		value VARCHAR(100) NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL,
		updated_by VARCHAR(100) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS disabled_agents (
		agent_id VARCHAR(100) PRIMARY KEY,
		reason TEXT NOT NULL,
		disabled_at TIMESTAMP NOT NULL,
		disabled_by VARCHAR(100) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_games_status_score ON games(status, score DESC);
	CREATE INDEX IF NOT EXISTS idx_games_agent ON games(agent_id);
	CREATE INDEX IF NOT EXISTS idx_game_actions_game ON game_actions(game_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_agent ON audit_events(agent_id);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Reset drops all tables (for testing)
func (db *DB) Reset() error {
	_, err := db.Exec(`
		DROP TABLE IF EXISTS disabled_agents CASCADE;
		DROP TABLE IF EXISTS system_state CASCADE;
		DROP TABLE IF EXISTS audit_events CASCADE;
		DROP TABLE IF EXISTS game_actions CASCADE;
		DROP TABLE IF EXISTS games CASCADE;
	`)
	return err
}

// CleanData truncates all tables without dropping them (for testing)
func (db *DB) CleanData() error {
	_, err := db.Exec(`TRUNCATE TABLE disabled_agents, system_state, audit_events, game_actions, games CASCADE;`)
	return err
}

// Repository implements game.Repository on PostgreSQL
type Repository struct {
	db *DB
}

// NewRepository creates a game repository backed by db
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

var _ game.Repository = (*Repository)(nil)

func (r *Repository) CreateGame(ctx context.Context, g *domain.Game) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO games (game_id, agent_id, status, tokens_burned, complexity_weight, inefficiency_score, score, duration, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, g.ID, g.AgentID, g.Status, g.TokensBurned, g.ComplexityWeight, g.InefficiencyScore,
		g.Score, g.Duration, g.EndsAt, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}
	return nil
}

const selectGame = `
	SELECT g.game_id, g.agent_id, g.status, g.tokens_burned, g.complexity_weight, g.inefficiency_score,
	       g.score, g.duration, g.ends_at, g.created_at, g.updated_at,
	       (SELECT COUNT(*) FROM game_actions a WHERE a.game_id = g.game_id)
	FROM games g`

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (*domain.Game, error) {
	var g domain.Game
	err := row.Scan(&g.ID, &g.AgentID, &g.Status, &g.TokensBurned, &g.ComplexityWeight,
		&g.InefficiencyScore, &g.Score, &g.Duration, &g.EndsAt, &g.CreatedAt, &g.UpdatedAt,
		&g.TotalActions)
	if err != nil {
		return nil, err
	}
	g.EndsAt = g.EndsAt.UTC()
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return &g, nil
}

func (r *Repository) GetGame(ctx context.Context, id string) (*domain.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, selectGame+` WHERE g.game_id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.ErrGameNotFound
		}
		return nil, err
	}
	return g, nil
}

// RecordAction adds the action's totals to a playing game and rescores it
// inside the UPDATE, so concurrent actions serialize on the row lock
func (r *Repository) RecordAction(ctx context.Context, a *domain.Action) (*domain.Game, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `
		UPDATE games SET
			tokens_burned = tokens_burned + $1::bigint,
			complexity_weight = complexity_weight + $2::float8,
			inefficiency_score = inefficiency_score + $3::float8,
			score = FLOOR(
				(tokens_burned + $1::bigint)::float8 * $4::float8 * (complexity_weight + $2::float8) * $5::float8
				+ (inefficiency_score + $3::float8) * $6::float8),
			updated_at = $7
		WHERE game_id = $8 AND status = $9
		RETURNING game_id
	`, a.TokensBurned, a.ComplexityWeight, a.InefficiencyScore,
		game.TokenScoreWeight, game.ComplexityScoreWeight, game.InefficiencyScoreWeight,
		a.CreatedAt, a.GameID, domain.GameStatusPlaying).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		var status string
		err = tx.QueryRowContext(ctx, `SELECT status FROM games WHERE game_id = $1`, a.GameID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.ErrGameNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, game.ErrGameNotPlaying
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO game_actions (game_id, method, tokens_burned, complexity_weight, inefficiency_score, text_preview, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING action_id
	`, a.GameID, a.Method, a.TokensBurned, a.ComplexityWeight, a.InefficiencyScore,
		a.TextPreview, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert action: %w", err)
	}

	g, err := scanGame(tx.QueryRowContext(ctx, selectGame+` WHERE g.game_id = $1`, a.GameID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return g, nil
}

// FinishGame moves a playing game to finished; finished reports whether this
// call made the transition
func (r *Repository) FinishGame(ctx context.Context, id string, at time.Time) (*domain.Game, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE games SET status = $1, updated_at = $2
		WHERE game_id = $3 AND status = $4
	`, domain.GameStatusFinished, at, id, domain.GameStatusPlaying)
	if err != nil {
		return nil, false, fmt.Errorf("failed to finish game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	g, err := r.GetGame(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return g, n == 1, nil
}

func (r *Repository) FinishedGames(ctx context.Context) ([]*domain.Game, error) {
	rows, err := r.db.QueryContext(ctx, selectGame+`
		WHERE g.status = $1
		ORDER BY g.score DESC, g.created_at ASC
	`, domain.GameStatusFinished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []*domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}
