// Package domain contains the core models of the reference game server
//
// Wire shapes (the json tags) match what the public client in
// pkg/tokenburner decodes, so the server and client can be tested end to end.
package domain

import (
	"encoding/json"
	"time"
)

// GameStatus represents the lifecycle of a game
type GameStatus string

const (
	GameStatusPlaying  GameStatus = "playing"
	GameStatusFinished GameStatus = "finished"
)

// ActionMethod identifies a token burning action
type ActionMethod string

const (
	MethodChainOfThoughtExplosion   ActionMethod = "chainOfThoughtExplosion"
	MethodRecursiveQueryLoop        ActionMethod = "recursiveQueryLoop"
	MethodMeaninglessTextGeneration ActionMethod = "meaninglessTextGeneration"
	MethodHallucinationInduction    ActionMethod = "hallucinationInduction"
)

// ActionMethods lists every valid action method
var ActionMethods = []ActionMethod{
	MethodChainOfThoughtExplosion,
	MethodRecursiveQueryLoop,
	MethodMeaninglessTextGeneration,
	MethodHallucinationInduction,
}

// Valid reports whether m is a known action method
func (m ActionMethod) Valid() bool {
	for _, v := range ActionMethods {
		if m == v {
			return true
		}
	}
	return false
}

// Game is the persisted state of one game
type Game struct {
	ID                string     `json:"gameId" db:"game_id"`
	AgentID           string     `json:"agentId" db:"agent_id"`
	Status            GameStatus `json:"status" db:"status"`
	TokensBurned      int        `json:"tokensBurned" db:"tokens_burned"`
	ComplexityWeight  float64    `json:"complexityWeight" db:"complexity_weight"`
	InefficiencyScore float64    `json:"inefficiencyScore" db:"inefficiency_score"`
	Score             int        `json:"score" db:"score"`
	Duration          int        `json:"duration" db:"duration"`
	TotalActions      int        `json:"totalActions" db:"-"`
	EndsAt            time.Time  `json:"endsAt" db:"ends_at"`
	CreatedAt         time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" db:"updated_at"`
}

// TimeLeft returns the whole seconds remaining at now, rounded up, never negative
func (g *Game) TimeLeft(now time.Time) int {
	left := g.EndsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	secs := int(left / time.Second)
	if left%time.Second != 0 {
		secs++
	}
	return secs
}

// Action is one recorded action of a game
type Action struct {
	ID                int64        `json:"actionId" db:"action_id"`
	GameID            string       `json:"gameId" db:"game_id"`
	Method            ActionMethod `json:"method" db:"method"`
	TokensBurned      int          `json:"tokensBurned" db:"tokens_burned"`
	ComplexityWeight  float64      `json:"complexityWeight" db:"complexity_weight"`
	InefficiencyScore float64      `json:"inefficiencyScore" db:"inefficiency_score"`
	TextPreview       string       `json:"textPreview" db:"text_preview"`
	CreatedAt         time.Time    `json:"createdAt" db:"created_at"`
}

// GameState is the status view returned by GET /games/{id}
type GameState struct {
	GameID            string     `json:"gameId"`
	Status            GameStatus `json:"status"`
	TokensBurned      int        `json:"tokensBurned"`
	ComplexityWeight  float64    `json:"complexityWeight"`
	InefficiencyScore float64    `json:"inefficiencyScore"`
	Score             int        `json:"score"`
	TimeLeft          int        `json:"timeLeft"`
	TotalActions      int        `json:"totalActions"`
}

// ActionResult is returned by POST /games/{id}/actions.
// The numeric fields describe this action; Score is the game's new total.
type ActionResult struct {
	TokensBurned      int     `json:"tokensBurned"`
	ComplexityWeight  float64 `json:"complexityWeight"`
	InefficiencyScore float64 `json:"inefficiencyScore"`
	Score             int     `json:"score"`
	Text              string  `json:"text"`
}

// GameStarted is returned by POST /games/start
type GameStarted struct {
	GameID   string     `json:"gameId"`
	Status   GameStatus `json:"status"`
	EndsAt   string     `json:"endsAt"`
	Duration int        `json:"duration"`
}

// GameResult is returned by POST /games/{id}/finish
type GameResult struct {
	GameID       string     `json:"gameId"`
	Status       GameStatus `json:"status"`
	FinalScore   int        `json:"finalScore"`
	TokensBurned int        `json:"tokensBurned"`
	TotalActions int        `json:"totalActions"`
	Duration     int        `json:"duration"`
}

// LeaderboardEntry is one row of GET /leaderboard
type LeaderboardEntry struct {
	GameID       string `json:"gameId"`
	AgentID      string `json:"agentId"`
	Score        int    `json:"score"`
	TokensBurned int    `json:"tokensBurned"`
	Timestamp    string `json:"timestamp"`
}

// AgentRank is returned by GET /leaderboard/rank/{agentId}
type AgentRank struct {
	AgentID     string `json:"agentId"`
	Rank        int    `json:"rank"`
	BestScore   int    `json:"bestScore"`
	GamesPlayed int    `json:"gamesPlayed"`
	TotalAgents int    `json:"totalAgents"`
}

// Agent is a registered API key holder
type Agent struct {
	ID        string    `json:"agentId"`
	KeyHash   string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditEvent is a significant game or authentication event
type AuditEvent struct {
	ID          string          `json:"id" db:"id"`
	Type        string          `json:"type" db:"type"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
	AgentID     string          `json:"agentId,omitempty" db:"agent_id"`
	GameID      string          `json:"gameId,omitempty" db:"game_id"`
	Description string          `json:"description" db:"description"`
	Data        json.RawMessage `json:"data,omitempty" db:"data"`
}

// SystemStatus is the operator view of whether games may be played
type SystemStatus struct {
	GamingEnabled  bool       `json:"gamingEnabled"`
	DisabledAt     *time.Time `json:"disabledAt,omitempty"`
	DisabledBy     string     `json:"disabledBy,omitempty"`
	DisabledReason string     `json:"disabledReason,omitempty"`
	DisabledAgents []string   `json:"disabledAgents"`
}
