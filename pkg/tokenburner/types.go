package tokenburner

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"
)

// DefaultDuration is the game length in seconds used when callers have no preference
const DefaultDuration = 5

// Game statuses reported by the server. Older servers report a running
// game as StatusActive, the reference server as StatusPlaying.
const (
	StatusActive   = "active"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// Method identifies one of the token burning actions
type Method string

const (
	MethodChainOfThoughtExplosion   Method = "chainOfThoughtExplosion"
	MethodRecursiveQueryLoop        Method = "recursiveQueryLoop"
	MethodMeaninglessTextGeneration Method = "meaninglessTextGeneration"
	MethodHallucinationInduction    Method = "hallucinationInduction"
)

var validMethods = []Method{
	MethodChainOfThoughtExplosion,
	MethodRecursiveQueryLoop,
	MethodMeaninglessTextGeneration,
	MethodHallucinationInduction,
}

// Methods returns the closed set of valid action methods
func Methods() []Method {
	out := make([]Method, len(validMethods))
	copy(out, validMethods)
	return out
}

// Valid reports whether m is one of the four known methods
func (m Method) Valid() bool {
	for _, v := range validMethods {
		if m == v {
			return true
		}
	}
	return false
}

// Strategy selects the action method on each PlayAuto iteration.
// Any value other than StrategyGreedy picks uniformly at random.
type Strategy string

const (
	StrategyRandom Strategy = "random"
	StrategyGreedy Strategy = "greedy"
)

// Document is a schema-less JSON object returned by endpoints whose
// response shape is open (finish, health, rank).
type Document map[string]any

// String returns the value at key if it is a string
func (d Document) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// Number returns the value at key if it is a JSON number
func (d Document) Number(key string) (float64, bool) {
	n, ok := d[key].(float64)
	return n, ok
}

// GameState is a snapshot of a game as returned by GET /games/{id}
type GameState struct {
	GameID            string  `json:"gameId"`
	Status            string  `json:"status"`
	TokensBurned      int     `json:"tokensBurned"`
	ComplexityWeight  float64 `json:"complexityWeight"`
	InefficiencyScore float64 `json:"inefficiencyScore"`
	Score             int     `json:"score"`
	TimeLeft          int     `json:"timeLeft"`
	TotalActions      int     `json:"totalActions"`
}

// Finished reports whether the game can take no more actions
func (s *GameState) Finished() bool {
	return s.Status == StatusFinished || s.TimeLeft <= 0
}

// ActionResult is the outcome of a single action
type ActionResult struct {
	TokensBurned      int     `json:"tokensBurned"`
	ComplexityWeight  float64 `json:"complexityWeight"`
	InefficiencyScore float64 `json:"inefficiencyScore"`
	Score             int     `json:"score"`
	Text              string  `json:"text"`
}

// LeaderboardEntry is one row of the leaderboard
type LeaderboardEntry struct {
	GameID       string `json:"gameId"`
	AgentID      string `json:"agentId"`
	Score        int    `json:"score"`
	TokensBurned int    `json:"tokensBurned"`
	Timestamp    string `json:"timestamp"`
}

// AuthenticateRequest is the request body for /auth/token
type AuthenticateRequest struct {
	AgentID string `json:"agentId"`
	APIKey  string `json:"apiKey"`
}

// AuthResult is the result of a successful authentication
type AuthResult struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	AgentID   string `json:"agentId,omitempty"`
}

// RegisterKeyRequest is the request body for /keys/register
type RegisterKeyRequest struct {
	AgentID string `json:"agentId,omitempty"`
}

// KeyRegistration is a newly issued API key
type KeyRegistration struct {
	AgentID   string `json:"agentId"`
	APIKey    string `json:"apiKey"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// StartGameRequest is the request body for /games/start
type StartGameRequest struct {
	Duration int `json:"duration"`
}

// StartGameResult is the response of /games/start
type StartGameResult struct {
	GameID   string `json:"gameId"`
	Status   string `json:"status,omitempty"`
	EndsAt   string `json:"endsAt,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// ActionRequest is the request body for /games/{id}/actions
type ActionRequest struct {
	Method Method `json:"method"`
}

// ErrInvalidArgument is matched by errors raised locally before any request is sent
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgumentError reports a locally rejected argument
type InvalidArgumentError struct {
	Name  string
	Value string
}

func (e *InvalidArgumentError) Error() string {
	names := make([]string, len(validMethods))
	for i, m := range validMethods {
		names[i] = string(m)
	}
	return fmt.Sprintf("tokenburner: invalid %s %q, must be one of: %s", e.Name, e.Value, strings.Join(names, ", "))
}

func (e *InvalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// HTTPError represents a non-2xx response from the API
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("tokenburner: %s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// DecodeError reports a response body that does not match the expected record
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tokenburner: decode %s response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ClientConfig holds the configuration for the Token Burner client
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://host/api/v2". A trailing slash is stripped.
	BaseURL string
	// APIKey is sent in X-API-Key when no bearer token is set.
	APIKey string
	// Token is a bearer token; it takes precedence over APIKey.
	Token     string
	UserAgent string
	Timeout   time.Duration
	// Logger receives PlayAuto progress lines. Defaults to log.Default().
	Logger *log.Logger
	// Rand drives the random strategy. Nil uses the math/rand/v2 global source.
	Rand *rand.Rand
}

// DefaultConfig returns a default client configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout: 30 * time.Second,
	}
}
