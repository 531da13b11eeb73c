package tokenburner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Header names used for authentication
const (
	HeaderAPIKey        = "X-API-Key"
	HeaderAuthorization = "Authorization"
)

var (
	gameStateFields        = []string{"gameId", "status", "tokensBurned", "complexityWeight", "inefficiencyScore", "score", "timeLeft", "totalActions"}
	actionResultFields     = []string{"tokensBurned", "complexityWeight", "inefficiencyScore", "score", "text"}
	leaderboardEntryFields = []string{"gameId", "agentId", "score", "tokensBurned", "timestamp"}
)

// Client is a Token Burner API client.
//
// The bearer token is the only mutable state. Authenticate and SetToken
// replace it in place and every later request on the client observes the
// new value.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     *log.Logger
	intn       func(n int) int

	mu    sync.RWMutex
	token string
}

// NewClient creates a new Token Burner API client
func NewClient(config *ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return NewClientWithHTTPClient(config, &http.Client{
		Timeout: config.Timeout,
	})
}

// NewClientWithHTTPClient creates a new Token Burner API client with a custom HTTP client
func NewClientWithHTTPClient(config *ClientConfig, httpClient *http.Client) *Client {
	c := &Client{
		config:     config,
		httpClient: httpClient,
		logger:     config.Logger,
		token:      config.Token,
	}
	c.config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if c.logger == nil {
		c.logger = log.Default()
	}
	if config.Rand != nil {
		c.intn = config.Rand.IntN
	} else {
		c.intn = rand.IntN
	}
	return c
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Token returns the current bearer token, empty if none is set
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token used by subsequent requests.
// An empty token falls back to the API key.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// setAuthHeaders applies the credential precedence: bearer token, then API key, then nothing
func (c *Client) setAuthHeaders(req *http.Request) {
	if token := c.Token(); token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+token)
	} else if c.config.APIKey != "" {
		req.Header.Set(HeaderAPIKey, c.config.APIKey)
	}
}

// doRequest performs an HTTP request and returns the raw body of a 2xx response
func (c *Client) doRequest(ctx context.Context, method, endpoint string, reqBody any, authenticated bool) ([]byte, error) {
	var body io.Reader
	if reqBody != nil {
		bodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("tokenburner: marshal request: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	u := c.config.BaseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("tokenburner: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if authenticated {
		c.setAuthHeaders(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokenburner: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tokenburner: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:     method,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return respBody, nil
}

// decodeRecord decodes body into v, failing when any of the required keys
// is absent or when the body carries keys v does not declare.
func decodeRecord(op string, body []byte, v any, required []string) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	for _, key := range required {
		if _, ok := probe[key]; !ok {
			return &DecodeError{Op: op, Err: fmt.Errorf("missing field %q", key)}
		}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// decodeDocument decodes body into an open JSON object
func decodeDocument(op string, body []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if doc == nil {
		return nil, &DecodeError{Op: op, Err: errors.New("response is not a JSON object")}
	}
	return doc, nil
}

// Authenticate exchanges an agent's API key for a bearer token.
// On success the token is stored on the client and used by every later call.
func (c *Client) Authenticate(ctx context.Context, agentID, apiKey string) (*AuthResult, error) {
	req := &AuthenticateRequest{
		AgentID: agentID,
		APIKey:  apiKey,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/auth/token", req, false)
	if err != nil {
		return nil, err
	}

	var result AuthResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &DecodeError{Op: "authenticate", Err: err}
	}
	if result.Token == "" {
		return nil, &DecodeError{Op: "authenticate", Err: errors.New(`missing field "token"`)}
	}

	c.SetToken(result.Token)
	return &result, nil
}

// RegisterKey asks the server for a new API key. An empty agentID lets the
// server pick one. The client's own credentials are left unchanged; pass the
// result to Authenticate to play as the new agent.
func (c *Client) RegisterKey(ctx context.Context, agentID string) (*KeyRegistration, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/keys/register", &RegisterKeyRequest{AgentID: agentID}, false)
	if err != nil {
		return nil, err
	}

	var result KeyRegistration
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &DecodeError{Op: "register key", Err: err}
	}
	if result.APIKey == "" || result.AgentID == "" {
		return nil, &DecodeError{Op: "register key", Err: errors.New(`missing field "apiKey" or "agentId"`)}
	}
	return &result, nil
}

// StartGame starts a new game lasting duration seconds and returns its ID.
// The duration is passed through unchecked; the server is the authority.
func (c *Client) StartGame(ctx context.Context, duration int) (string, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/games/start", &StartGameRequest{Duration: duration}, true)
	if err != nil {
		return "", err
	}

	var result StartGameResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &DecodeError{Op: "start game", Err: err}
	}
	if result.GameID == "" {
		return "", &DecodeError{Op: "start game", Err: errors.New(`missing field "gameId"`)}
	}

	return result.GameID, nil
}

// GetGameStatus retrieves the current state of a game
func (c *Client) GetGameStatus(ctx context.Context, gameID string) (*GameState, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/games/"+url.PathEscape(gameID), nil, true)
	if err != nil {
		return nil, err
	}

	var state GameState
	if err := decodeRecord("game status", body, &state, gameStateFields); err != nil {
		return nil, err
	}
	return &state, nil
}

// PerformAction submits one action to a running game.
// Unknown methods are rejected before any request is sent.
func (c *Client) PerformAction(ctx context.Context, gameID string, method Method) (*ActionResult, error) {
	if !method.Valid() {
		return nil, &InvalidArgumentError{Name: "method", Value: string(method)}
	}

	endpoint := "/games/" + url.PathEscape(gameID) + "/actions"
	body, err := c.doRequest(ctx, http.MethodPost, endpoint, &ActionRequest{Method: method}, true)
	if err != nil {
		return nil, err
	}

	var result ActionResult
	if err := decodeRecord("action", body, &result, actionResultFields); err != nil {
		return nil, err
	}
	return &result, nil
}

// FinishGame closes a game and returns the server's final summary verbatim
// (typically gameId, status, finalScore, tokensBurned, totalActions, duration).
func (c *Client) FinishGame(ctx context.Context, gameID string) (Document, error) {
	endpoint := "/games/" + url.PathEscape(gameID) + "/finish"
	body, err := c.doRequest(ctx, http.MethodPost, endpoint, nil, true)
	if err != nil {
		return nil, err
	}
	return decodeDocument("finish game", body)
}

// GetLeaderboard returns the leaderboard in the order the server sent it
func (c *Client) GetLeaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/leaderboard", nil, true)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &DecodeError{Op: "leaderboard", Err: err}
	}

	entries := make([]LeaderboardEntry, 0, len(raw))
	for _, item := range raw {
		var entry LeaderboardEntry
		if err := decodeRecord("leaderboard", item, &entry, leaderboardEntryFields); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetAgentRank returns an agent's rank summary as reported by the server
func (c *Client) GetAgentRank(ctx context.Context, agentID string) (Document, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/leaderboard/rank/"+url.PathEscape(agentID), nil, true)
	if err != nil {
		return nil, err
	}
	return decodeDocument("agent rank", body)
}

// GetHealth calls the unauthenticated health endpoint
func (c *Client) GetHealth(ctx context.Context) (Document, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/health", nil, false)
	if err != nil {
		return nil, err
	}
	return decodeDocument("health", body)
}
