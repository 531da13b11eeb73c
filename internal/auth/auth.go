// Package auth provides API key storage and bearer token issuance
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/alexbotov/tokenburner/internal/config"
	"github.com/alexbotov/tokenburner/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrAgentExists   = errors.New("agent already registered")
	ErrAgentMismatch = errors.New("API key does not belong to agent")
	ErrInvalidAgent  = errors.New("agentId must be alphanumeric with hyphens and 1-50 characters")
)

// APIKeyPrefix starts every generated API key
const APIKeyPrefix = "tb_"

var agentIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,50}$`)

// ValidAgentID reports whether id may be used for a self-registered agent
func ValidAgentID(id string) bool {
	return agentIDPattern.MatchString(id)
}

// keyEntry is a registered key, found by fingerprint and verified by bcrypt
type keyEntry struct {
	agent *domain.Agent
	hash  []byte
}

// Service validates API keys and issues JWTs
type Service struct {
	config *config.AuthConfig

	mu   sync.RWMutex
	keys map[string]*keyEntry // by key fingerprint
}

// New creates a new auth service and registers the configured keys
func New(cfg *config.AuthConfig) (*Service, error) {
	s := &Service{
		config: cfg,
		keys:   make(map[string]*keyEntry),
	}
	for _, k := range cfg.APIKeys {
		if _, err := s.Register(k.AgentID, k.Key); err != nil {
			return nil, fmt.Errorf("failed to register key for %s: %w", k.AgentID, err)
		}
	}
	return s, nil
}

// Fingerprint returns the hex SHA-256 of an API key
func Fingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// Register stores apiKey for agentID
func (s *Service) Register(agentID, apiKey string) (*domain.Agent, error) {
	return s.register(agentID, apiKey, false)
}

// RegisterGenerated creates a fresh API key for a new agent and returns it
// with the agent. An empty agentID is replaced by a generated one. Agents
// that already hold a key are refused with ErrAgentExists.
func (s *Service) RegisterGenerated(agentID string) (*domain.Agent, string, error) {
	if agentID == "" {
		agentID = "agent-" + uuid.NewString()[:8]
	}
	if !ValidAgentID(agentID) {
		return nil, "", ErrInvalidAgent
	}

	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, "", err
	}
	agent, err := s.register(agentID, apiKey, true)
	if err != nil {
		return nil, "", err
	}
	return agent, apiKey, nil
}

// GenerateAPIKey returns a random key carrying APIKeyPrefix
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}

func (s *Service) register(agentID, apiKey string, newAgent bool) (*domain.Agent, error) {
	if agentID == "" || apiKey == "" {
		return nil, errors.New("agent ID and API key are required")
	}

	cost := s.config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash API key: %w", err)
	}

	fp := Fingerprint(apiKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[fp]; ok {
		return nil, ErrAgentExists
	}
	if newAgent {
		for _, entry := range s.keys {
			if entry.agent.ID == agentID {
				return nil, ErrAgentExists
			}
		}
	}
	agent := &domain.Agent{
		ID:        agentID,
		KeyHash:   fp,
		CreatedAt: time.Now().UTC(),
	}
	s.keys[fp] = &keyEntry{agent: agent, hash: hash}
	return agent, nil
}

// ValidateAPIKey returns the agent owning apiKey
func (s *Service) ValidateAPIKey(apiKey string) (*domain.Agent, error) {
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}

	s.mu.RLock()
	entry, ok := s.keys[Fingerprint(apiKey)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidAPIKey
	}

	if err := bcrypt.CompareHashAndPassword(entry.hash, []byte(apiKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}
	return entry.agent, nil
}

// TokenResponse is returned by POST /auth/token
type TokenResponse struct {
	Token     string `json:"token"`
	AgentID   string `json:"agentId"`
	ExpiresAt string `json:"expiresAt"`
}

// Authenticate exchanges an API key for a bearer token.
// A non-empty agentID must match the key's owner.
func (s *Service) Authenticate(agentID, apiKey string) (*TokenResponse, error) {
	agent, err := s.ValidateAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	if agentID != "" && agentID != agent.ID {
		return nil, ErrAgentMismatch
	}

	token, expiresAt, err := s.IssueToken(agent)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		Token:     token,
		AgentID:   agent.ID,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

// IssueToken signs an HS256 JWT for agent
func (s *Service) IssueToken(agent *domain.Agent) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.config.TokenExpiry)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"agentId": agent.ID,
		"keyHash": agent.KeyHash,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken verifies a JWT and returns the agent ID it was issued to
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	agentID, ok := claims["agentId"].(string)
	if !ok || agentID == "" {
		return "", ErrInvalidToken
	}
	return agentID, nil
}
