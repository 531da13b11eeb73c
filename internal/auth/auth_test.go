package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexbotov/tokenburner/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAgentID = "agent-007"
	testAPIKey  = "test-api-key"
	testSecret  = "test-secret"
)

func newTestService(t *testing.T, expiry time.Duration) *Service {
	t.Helper()

	svc, err := New(&config.AuthConfig{
		JWTSecret:   testSecret,
		TokenExpiry: expiry,
		BcryptCost:  bcrypt.MinCost,
		APIKeys:     []config.APIKeyConfig{{AgentID: testAgentID, Key: testAPIKey}},
	})
	if err != nil {
		t.Fatalf("Failed to create auth service: %v", err)
	}
	return svc
}

func TestValidateAPIKey(t *testing.T) {
	svc := newTestService(t, time.Hour)

	t.Run("KnownKey", func(t *testing.T) {
		agent, err := svc.ValidateAPIKey(testAPIKey)
		if err != nil {
			t.Fatalf("Expected key to validate: %v", err)
		}
		if agent.ID != testAgentID {
			t.Errorf("Expected agent %s, got %s", testAgentID, agent.ID)
		}
		if agent.KeyHash != Fingerprint(testAPIKey) {
			t.Errorf("Expected key hash to be the key fingerprint")
		}
	})

	t.Run("UnknownKey", func(t *testing.T) {
		for _, key := range []string{"", "wrong-key", testAPIKey + " "} {
			if _, err := svc.ValidateAPIKey(key); !errors.Is(err, ErrInvalidAPIKey) {
				t.Errorf("Expected ErrInvalidAPIKey for %q, got %v", key, err)
			}
		}
	})
}

func TestRegister(t *testing.T) {
	svc := newTestService(t, time.Hour)

	if _, err := svc.Register("agent-2", "second-key"); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	agent, err := svc.ValidateAPIKey("second-key")
	if err != nil || agent.ID != "agent-2" {
		t.Errorf("Expected agent-2, got %v (%v)", agent, err)
	}

	if _, err := svc.Register("agent-3", testAPIKey); !errors.Is(err, ErrAgentExists) {
		t.Errorf("Expected ErrAgentExists for a reused key, got %v", err)
	}
	if _, err := svc.Register("", "key"); err == nil {
		t.Error("Expected error for empty agent ID")
	}
}

func TestRegisterGenerated(t *testing.T) {
	svc := newTestService(t, time.Hour)

	t.Run("NamedAgent", func(t *testing.T) {
		agent, apiKey, err := svc.RegisterGenerated("bot-42")
		if err != nil {
			t.Fatalf("Failed to register: %v", err)
		}
		if agent.ID != "bot-42" {
			t.Errorf("Expected bot-42, got %s", agent.ID)
		}
		if !strings.HasPrefix(apiKey, APIKeyPrefix) || len(apiKey) != len(APIKeyPrefix)+48 {
			t.Errorf("Unexpected generated key %q", apiKey)
		}

		resp, err := svc.Authenticate("bot-42", apiKey)
		if err != nil {
			t.Fatalf("Generated key did not authenticate: %v", err)
		}
		if resp.AgentID != "bot-42" {
			t.Errorf("Expected bot-42 in token, got %s", resp.AgentID)
		}
	})

	t.Run("GeneratedAgent", func(t *testing.T) {
		a, keyA, err := svc.RegisterGenerated("")
		if err != nil {
			t.Fatalf("Failed to register: %v", err)
		}
		b, keyB, _ := svc.RegisterGenerated("")
		if !strings.HasPrefix(a.ID, "agent-") || !ValidAgentID(a.ID) {
			t.Errorf("Unexpected generated agent ID %q", a.ID)
		}
		if a.ID == b.ID || keyA == keyB {
			t.Error("Expected distinct agents and keys")
		}
	})

	t.Run("ExistingAgent", func(t *testing.T) {
		if _, _, err := svc.RegisterGenerated(testAgentID); !errors.Is(err, ErrAgentExists) {
			t.Errorf("Expected ErrAgentExists, got %v", err)
		}
	})

	t.Run("InvalidAgentID", func(t *testing.T) {
		for _, id := range []string{"has space", "under_score", "slash/agent", strings.Repeat("a", 51)} {
			if _, _, err := svc.RegisterGenerated(id); !errors.Is(err, ErrInvalidAgent) {
				t.Errorf("Expected ErrInvalidAgent for %q, got %v", id, err)
			}
		}
		if !ValidAgentID(strings.Repeat("a", 50)) {
			t.Error("Expected 50 characters to be valid")
		}
	})
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t, time.Hour)

	t.Run("Success", func(t *testing.T) {
		resp, err := svc.Authenticate(testAgentID, testAPIKey)
		if err != nil {
			t.Fatalf("Authentication failed: %v", err)
		}
		if resp.Token == "" {
			t.Error("Expected token")
		}
		if resp.AgentID != testAgentID {
			t.Errorf("Expected agent %s, got %s", testAgentID, resp.AgentID)
		}

		expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
		if err != nil {
			t.Fatalf("Expected RFC3339 expiry, got %q", resp.ExpiresAt)
		}
		if d := time.Until(expiresAt); d < 58*time.Minute || d > 61*time.Minute {
			t.Errorf("Expected expiry about an hour out, got %v", d)
		}

		agentID, err := svc.ValidateToken(resp.Token)
		if err != nil {
			t.Fatalf("Issued token did not validate: %v", err)
		}
		if agentID != testAgentID {
			t.Errorf("Expected agent %s in token, got %s", testAgentID, agentID)
		}
	})

	t.Run("WithoutAgentID", func(t *testing.T) {
		resp, err := svc.Authenticate("", testAPIKey)
		if err != nil {
			t.Fatalf("Authentication failed: %v", err)
		}
		if resp.AgentID != testAgentID {
			t.Errorf("Expected agent %s, got %s", testAgentID, resp.AgentID)
		}
	})

	t.Run("WrongAgent", func(t *testing.T) {
		if _, err := svc.Authenticate("someone-else", testAPIKey); !errors.Is(err, ErrAgentMismatch) {
			t.Errorf("Expected ErrAgentMismatch, got %v", err)
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		if _, err := svc.Authenticate(testAgentID, "nope"); !errors.Is(err, ErrInvalidAPIKey) {
			t.Errorf("Expected ErrInvalidAPIKey, got %v", err)
		}
	})
}

func TestTokenClaims(t *testing.T) {
	svc := newTestService(t, time.Hour)
	agent, _ := svc.ValidateAPIKey(testAPIKey)

	tokenString, _, err := svc.IssueToken(agent)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)

	if claims["agentId"] != testAgentID {
		t.Errorf("Expected agentId claim %s, got %v", testAgentID, claims["agentId"])
	}
	if claims["keyHash"] != Fingerprint(testAPIKey) {
		t.Errorf("Expected keyHash claim, got %v", claims["keyHash"])
	}
	if token.Method != jwt.SigningMethodHS256 {
		t.Errorf("Expected HS256, got %v", token.Method.Alg())
	}
}

func TestValidateToken(t *testing.T) {
	svc := newTestService(t, time.Hour)
	agent, _ := svc.ValidateAPIKey(testAPIKey)

	t.Run("Expired", func(t *testing.T) {
		expired := newTestService(t, -time.Minute)
		tokenString, _, err := expired.IssueToken(agent)
		if err != nil {
			t.Fatalf("Failed to issue token: %v", err)
		}
		if _, err := svc.ValidateToken(tokenString); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"agentId": testAgentID,
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		tokenString, _ := token.SignedString([]byte("other-secret"))
		if _, err := svc.ValidateToken(tokenString); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("MissingAgent", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		tokenString, _ := token.SignedString([]byte(testSecret))
		if _, err := svc.ValidateToken(tokenString); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := svc.ValidateToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}
