package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.PathPrefix != "/api/v2" {
		t.Errorf("Expected path prefix /api/v2, got %s", cfg.Server.PathPrefix)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("Expected memory driver, got %s", cfg.Database.Driver)
	}
	if cfg.Auth.TokenExpiry != 24*time.Hour {
		t.Errorf("Expected 24h token expiry, got %v", cfg.Auth.TokenExpiry)
	}
	if cfg.Game.MinDuration != 1 || cfg.Game.MaxDuration != 60 {
		t.Errorf("Expected duration bounds [1, 60], got [%d, %d]", cfg.Game.MinDuration, cfg.Game.MaxDuration)
	}
	if cfg.Client.Duration != 5 {
		t.Errorf("Expected default duration 5, got %d", cfg.Client.Duration)
	}
	if cfg.RateLimit.StartInterval != 6*time.Second || cfg.RateLimit.StartBurst != 10 {
		t.Errorf("Expected 10 starts per minute, got %v/%d", cfg.RateLimit.StartInterval, cfg.RateLimit.StartBurst)
	}
	if cfg.RateLimit.RegisterInterval != 30*time.Minute || cfg.RateLimit.RegisterBurst != 1 {
		t.Errorf("Expected one registration per 30m, got %v/%d", cfg.RateLimit.RegisterInterval, cfg.RateLimit.RegisterBurst)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenburner.yaml")
	data := []byte(`
server:
  port: "8080"
auth:
  token_expiry: 2h
  api_keys:
    - agent_id: alpha
      key: alpha-key
game:
  max_duration: 30
client:
  strategy: greedy
  seed: 7
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Auth.TokenExpiry != 2*time.Hour {
		t.Errorf("Expected 2h token expiry, got %v", cfg.Auth.TokenExpiry)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0].AgentID != "alpha" {
		t.Errorf("Expected api keys to be replaced by the file, got %+v", cfg.Auth.APIKeys)
	}
	if cfg.Game.MaxDuration != 30 {
		t.Errorf("Expected max duration 30, got %d", cfg.Game.MaxDuration)
	}
	if cfg.Game.MinDuration != 1 {
		t.Errorf("Expected unset fields to keep defaults, got min duration %d", cfg.Game.MinDuration)
	}
	if cfg.Client.Strategy != "greedy" || cfg.Client.Seed != 7 {
		t.Errorf("Expected greedy strategy with seed 7, got %s/%d", cfg.Client.Strategy, cfg.Client.Seed)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenburner.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"8080\"\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("TOKENBURNER_PORT", "9090")
	t.Setenv("TOKENBURNER_API_KEY", "env-key")
	t.Setenv("TOKENBURNER_DURATION", "12")
	t.Setenv("TOKENBURNER_TIMEOUT", "5s")
	t.Setenv("TOKENBURNER_ADMIN_KEY", "ops-key")
	t.Setenv("TOKENBURNER_START_INTERVAL", "0s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected environment to win over file, got port %s", cfg.Server.Port)
	}
	if cfg.Client.APIKey != "env-key" {
		t.Errorf("Expected api key env-key, got %s", cfg.Client.APIKey)
	}
	if cfg.Client.Duration != 12 {
		t.Errorf("Expected duration 12, got %d", cfg.Client.Duration)
	}
	if cfg.Client.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %v", cfg.Client.Timeout)
	}
	if cfg.Auth.AdminKey != "ops-key" {
		t.Errorf("Expected admin key ops-key, got %s", cfg.Auth.AdminKey)
	}
	if cfg.RateLimit.StartInterval != 0 {
		t.Errorf("Expected start limit disabled, got %v", cfg.RateLimit.StartInterval)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("Expected error for missing file")
		}
	})

	t.Run("BadYAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Expected parse error")
		}
	})

	t.Run("BadDuration", func(t *testing.T) {
		t.Setenv("TOKENBURNER_DURATION", "five")
		if _, err := Load(""); err == nil {
			t.Error("Expected error for non-numeric duration")
		}
	})

	t.Run("NegativeInterval", func(t *testing.T) {
		t.Setenv("TOKENBURNER_REGISTER_INTERVAL", "-1m")
		if _, err := Load(""); err == nil {
			t.Error("Expected error for negative rate limit interval")
		}
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		t.Setenv("TOKENBURNER_DB_DRIVER", "sqlite")
		if _, err := Load(""); err == nil {
			t.Error("Expected error for unsupported driver")
		}
	})
}
