// Package config provides configuration management for the Token Burner server and demo
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Game      GameConfig      `yaml:"game"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Client    ClientConfig    `yaml:"client"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `yaml:"port"`
	PathPrefix   string        `yaml:"path_prefix"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Env          string        `yaml:"env"`
}

// DatabaseConfig holds database configuration.
// Driver "memory" keeps games in process; "postgres" uses DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret   string         `yaml:"jwt_secret"`
	TokenExpiry time.Duration  `yaml:"token_expiry"`
	BcryptCost  int            `yaml:"bcrypt_cost"`
	APIKeys     []APIKeyConfig `yaml:"api_keys"`
	AdminKey    string         `yaml:"admin_key"` // empty disables /admin
}

// APIKeyConfig seeds one agent credential at startup
type APIKeyConfig struct {
	AgentID string `yaml:"agent_id"`
	Key     string `yaml:"key"`
}

// GameConfig holds game rules
type GameConfig struct {
	DefaultDuration  int `yaml:"default_duration"`
	MinDuration      int `yaml:"min_duration"`
	MaxDuration      int `yaml:"max_duration"`
	LeaderboardLimit int `yaml:"leaderboard_limit"`
}

// RateLimitConfig bounds game starts per agent and key registrations per
// client address. A zero interval disables that limit.
type RateLimitConfig struct {
	StartInterval    time.Duration `yaml:"start_interval"`
	StartBurst       int           `yaml:"start_burst"`
	RegisterInterval time.Duration `yaml:"register_interval"`
	RegisterBurst    int           `yaml:"register_burst"`
}

// ClientConfig holds settings for the autoplay demo
type ClientConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	AgentID  string        `yaml:"agent_id"`
	Duration int           `yaml:"duration"`
	Strategy string        `yaml:"strategy"`
	Timeout  time.Duration `yaml:"timeout"`
	Seed     uint64        `yaml:"seed"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "3000",
			PathPrefix:   "/api/v2",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Env:          "development",
		},
		Database: DatabaseConfig{
			Driver: "memory",
			DSN:    "host=localhost dbname=tokenburner sslmode=disable",
		},
		Auth: AuthConfig{
			JWTSecret:   "tokenburner-dev-secret-change-in-production",
			TokenExpiry: 24 * time.Hour,
			BcryptCost:  10,
			APIKeys: []APIKeyConfig{
				{AgentID: "demo-agent", Key: "demo-key-123"},
			},
		},
		Game: GameConfig{
			DefaultDuration:  5,
			MinDuration:      1,
			MaxDuration:      60,
			LeaderboardLimit: 100,
		},
		RateLimit: RateLimitConfig{
			StartInterval:    6 * time.Second,
			StartBurst:       10,
			RegisterInterval: 30 * time.Minute,
			RegisterBurst:    1,
		},
		Client: ClientConfig{
			BaseURL:  "http://localhost:3000/api/v2",
			APIKey:   "demo-key-123",
			Duration: 5,
			Strategy: "random",
			Timeout:  30 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then TOKENBURNER_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Server.Port = getEnv("TOKENBURNER_PORT", cfg.Server.Port)
	cfg.Server.PathPrefix = getEnv("TOKENBURNER_PATH_PREFIX", cfg.Server.PathPrefix)
	cfg.Server.Env = getEnv("TOKENBURNER_ENV", cfg.Server.Env)
	cfg.Database.Driver = getEnv("TOKENBURNER_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("TOKENBURNER_DB_DSN", cfg.Database.DSN)
	cfg.Auth.JWTSecret = getEnv("TOKENBURNER_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AdminKey = getEnv("TOKENBURNER_ADMIN_KEY", cfg.Auth.AdminKey)
	cfg.Client.BaseURL = getEnv("TOKENBURNER_API_URL", cfg.Client.BaseURL)
	cfg.Client.APIKey = getEnv("TOKENBURNER_API_KEY", cfg.Client.APIKey)
	cfg.Client.AgentID = getEnv("TOKENBURNER_AGENT_ID", cfg.Client.AgentID)
	cfg.Client.Strategy = getEnv("TOKENBURNER_STRATEGY", cfg.Client.Strategy)

	var err error
	if cfg.Auth.TokenExpiry, err = getEnvDuration("TOKENBURNER_TOKEN_EXPIRY", cfg.Auth.TokenExpiry); err != nil {
		return nil, err
	}
	if cfg.RateLimit.StartInterval, err = getEnvDuration("TOKENBURNER_START_INTERVAL", cfg.RateLimit.StartInterval); err != nil {
		return nil, err
	}
	if cfg.RateLimit.RegisterInterval, err = getEnvDuration("TOKENBURNER_REGISTER_INTERVAL", cfg.RateLimit.RegisterInterval); err != nil {
		return nil, err
	}
	if cfg.Client.Timeout, err = getEnvDuration("TOKENBURNER_TIMEOUT", cfg.Client.Timeout); err != nil {
		return nil, err
	}
	if cfg.Client.Duration, err = getEnvInt("TOKENBURNER_DURATION", cfg.Client.Duration); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for settings the server cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Game.MinDuration < 1 || c.Game.MinDuration > c.Game.MaxDuration {
		return fmt.Errorf("invalid duration bounds [%d, %d]", c.Game.MinDuration, c.Game.MaxDuration)
	}
	if c.RateLimit.StartInterval < 0 || c.RateLimit.RegisterInterval < 0 {
		return fmt.Errorf("rate limit intervals must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
