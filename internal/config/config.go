package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the Hive server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Presence  PresenceConfig  `yaml:"presence"`
	Push      PushConfig      `yaml:"push"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Swarm     SwarmConfig     `yaml:"swarm"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	// BaseURL is used to build canonical ingest URLs returned to clients.
	BaseURL string `yaml:"base_url"`
}

// GetHost returns the server host, honoring container/env overrides.
func (c ServerConfig) GetHost() string {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the optional Redis connection used for the
// recurring-generator lock. Empty URL disables Redis and the generator
// falls back to a Postgres advisory lock.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds the fixed user roster and the bearer token table.
// Tokens map token → user name; admins lists user names with admin
// privileges. The roster is immutable after startup; changes require a
// restart.
type AuthConfig struct {
	Roster []string          `yaml:"roster"`
	Tokens map[string]string `yaml:"tokens"`
	Admins []string          `yaml:"admins"`
}

// InRoster reports whether user is a known roster member.
func (c AuthConfig) InRoster(user string) bool {
	for _, u := range c.Roster {
		if u == user {
			return true
		}
	}
	return false
}

// IsAdmin reports whether user has admin privileges.
func (c AuthConfig) IsAdmin(user string) bool {
	for _, u := range c.Admins {
		if u == user {
			return true
		}
	}
	return false
}

// PresenceConfig holds presence tracker tunables.
type PresenceConfig struct {
	APITimeoutSeconds   int `yaml:"api_timeout_seconds"`
	SweepIntervalSecond int `yaml:"sweep_interval_seconds"`
}

// APITimeout returns how long API activity keeps a user online.
func (c PresenceConfig) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// SweepInterval returns how often the stale-activity sweeper runs.
func (c PresenceConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecond) * time.Second
}

// PushConfig holds SSE stream tunables.
type PushConfig struct {
	KeepaliveSeconds int `yaml:"keepalive_seconds"`
	// BufferSize is the per-connection event buffer; slow clients that
	// fall behind this far have events dropped (they catch up via
	// sinceId / since cursors on reconnect).
	BufferSize int `yaml:"buffer_size"`
}

// Keepalive returns the keepalive comment interval.
func (c PushConfig) Keepalive() time.Duration {
	return time.Duration(c.KeepaliveSeconds) * time.Second
}

// BroadcastConfig holds broadcast feed tunables.
type BroadcastConfig struct {
	// MaxIngestBytes caps webhook ingest bodies. Default 256 KiB.
	MaxIngestBytes int64 `yaml:"max_ingest_bytes"`
	// ReplayCount is how many recent events a buzz stream replays on connect.
	ReplayCount int `yaml:"replay_count"`
}

// SwarmConfig holds recurring generator tunables.
type SwarmConfig struct {
	GeneratorHorizonDays int `yaml:"generator_horizon_days"`
	GeneratorMaxPerRun   int `yaml:"generator_max_per_run"`
}

// Load reads and parses the configuration file, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("HIVE_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HIVE_ADMIN_USERS"); v != "" {
		cfg.Auth.Admins = splitList(v)
	}
	if v := os.Getenv("HIVE_ROSTER"); v != "" {
		cfg.Auth.Roster = splitList(v)
	}
	// HIVE_TOKENS is "token1:user1,token2:user2".
	if v := os.Getenv("HIVE_TOKENS"); v != "" {
		tokens := map[string]string{}
		for _, pair := range strings.Split(v, ",") {
			parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
			if len(parts) == 2 {
				tokens[parts[0]] = strings.ToLower(parts[1])
			}
		}
		cfg.Auth.Tokens = tokens
	}

	return cfg, nil
}

// Validate checks the parts of the config the server cannot run without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url (or DATABASE_URL) is required")
	}
	if len(c.Auth.Roster) == 0 {
		return fmt.Errorf("auth.roster must name at least one user")
	}
	for _, u := range c.Auth.Roster {
		if u != strings.ToLower(u) {
			return fmt.Errorf("roster user %q must be lowercase", u)
		}
	}
	for _, user := range c.Auth.Tokens {
		if !c.Auth.InRoster(user) {
			return fmt.Errorf("token maps to unknown user %q", user)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Presence.APITimeoutSeconds == 0 {
		c.Presence.APITimeoutSeconds = 300
	}
	if c.Presence.SweepIntervalSecond == 0 {
		c.Presence.SweepIntervalSecond = 30
	}
	if c.Push.KeepaliveSeconds == 0 {
		c.Push.KeepaliveSeconds = 30
	}
	if c.Push.BufferSize == 0 {
		c.Push.BufferSize = 64
	}
	if c.Broadcast.MaxIngestBytes == 0 {
		c.Broadcast.MaxIngestBytes = 256 * 1024
	}
	if c.Broadcast.ReplayCount == 0 {
		c.Broadcast.ReplayCount = 50
	}
	if c.Swarm.GeneratorHorizonDays == 0 {
		c.Swarm.GeneratorHorizonDays = 14
	}
	if c.Swarm.GeneratorMaxPerRun == 0 {
		c.Swarm.GeneratorMaxPerRun = 10
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
