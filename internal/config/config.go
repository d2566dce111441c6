// ABOUTME: Configuration loading and parsing for parlor-hub
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete parlor-hub configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Bot       BotConfig       `yaml:"bot"`
	Generator GeneratorConfig `yaml:"generator"`
	Corpus    []CorpusSource  `yaml:"corpus"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address and liveness configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	HeartbeatInterval time.Duration `yaml:"-"`
	HeartbeatTimeout  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
	HeartbeatTimeoutRaw  string `yaml:"heartbeat_timeout"`
}

// AuthConfig holds session-token and admin-credential configuration
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`

	TokenTTL    time.Duration `yaml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig holds response-cache configuration
type CacheConfig struct {
	Path           string   `yaml:"path"`
	Threshold      float64  `yaml:"threshold"`
	BypassKeywords []string `yaml:"bypass_keywords"`
}

// BotConfig holds agent participant configuration
type BotConfig struct {
	Name          string   `yaml:"name"`
	TopicKeywords []string `yaml:"topic_keywords"`

	TypingDelayMin time.Duration `yaml:"-"`
	TypingDelayMax time.Duration `yaml:"-"`

	TypingDelayMinRaw string `yaml:"typing_delay_min"`
	TypingDelayMaxRaw string `yaml:"typing_delay_max"`
}

// GeneratorConfig holds the generation collaborator's endpoint configuration
type GeneratorConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// CorpusSource names one project corpus file and its default category tag
type CorpusSource struct {
	Path        string `yaml:"path"`
	DefaultType string `yaml:"default_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Cache.Threshold < 0 || c.Cache.Threshold > 1 {
		return fmt.Errorf("cache.threshold must be between 0 and 1")
	}

	if c.Bot.TypingDelayMax < c.Bot.TypingDelayMin {
		return fmt.Errorf("bot.typing_delay_max must not be less than bot.typing_delay_min")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{cfg.Server.HeartbeatIntervalRaw, &cfg.Server.HeartbeatInterval, "server.heartbeat_interval"},
		{cfg.Server.HeartbeatTimeoutRaw, &cfg.Server.HeartbeatTimeout, "server.heartbeat_timeout"},
		{cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL, "auth.token_ttl"},
		{cfg.Bot.TypingDelayMinRaw, &cfg.Bot.TypingDelayMin, "bot.typing_delay_min"},
		{cfg.Bot.TypingDelayMaxRaw, &cfg.Bot.TypingDelayMax, "bot.typing_delay_max"},
		{cfg.Generator.TimeoutRaw, &cfg.Generator.Timeout, "generator.timeout"},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
