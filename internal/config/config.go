// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds all application configuration.
type Config struct {
	Port           string          `yaml:"port"`
	FrontendURL    string          `yaml:"frontend_url"`
	LogLevel       string          `yaml:"log_level"`
	SessionIdleTTL time.Duration   `yaml:"session_idle_ttl"`
	MaxRequestBody int64           `yaml:"max_request_body"`
	Recipe         RecipeConfig    `yaml:"recipe"`
	Realtime       RealtimeConfig  `yaml:"realtime"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// RecipeConfig controls the language model used for search and detailing.
type RecipeConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RealtimeConfig controls the conversational voice endpoint.
type RealtimeConfig struct {
	APIKey           string        `yaml:"api_key"`
	URL              string        `yaml:"url"`
	Model            string        `yaml:"model"`
	Voice            string        `yaml:"voice"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
	EventQueueSize   int           `yaml:"event_queue_size"`
}

// RateLimitConfig controls per-client throttling of the recipe endpoints.
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window"`
	WindowDuration    time.Duration `yaml:"window"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:           "8000",
		LogLevel:       "info",
		MaxRequestBody: 1 << 20,
		Recipe: RecipeConfig{
			Model:   "gpt-4o",
			Timeout: 90 * time.Second,
		},
		Realtime: RealtimeConfig{
			URL:              "wss://api.openai.com/v1/realtime",
			Model:            "gpt-4o-realtime-preview-2024-12-17",
			Voice:            "alloy",
			HandshakeTimeout: 5 * time.Second,
			SettleDelay:      500 * time.Millisecond,
			EventQueueSize:   256,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 10,
			WindowDuration:    time.Minute,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		slog.Info("Loaded configuration file", "path", path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.FrontendURL = getEnv("FRONTEND_URL", c.FrontendURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.SessionIdleTTL = getEnvDuration("SESSION_IDLE_TTL", c.SessionIdleTTL)
	c.MaxRequestBody = int64(getEnvInt("MAX_REQUEST_BODY", int(c.MaxRequestBody)))

	// A single OpenAI key serves both capabilities unless overridden.
	openAIKey := getEnv("OPENAI_API_KEY", "")
	c.Recipe.APIKey = getEnv("RECIPE_API_KEY", firstNonEmpty(c.Recipe.APIKey, openAIKey))
	c.Recipe.BaseURL = getEnv("RECIPE_BASE_URL", getEnv("OPENAI_BASE_URL", c.Recipe.BaseURL))
	c.Recipe.Model = getEnv("RECIPE_MODEL", c.Recipe.Model)
	c.Recipe.Timeout = getEnvDuration("RECIPE_TIMEOUT", c.Recipe.Timeout)

	c.Realtime.APIKey = getEnv("REALTIME_API_KEY", firstNonEmpty(c.Realtime.APIKey, openAIKey))
	c.Realtime.URL = getEnv("REALTIME_URL", c.Realtime.URL)
	c.Realtime.Model = getEnv("REALTIME_MODEL", c.Realtime.Model)
	c.Realtime.Voice = getEnv("REALTIME_VOICE", c.Realtime.Voice)
	c.Realtime.HandshakeTimeout = getEnvDuration("HANDSHAKE_TIMEOUT", c.Realtime.HandshakeTimeout)
	c.Realtime.SettleDelay = getEnvDuration("SETTLE_DELAY", c.Realtime.SettleDelay)
	c.Realtime.EventQueueSize = getEnvInt("EVENT_QUEUE_SIZE", c.Realtime.EventQueueSize)

	c.RateLimit.RequestsPerWindow = getEnvInt("RATE_LIMIT_REQUESTS", c.RateLimit.RequestsPerWindow)
	c.RateLimit.WindowDuration = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimit.WindowDuration)
}

// Validate checks that all required configuration fields are set.
// Credentials are not required here: a missing key only fails the operation that needs it.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Recipe.Model == "" {
		return fmt.Errorf("RECIPE_MODEL cannot be empty")
	}
	if c.Recipe.Timeout <= 0 {
		return fmt.Errorf("RECIPE_TIMEOUT must be > 0")
	}
	if c.Realtime.URL == "" {
		return fmt.Errorf("REALTIME_URL cannot be empty")
	}
	if c.Realtime.HandshakeTimeout <= 0 {
		return fmt.Errorf("HANDSHAKE_TIMEOUT must be > 0")
	}
	if c.Realtime.SettleDelay < 0 {
		return fmt.Errorf("SETTLE_DELAY cannot be negative")
	}
	if c.Realtime.EventQueueSize <= 0 {
		return fmt.Errorf("EVENT_QUEUE_SIZE must be > 0")
	}
	if c.SessionIdleTTL < 0 {
		return fmt.Errorf("SESSION_IDLE_TTL cannot be negative")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.MaxRequestBody <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the configured frontend.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
