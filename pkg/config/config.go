package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor methods.
//
// Example (~/.aurachat/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8090
// auth:
//   token_ttl_hours: 168
// upstream:
//   model: gemini-2.5-flash
//   fallback_model: gemini-2.0-flash
//   max_tokens_cap: 2000
// quota:
//   guest_daily_limit: 10
// stream:
//   token_interval_ms: 80
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Secrets (JWT secret, upstream API key) come from the environment, not
//   from the file: AURACHAT_JWT_SECRET, GEMINI_API_KEY,
//   AURACHAT_PROVISION_KEY.

type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Quota    QuotaConfig    `yaml:"quota"`
	Stream   StreamConfig   `yaml:"stream"`
	Database DatabaseConfig `yaml:"database"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type AuthConfig struct {
	TokenTTLHours *int `yaml:"token_ttl_hours"`
}

type UpstreamConfig struct {
	BaseURL        *string `yaml:"base_url"`
	Model          *string `yaml:"model"`
	FallbackModel  *string `yaml:"fallback_model"`
	TimeoutSeconds *int    `yaml:"timeout_seconds"`
	MaxRetries     *int    `yaml:"max_retries"`
	MaxTokensCap   *int    `yaml:"max_tokens_cap"`
	HistoryWindow  *int    `yaml:"history_window"`
}

type QuotaConfig struct {
	GuestDailyLimit *int `yaml:"guest_daily_limit"`
}

type StreamConfig struct {
	TokenIntervalMS *int `yaml:"token_interval_ms"`
}

type DatabaseConfig struct {
	Path *string `yaml:"path"`
}

const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 8090
	DefaultTokenTTLHours   = 168
	DefaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel           = "gemini-2.5-flash"
	DefaultTimeoutSeconds  = 20
	DefaultMaxRetries      = 3
	DefaultMaxTokensCap    = 2000
	DefaultHistoryWindow   = 12
	DefaultGuestDailyLimit = 10
	DefaultTokenIntervalMS = 80
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".aurachat")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.aurachat/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	if strings.TrimSpace(cfg.Host()) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}
	if p := cfg.Port(); p < 1 || p > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", p, configFile)
	}
	if l := cfg.GuestDailyLimit(); l < 1 {
		return nil, "", fmt.Errorf("invalid quota.guest_daily_limit %d in %s", l, configFile)
	}
	if w := cfg.HistoryWindow(); w < 1 {
		return nil, "", fmt.Errorf("invalid upstream.history_window %d in %s", w, configFile)
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{
		Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)},
	}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	if v := strings.TrimSpace(*c.Server.Host); v != "" {
		return v
	}
	return DefaultHost
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

// TokenTTL is how long minted session credentials stay valid.
func (c *AppConfig) TokenTTL() time.Duration {
	hours := DefaultTokenTTLHours
	if c != nil && c.Auth.TokenTTLHours != nil && *c.Auth.TokenTTLHours > 0 {
		hours = *c.Auth.TokenTTLHours
	}
	return time.Duration(hours) * time.Hour
}

func (c *AppConfig) UpstreamBaseURL() string {
	if c == nil || c.Upstream.BaseURL == nil {
		return DefaultBaseURL
	}
	if v := strings.TrimRight(strings.TrimSpace(*c.Upstream.BaseURL), "/"); v != "" {
		return v
	}
	return DefaultBaseURL
}

func (c *AppConfig) UpstreamModel() string {
	if c == nil || c.Upstream.Model == nil {
		return DefaultModel
	}
	if v := strings.TrimSpace(*c.Upstream.Model); v != "" {
		return v
	}
	return DefaultModel
}

// UpstreamFallbackModel is empty when no fallback is configured.
func (c *AppConfig) UpstreamFallbackModel() string {
	if c == nil || c.Upstream.FallbackModel == nil {
		return ""
	}
	return strings.TrimSpace(*c.Upstream.FallbackModel)
}

func (c *AppConfig) UpstreamTimeout() time.Duration {
	secs := DefaultTimeoutSeconds
	if c != nil && c.Upstream.TimeoutSeconds != nil && *c.Upstream.TimeoutSeconds > 0 {
		secs = *c.Upstream.TimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

func (c *AppConfig) UpstreamMaxRetries() int {
	if c == nil || c.Upstream.MaxRetries == nil || *c.Upstream.MaxRetries < 0 {
		return DefaultMaxRetries
	}
	return *c.Upstream.MaxRetries
}

func (c *AppConfig) MaxTokensCap() int {
	if c == nil || c.Upstream.MaxTokensCap == nil || *c.Upstream.MaxTokensCap < 1 {
		return DefaultMaxTokensCap
	}
	return *c.Upstream.MaxTokensCap
}

func (c *AppConfig) HistoryWindow() int {
	if c == nil || c.Upstream.HistoryWindow == nil {
		return DefaultHistoryWindow
	}
	return *c.Upstream.HistoryWindow
}

func (c *AppConfig) GuestDailyLimit() int {
	if c == nil || c.Quota.GuestDailyLimit == nil {
		return DefaultGuestDailyLimit
	}
	return *c.Quota.GuestDailyLimit
}

func (c *AppConfig) TokenInterval() time.Duration {
	ms := DefaultTokenIntervalMS
	if c != nil && c.Stream.TokenIntervalMS != nil && *c.Stream.TokenIntervalMS >= 0 {
		ms = *c.Stream.TokenIntervalMS
	}
	return time.Duration(ms) * time.Millisecond
}

// DatabasePath defaults to a sqlite file next to the config.
func (c *AppConfig) DatabasePath() (string, error) {
	if c != nil && c.Database.Path != nil && strings.TrimSpace(*c.Database.Path) != "" {
		return *c.Database.Path, nil
	}
	configDir, _, err := DefaultPaths()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "aurachat.db"), nil
}

// JWTSecret reads the session-token signing secret from the environment.
func (c *AppConfig) JWTSecret() string {
	return strings.TrimSpace(os.Getenv("AURACHAT_JWT_SECRET"))
}

// UpstreamAPIKey reads the completion API key from the environment.
func (c *AppConfig) UpstreamAPIKey() string {
	return strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
}

// ProvisionKey guards the token-mint endpoint; empty disables the guard.
func (c *AppConfig) ProvisionKey() string {
	return strings.TrimSpace(os.Getenv("AURACHAT_PROVISION_KEY"))
}

func ptr[T any](v T) *T { return &v }
