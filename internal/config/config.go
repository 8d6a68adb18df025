// Package config provides configuration management for minebot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the reward core. Deployments commonly shorten the
// session to 10s; tests use millisecond durations.
const (
	DefaultSessionDurationSeconds = 60
	DefaultRewardAmount           = 50
	DefaultMaxNotifyRetries       = 1
	DefaultListenAddr             = ":8090"
	DefaultSessionBackend         = "sqlite"
	DefaultTelegramAPIBase        = "https://api.telegram.org"
)

// TelegramConfig holds chat-transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token"`
	APIBase string `yaml:"api_base"`
}

// Config is the top-level YAML structure.
type Config struct {
	SessionDurationSeconds int    `yaml:"session_duration_seconds"`
	RewardAmount           int64  `yaml:"reward_amount"`
	MaxNotifyRetries       int    `yaml:"max_notify_retries"`
	SessionBackend         string `yaml:"session_backend"` // memory, sqlite or redis
	DBPath                 string `yaml:"db_path"`
	RedisAddr              string `yaml:"redis_addr"`
	ListenAddr             string `yaml:"listen_addr"`
	LogLevel               string `yaml:"log_level"`

	Telegram TelegramConfig `yaml:"telegram"`
}

// SessionDuration returns the configured mining duration.
func (c *Config) SessionDuration() time.Duration {
	return time.Duration(c.SessionDurationSeconds) * time.Second
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		SessionDurationSeconds: DefaultSessionDurationSeconds,
		RewardAmount:           DefaultRewardAmount,
		MaxNotifyRetries:       DefaultMaxNotifyRetries,
		SessionBackend:         DefaultSessionBackend,
		DBPath:                 DBPath(),
		RedisAddr:              "localhost:6379",
		ListenAddr:             DefaultListenAddr,
		LogLevel:               "info",
		Telegram: TelegramConfig{
			APIBase: DefaultTelegramAPIBase,
		},
	}
}

// DataDir returns the minebot data directory (~/.minebot).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".minebot")
}

// ConfigPath returns the config file path. MINEBOT_CONFIG overrides it.
func ConfigPath() string {
	if p := os.Getenv("MINEBOT_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(DataDir(), "config.yaml")
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "minebot.db")
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// Load reads the config file at ConfigPath, falling back to defaults for
// anything unset, then applies environment overrides. A missing file is
// not an error; the defaults are returned.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides config values from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MINEBOT_SESSION_DURATION_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionDurationSeconds = n
		}
	}
	if v := os.Getenv("MINEBOT_REWARD_AMOUNT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.RewardAmount = n
		}
	}
	if v := os.Getenv("MINEBOT_MAX_NOTIFY_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxNotifyRetries = n
		}
	}
	if v := os.Getenv("MINEBOT_SESSION_BACKEND"); v != "" {
		cfg.SessionBackend = v
	}
	if v := os.Getenv("MINEBOT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MINEBOT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("MINEBOT_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
}

// Manager holds the active configuration and supports atomic reloads.
// Only the session tunables (duration, reward, notify retries) take
// effect on reload; backend and listener changes need a restart.
type Manager struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewManager wraps cfg in a Manager.
func NewManager(cfg *Config) *Manager {
	return &Manager{cfg: cfg}
}

// Current returns a copy of the active configuration.
func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.cfg
}

// Reload re-reads the config file and swaps in the new tunables.
func (m *Manager) Reload() error {
	fresh, err := Load()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.cfg.SessionDurationSeconds = fresh.SessionDurationSeconds
	m.cfg.RewardAmount = fresh.RewardAmount
	m.cfg.MaxNotifyRetries = fresh.MaxNotifyRetries
	m.mu.Unlock()
	return nil
}
