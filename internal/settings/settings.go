// Package settings loads the daemon's TOML settings file and watches it for
// edits so goal changes apply without a restart.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Settings is the on-disk configuration for the daemon. Every field has a
// usable zero-config default; an absent file is not an error.
type Settings struct {
	ListenAddr         string `toml:"listen_addr"`
	APIToken           string `toml:"api_token"`
	StateDSN           string `toml:"state_dsn"`
	LogDir             string `toml:"log_dir"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`

	Remote RemoteSettings `toml:"remote"`
	Goal   GoalSettings   `toml:"goal"`
}

// RemoteSettings configures the upstream activity service.
type RemoteSettings struct {
	BaseURL       string `toml:"base_url"`
	SessionCookie string `toml:"session_cookie"`
}

// GoalSettings is the enforceable part of the file. It maps directly onto the
// engine's account settings.
type GoalSettings struct {
	Username         string `toml:"username"`
	DailyGoal        int    `toml:"daily_goal"`
	RequireDaily     bool   `toml:"require_daily"`
	NotifyOnComplete *bool  `toml:"notify_on_complete"`
}

const (
	defaultSettingsPath = "~/.config/solvegate/settings.toml"
	defaultDataDir      = "~/.local/share/solvegate"
	defaultListenAddr   = "127.0.0.1:7433"
	defaultDailyGoal    = 1
)

// DefaultPath returns the default settings file location.
func DefaultPath() string {
	return defaultSettingsPath
}

// Load locates and parses the settings file, falling back to defaults when it
// does not exist.
func Load(path string) (Settings, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Settings{}, err
	}

	cfg := defaults()

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}

	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.StateDSN = strings.TrimSpace(cfg.StateDSN)
	if cfg.StateDSN == "" {
		cfg.StateDSN = defaultStateDSN()
	}
	cfg.LogDir = mustExpand(strings.TrimSpace(cfg.LogDir))
	if cfg.LogDir == "" {
		cfg.LogDir = mustExpand(defaultDataDir)
	}
	if cfg.Goal.DailyGoal <= 0 {
		cfg.Goal.DailyGoal = defaultDailyGoal
	}
	cfg.Goal.Username = strings.TrimSpace(cfg.Goal.Username)
	return cfg, nil
}

// NotifyOnComplete resolves the optional notification flag; unset means on.
func (g GoalSettings) NotifyEnabled() bool {
	if g.NotifyOnComplete == nil {
		return true
	}
	return *g.NotifyOnComplete
}

func defaults() Settings {
	return Settings{
		ListenAddr: defaultListenAddr,
		StateDSN:   defaultStateDSN(),
		LogDir:     mustExpand(defaultDataDir),
		Goal:       GoalSettings{DailyGoal: defaultDailyGoal},
	}
}

func defaultStateDSN() string {
	return "sqlite://" + filepath.Join(mustExpand(defaultDataDir), "state.db")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultSettingsPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	if path == "" {
		return ""
	}
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
