package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrConfigCorrupt reports a persisted file that exists but cannot be parsed.
var ErrConfigCorrupt = errors.New("config corrupt")

const (
	appDirName       = "discord-cli"
	aliasFileName    = "aliases"
	lastReadFileName = "lastread"
	botsFileName     = "bots.yaml"

	DefaultHistoryLimit = 20
)

// Config holds all runtime configuration for the client.
type Config struct {
	ConfigDir    string
	HistoryLimit int
	Verbose      bool
	NoColor      bool

	Token    string
	BotToken bool

	// Summaries are enabled only when APIKey and Model are set.
	APIKey  string
	BaseURL string
	Model   string
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			home = "."
		}
		dir = filepath.Join(home, ".config")
	}
	return Config{
		ConfigDir:    filepath.Join(dir, appDirName),
		HistoryLimit: DefaultHistoryLimit,
	}
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) Config {
	cfg.ConfigDir = strings.TrimSpace(cfg.ConfigDir)
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)

	if cfg.ConfigDir == "" {
		cfg.ConfigDir = DefaultConfig().ConfigDir
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > 100 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return cfg
}

// Validate reports configuration that makes startup impossible.
func (c Config) Validate() error {
	if c.Token == "" {
		return errors.New("DISCORD_TOKEN is not set")
	}
	return nil
}

// SummariesEnabled reports whether an OpenAI-compatible model is configured.
func (c Config) SummariesEnabled() bool {
	return c.APIKey != "" && c.Model != ""
}

func (c Config) AliasFile() string    { return filepath.Join(c.ConfigDir, aliasFileName) }
func (c Config) LastReadFile() string { return filepath.Join(c.ConfigDir, lastReadFileName) }
func (c Config) BotsFile() string     { return filepath.Join(c.ConfigDir, botsFileName) }

// EnsureDir creates the configuration directory if it does not exist.
func (c Config) EnsureDir() error {
	if err := os.MkdirAll(c.ConfigDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return nil
}
