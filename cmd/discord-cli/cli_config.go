package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	configpkg "github.com/minhyannv/discord-cli-go/pkg/config"
)

// parseCLIConfig loads env + flags into runtime config. Flags win over the
// environment; a missing .env file is not an error.
func parseCLIConfig(args []string, getenv func(string) string, stderr io.Writer) (configpkg.Config, error) {
	_ = godotenv.Load()

	defaults := configpkg.DefaultConfig()
	fs := pflag.NewFlagSet("discord-cli", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config-dir", defaults.ConfigDir, "Directory holding aliases, lastread and bots.yaml")
	bot := fs.Bool("bot", false, "Treat DISCORD_TOKEN as a bot token")
	history := fs.Int("history", defaults.HistoryLimit, "Number of messages shown by list and summary (1-100)")
	verbose := fs.Bool("verbose", false, "Verbose debug logging")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	if err := fs.Parse(args); err != nil {
		return configpkg.Config{}, err
	}
	if fs.NArg() > 0 {
		return configpkg.Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg := defaults
	cfg.ConfigDir = *configDir
	cfg.BotToken = *bot
	cfg.HistoryLimit = *history
	cfg.Verbose = *verbose
	cfg.NoColor = *noColor
	cfg.Token = getenv("DISCORD_TOKEN")
	cfg.APIKey = getenv("OPENAI_API_KEY")
	cfg.BaseURL = getenv("OPENAI_BASE_URL")
	cfg.Model = getenv("OPENAI_MODEL")
	return configpkg.Normalize(cfg), nil
}
