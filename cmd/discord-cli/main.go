// Package main provides the interactive Discord command-line client.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/minhyannv/discord-cli-go/pkg/alias"
	"github.com/minhyannv/discord-cli-go/pkg/commands"
	configpkg "github.com/minhyannv/discord-cli-go/pkg/config"
	"github.com/minhyannv/discord-cli-go/pkg/lastread"
	loggerpkg "github.com/minhyannv/discord-cli-go/pkg/logger"
	"github.com/minhyannv/discord-cli-go/pkg/platform"
	"github.com/minhyannv/discord-cli-go/pkg/repl"
	"github.com/minhyannv/discord-cli-go/pkg/session"
	"github.com/minhyannv/discord-cli-go/pkg/summary"
)

// main is the program entry point.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseCLIConfig(args, getenv, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		printError(stderr, err)
		return 2
	}
	if err := start(ctx, cfg, platform.DialDiscord, stdin, stdout, stderr); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

// start wires every component and blocks in the REPL until it exits.
func start(ctx context.Context, cfg configpkg.Config, dial platform.Dialer, stdin io.Reader, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	color.NoColor = cfg.NoColor || !isTerminal(stdout)

	appLogger := loggerpkg.NewWriterLogger(stderr)
	platform.RouteLibraryLogs(appLogger, cfg.Verbose)

	if err := cfg.EnsureDir(); err != nil {
		return err
	}
	aliases, err := alias.Load(cfg.AliasFile())
	if err != nil {
		return err
	}
	if _, err := lastread.Load(cfg.LastReadFile()); err != nil {
		return err
	}
	bots, err := session.LoadBots(cfg.BotsFile())
	if err != nil {
		return err
	}

	sc := &commands.Context{
		Aliases:      aliases,
		LastReadPath: cfg.LastReadFile(),
		HistoryLimit: cfg.HistoryLimit,
		Out:          stdout,
		Logger:       appLogger,
		Verbose:      cfg.Verbose,
	}
	if cfg.SummariesEnabled() {
		s, err := summary.New(cfg, summary.WithLogger(appLogger))
		if err != nil {
			return err
		}
		sc.Summarizer = s
	}

	registry := session.New(dial, session.WithLogger(appLogger, cfg.Verbose))
	primary := session.Account{Name: "primary", Token: cfg.Token, Bot: cfg.BotToken}
	if err := registry.ConnectAll(ctx, primary, bots); err != nil {
		return err
	}
	sc.Sessions = registry
	loggerpkg.Debug(cfg.Verbose, appLogger, "sessions connected", map[string]any{
		"sessions":  len(registry.Sessions()),
		"configDir": cfg.ConfigDir,
	})

	return repl.New(sc, commands.NewBuiltin(), stdin).Run(ctx)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
