package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/pflag"

	configpkg "github.com/minhyannv/discord-cli-go/pkg/config"
	"github.com/minhyannv/discord-cli-go/pkg/platform"
	"github.com/minhyannv/discord-cli-go/pkg/platform/platformtest"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseCLIConfigFlagsAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfg, err := parseCLIConfig(
		[]string{"--config-dir", dir, "--bot", "--history", "50", "--verbose", "--no-color"},
		env(map[string]string{
			"DISCORD_TOKEN":  " tok ",
			"OPENAI_API_KEY": "key",
			"OPENAI_MODEL":   "gpt-test",
		}),
		&bytes.Buffer{},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ConfigDir != dir || !cfg.BotToken || cfg.HistoryLimit != 50 || !cfg.Verbose || !cfg.NoColor {
		t.Fatalf("unexpected flags: %+v", cfg)
	}
	if cfg.Token != "tok" {
		t.Fatalf("token not trimmed: %q", cfg.Token)
	}
	if !cfg.SummariesEnabled() {
		t.Fatal("expected summaries to be enabled")
	}
}

func TestParseCLIConfigDefaults(t *testing.T) {
	cfg, err := parseCLIConfig(nil, env(nil), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HistoryLimit != configpkg.DefaultHistoryLimit {
		t.Fatalf("history = %d", cfg.HistoryLimit)
	}
	if cfg.ConfigDir != configpkg.DefaultConfig().ConfigDir {
		t.Fatalf("config dir = %q", cfg.ConfigDir)
	}
	if cfg.SummariesEnabled() {
		t.Fatal("summaries should be disabled without OPENAI settings")
	}
}

func TestParseCLIConfigRejectsBadInput(t *testing.T) {
	if _, err := parseCLIConfig([]string{"--history", "many"}, env(nil), &bytes.Buffer{}); err == nil {
		t.Fatal("expected invalid --history to fail")
	}
	if _, err := parseCLIConfig([]string{"extra"}, env(nil), &bytes.Buffer{}); err == nil {
		t.Fatal("expected positional arguments to be rejected")
	}
	if _, err := parseCLIConfig([]string{"--help"}, env(nil), &bytes.Buffer{}); !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
}

func TestRunMissingToken(t *testing.T) {
	var stderr bytes.Buffer
	code := run(context.Background(), []string{"--config-dir", t.TempDir()}, env(nil), strings.NewReader(""), &bytes.Buffer{}, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if got := stderr.String(); got != "Error: DISCORD_TOKEN is not set\n" {
		t.Fatalf("stderr = %q", got)
	}
}

// readySession announces readiness as soon as it is opened.
type readySession struct {
	*platformtest.Session
}

func (r readySession) Open(handler platform.EventHandler) error {
	if err := r.Session.Open(handler); err != nil {
		return err
	}
	r.Emit(platform.Event{Kind: platform.EventReady})
	return nil
}

func TestStartServesCommandsUntilExit(t *testing.T) {
	dir := t.TempDir()
	bots := "bots:\n  - name: helper\n    token: bot-token\n"
	if err := os.WriteFile(filepath.Join(dir, "bots.yaml"), []byte(bots), 0o600); err != nil {
		t.Fatalf("write bots: %v", err)
	}

	me := platformtest.New("1", "me")
	me.AddGuild(platform.Guild{ID: "42", Name: "home"}, platform.Channel{ID: "111", Name: "dev", Text: true})
	helper := platformtest.New("2", "helper")
	var (
		mu       sync.Mutex
		botFlags []bool
	)
	dial := func(token string, bot bool) (platform.Session, error) {
		mu.Lock()
		botFlags = append(botFlags, bot)
		mu.Unlock()
		if token == "bot-token" {
			return readySession{helper}, nil
		}
		return readySession{me}, nil
	}

	cfg := configpkg.Normalize(configpkg.Config{ConfigDir: dir, Token: "tok"})
	var stdout, stderr bytes.Buffer
	err := start(context.Background(), cfg, dial, strings.NewReader("/users\n/exit\n"), &stdout, &stderr)
	if err != nil {
		t.Fatalf("start: %v (stderr %s)", err, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"Ready for commands\n", "0: me\n1: helper\n", "Goodbye!\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if me.CloseCount() != 1 || helper.CloseCount() != 1 {
		t.Fatalf("close counts me=%d helper=%d", me.CloseCount(), helper.CloseCount())
	}
	if _, err := os.Stat(filepath.Join(dir, "aliases")); err != nil {
		t.Fatalf("aliases file not created: %v", err)
	}
	if len(botFlags) != 2 {
		t.Fatalf("dialed %d accounts", len(botFlags))
	}
}

func TestStartRejectsCorruptAliases(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "aliases"), []byte("not json"), 0o600); err != nil {
		t.Fatalf("write aliases: %v", err)
	}
	called := false
	dial := func(string, bool) (platform.Session, error) {
		called = true
		return nil, errors.New("unreachable")
	}

	cfg := configpkg.Normalize(configpkg.Config{ConfigDir: dir, Token: "tok"})
	err := start(context.Background(), cfg, dial, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	if !errors.Is(err, configpkg.ErrConfigCorrupt) {
		t.Fatalf("expected ErrConfigCorrupt, got %v", err)
	}
	if called {
		t.Fatal("should not connect with a corrupt alias file")
	}
}
