package alias

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/minhyannv/discord-cli-go/pkg/config"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, c := range Categories {
		if got := s.Entries(c); len(got) != 0 {
			t.Fatalf("expected empty %s category, got %v", c, got)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected alias file to be persisted: %v", err)
	}
	want := `{"channel":[],"role":[],"server":[],"user":[]}`
	if string(data) != want {
		t.Fatalf("unexpected default file:\nwant %s\ngot  %s", want, data)
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases")
	for _, content := range []string{`not json`, `["server"]`, `{"server":"x"}`} {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write aliases: %v", err)
		}
		_, err := Load(path)
		if !errors.Is(err, config.ErrConfigCorrupt) {
			t.Fatalf("content %q: expected ErrConfigCorrupt, got %v", content, err)
		}
	}
}

func TestLoadFillsMissingCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases")
	if err := os.WriteFile(path, []byte(`{"channel":[{"name":"dev","value":"111"}]}`), 0o600); err != nil {
		t.Fatalf("write aliases: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.Resolve("dev", Channel); got != "111" {
		t.Fatalf("expected dev -> 111, got %q", got)
	}
	if got := s.Entries(User); got == nil || len(got) != 0 {
		t.Fatalf("expected empty user category, got %#v", got)
	}
}

func TestResolvePassesThroughUnknownTokens(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "aliases"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Add(User, "alice", "123"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	for _, c := range Categories {
		for _, token := range []string{"bob", "987654321", ""} {
			if got := s.Resolve(token, c); got != token {
				t.Fatalf("Resolve(%q, %s) = %q, want pass-through", token, c, got)
			}
		}
	}
	// Aliases are scoped to their category.
	if got := s.Resolve("alice", Role); got != "alice" {
		t.Fatalf("expected alice to pass through in role category, got %q", got)
	}
}

func TestAddThenResolveEveryCategory(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "aliases"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i, c := range Categories {
		value := string(rune('1' + i))
		if err := s.Add(c, "name", value); err != nil {
			t.Fatalf("Add(%s): %v", c, err)
		}
		if got := s.Resolve("name", c); got != value {
			t.Fatalf("Resolve(name, %s) = %q, want %q", c, got, value)
		}
	}
}

func TestDuplicateNamesResolveToFirstEntry(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "aliases"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Shadowed(Channel, "dev") {
		t.Fatal("expected dev to be unknown before Add")
	}
	_ = s.Add(Channel, "dev", "111")
	_ = s.Add(Channel, "dev", "222")
	if !s.Shadowed(Channel, "dev") {
		t.Fatal("expected dev to be reported as shadowed")
	}
	if got := s.Resolve("dev", Channel); got != "111" {
		t.Fatalf("expected first match 111, got %q", got)
	}
}

func TestSaveReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = s.Add(Server, "home", "42")
	_ = s.Add(Channel, "dev", "111")
	_ = s.Add(User, "alice", "123")
	_ = s.Add(Role, "mods", "7")
	_ = s.Add(User, "bob", "456")

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff(s.entries, reloaded.entries); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAddRejectsUnknownCategory(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "aliases"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Add(Category("emoji"), "x", "y"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if _, err := ParseCategory("channel"); err != nil {
		t.Fatalf("ParseCategory(channel): %v", err)
	}
}
