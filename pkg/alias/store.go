// Package alias maps short user-chosen names to Discord identifiers.
package alias

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/minhyannv/discord-cli-go/pkg/config"
)

// Category groups aliases by the kind of identifier they stand for.
type Category string

const (
	Server  Category = "server"
	Channel Category = "channel"
	User    Category = "user"
	Role    Category = "role"
)

// Categories lists every known category in file order.
var Categories = []Category{Server, Channel, User, Role}

// ErrUnknownCategory is returned for a category outside Categories.
var ErrUnknownCategory = errors.New("unknown alias category")

// ParseCategory validates a category name typed by the user.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want server, channel, user or role)", ErrUnknownCategory, name)
}

// Entry is one alias. Names are not unique; lookup returns the first match.
type Entry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Store holds aliases for all categories and persists them to a single file.
type Store struct {
	path    string
	entries map[Category][]Entry
}

func emptyEntries() map[Category][]Entry {
	m := make(map[Category][]Entry, len(Categories))
	for _, c := range Categories {
		m[c] = []Entry{}
	}
	return m
}

// Load reads the alias file at path. A missing file is created with four empty
// categories. A file that exists but does not parse yields config.ErrConfigCorrupt.
func Load(path string) (*Store, error) {
	s := &Store{path: path, entries: emptyEntries()}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read aliases: %w", err)
	}

	var raw map[string][]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", config.ErrConfigCorrupt, path, err)
	}
	for _, c := range Categories {
		if list, ok := raw[string(c)]; ok && list != nil {
			s.entries[c] = list
		}
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Resolve returns the value of the first alias named token in category c, or
// token unchanged when there is none so raw IDs can be used directly.
func (s *Store) Resolve(token string, c Category) string {
	for _, e := range s.entries[c] {
		if e.Name == token {
			return e.Value
		}
	}
	return token
}

// Shadowed reports whether name already has an entry in category c.
func (s *Store) Shadowed(c Category, name string) bool {
	for _, e := range s.entries[c] {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Entries returns a copy of the aliases in category c.
func (s *Store) Entries(c Category) []Entry {
	out := make([]Entry, len(s.entries[c]))
	copy(out, s.entries[c])
	return out
}

// Add appends an alias and rewrites the whole file.
func (s *Store) Add(c Category, name, value string) error {
	if _, err := ParseCategory(string(c)); err != nil {
		return err
	}
	s.entries[c] = append(s.entries[c], Entry{Name: name, Value: value})
	return s.save()
}

func (s *Store) save() error {
	payload, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("encode aliases: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".aliases-*")
	if err != nil {
		return fmt.Errorf("write aliases: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write aliases: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write aliases: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write aliases: %w", err)
	}
	return nil
}
