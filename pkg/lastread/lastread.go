// Package lastread persists the time the user last caught up on messages.
package lastread

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/minhyannv/discord-cli-go/pkg/config"
)

// Load returns the stored timestamp. A missing file means nothing was read yet
// and yields the zero time.
func Load(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read lastread: %w", err)
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("%w: %s: not an epoch timestamp", config.ErrConfigCorrupt, path)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)), nil
}

// Mark overwrites the stored timestamp with t as epoch seconds.
func Mark(path string, t time.Time) error {
	secs := float64(t.Unix()) + float64(t.Nanosecond())/1e9
	text := strconv.FormatFloat(secs, 'f', 6, 64)
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return fmt.Errorf("write lastread: %w", err)
	}
	return nil
}
