package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/minhyannv/discord-cli-go/pkg/config"
)

// botsFile mirrors bots.yaml:
//
//	bots:
//	  - name: helper
//	    token: xxxx
type botsFile struct {
	Bots []Account `yaml:"bots"`
}

// LoadBots returns the secondary bot accounts listed in path. A missing file
// means no bots.
func LoadBots(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bots: %w", err)
	}

	var file botsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", config.ErrConfigCorrupt, path, err)
	}

	bots := make([]Account, 0, len(file.Bots))
	for i, b := range file.Bots {
		b.Token = strings.TrimSpace(b.Token)
		if b.Token == "" {
			return nil, fmt.Errorf("%w: %s: bot %d has no token", config.ErrConfigCorrupt, path, i)
		}
		b.Name = strings.TrimSpace(b.Name)
		if b.Name == "" {
			b.Name = fmt.Sprintf("bot-%d", i+1)
		}
		b.Bot = true
		bots = append(bots, b)
	}
	return bots, nil
}
