package session

import loggerpkg "github.com/minhyannv/discord-cli-go/pkg/logger"

// Option configures optional runtime dependencies for Registry.
type Option func(*registryDeps)

type registryDeps struct {
	logger      loggerpkg.Logger
	verbose     bool
	eventBuffer int
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger, verbose bool) Option {
	return func(d *registryDeps) {
		if l != nil {
			d.logger = l
		}
		d.verbose = verbose
	}
}

// WithEventBuffer sets how many events may queue while the REPL is busy.
func WithEventBuffer(n int) Option {
	return func(d *registryDeps) {
		if n > 0 {
			d.eventBuffer = n
		}
	}
}
