// Package session keeps the list of logged-in platform sessions and which one
// the REPL drives.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	loggerpkg "github.com/minhyannv/discord-cli-go/pkg/logger"
	"github.com/minhyannv/discord-cli-go/pkg/platform"
)

// ErrIndexOutOfRange is returned by Switch for an index with no session.
var ErrIndexOutOfRange = errors.New("session index out of range")

const defaultEventBuffer = 64

// Account is a credential to log in with.
type Account struct {
	Name  string `yaml:"name"`
	Token string `yaml:"token"`
	Bot   bool   `yaml:"-"`
}

// Event is a platform event tagged with the session that produced it.
type Event struct {
	Source platform.Session
	platform.Event
}

// Registry holds the primary session at index 0 followed by secondary bot
// sessions. It is driven from a single goroutine; only event delivery crosses
// goroutines.
type Registry struct {
	dial    platform.Dialer
	logger  loggerpkg.Logger
	verbose bool

	sessions []platform.Session
	active   int

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New builds an empty registry that creates sessions with dial.
func New(dial platform.Dialer, opts ...Option) *Registry {
	deps := registryDeps{logger: loggerpkg.NopLogger{}, eventBuffer: defaultEventBuffer}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	return &Registry{
		dial:    dial,
		logger:  deps.logger,
		verbose: deps.verbose,
		events:  make(chan Event, deps.eventBuffer),
		done:    make(chan struct{}),
	}
}

// ConnectAll logs in the primary account and every bot concurrently. A
// primary failure is returned and closes whatever did connect; failed bots are
// logged and left out of the list.
func (r *Registry) ConnectAll(ctx context.Context, primary Account, bots []Account) error {
	accounts := append([]Account{primary}, bots...)
	opened := make([]platform.Session, len(accounts))
	failures := make([]error, len(accounts))

	var g errgroup.Group
	for i, acct := range accounts {
		i, acct := i, acct
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failures[i] = err
				return nil
			}
			s, err := r.dial(acct.Token, acct.Bot)
			if err != nil {
				failures[i] = err
				return nil
			}
			if err := s.Open(r.sink(s)); err != nil {
				failures[i] = err
				return nil
			}
			opened[i] = s
			return nil
		})
	}
	_ = g.Wait()

	if failures[0] != nil {
		for _, s := range opened {
			if s != nil {
				_ = s.Close()
			}
		}
		return fmt.Errorf("connect primary session: %w", failures[0])
	}

	r.sessions = r.sessions[:0]
	for i, s := range opened {
		if s == nil {
			loggerpkg.Warn(r.logger, "bot session failed to connect", map[string]any{
				"name":  accounts[i].Name,
				"error": failures[i].Error(),
			})
			continue
		}
		r.sessions = append(r.sessions, s)
	}
	r.active = 0
	loggerpkg.Debug(r.verbose, r.logger, "sessions connected", map[string]any{
		"requested": len(accounts),
		"connected": len(r.sessions),
	})
	return nil
}

// sink forwards events until teardown starts.
func (r *Registry) sink(s platform.Session) platform.EventHandler {
	return func(ev platform.Event) {
		select {
		case <-r.done:
			return
		default:
		}
		select {
		case r.events <- Event{Source: s, Event: ev}:
		case <-r.done:
		}
	}
}

// Events is the merged event stream of all sessions.
func (r *Registry) Events() <-chan Event { return r.events }

// Sessions returns the connected sessions in index order.
func (r *Registry) Sessions() []platform.Session {
	out := make([]platform.Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Primary returns the interactive user session, or nil before ConnectAll.
func (r *Registry) Primary() platform.Session {
	if len(r.sessions) == 0 {
		return nil
	}
	return r.sessions[0]
}

// Active returns the session commands run against.
func (r *Registry) Active() platform.Session {
	if len(r.sessions) == 0 {
		return nil
	}
	return r.sessions[r.active]
}

func (r *Registry) ActiveIndex() int { return r.active }

// Switch makes sessions[index] active. An invalid index leaves the active
// session unchanged.
func (r *Registry) Switch(index int) error {
	if index < 0 || index >= len(r.sessions) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(r.sessions))
	}
	r.active = index
	loggerpkg.Debugf(r.verbose, r.logger, "active session switched to %d", index)
	return nil
}

// DisconnectAll closes every session once. Later calls return the first
// result. A failing session does not stop the others from closing.
func (r *Registry) DisconnectAll() error {
	r.closeOnce.Do(func() {
		close(r.done)
		var errs []error
		for i, s := range r.sessions {
			if err := s.Close(); err != nil {
				loggerpkg.Warn(r.logger, "session close failed", map[string]any{
					"index": i,
					"error": err.Error(),
				})
				errs = append(errs, fmt.Errorf("close session %d: %w", i, err))
			}
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

// Done is closed once teardown has started.
func (r *Registry) Done() <-chan struct{} { return r.done }
