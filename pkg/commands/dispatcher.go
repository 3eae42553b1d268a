// Package commands holds the REPL command table and the context handlers run in.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minhyannv/discord-cli-go/pkg/alias"
	loggerpkg "github.com/minhyannv/discord-cli-go/pkg/logger"
	"github.com/minhyannv/discord-cli-go/pkg/platform"
	"github.com/minhyannv/discord-cli-go/pkg/session"
)

var (
	// ErrUnknownCommand is returned by Dispatch for a name with no handler.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command gets the wrong number of arguments.
	ErrUsage = errors.New("usage")

	ErrNoGuild         = errors.New("no guild selected")
	ErrNoChannel       = errors.New("no channel selected")
	ErrNoActiveSession = errors.New("no active session")
)

// Variadic as MaxArgs accepts any number of trailing arguments.
const Variadic = -1

// Handler runs one command against the active session.
type Handler func(sc *Context, s platform.Session, args []string) error

// Command is one entry in the command table.
type Command struct {
	Name    string
	Usage   string
	Summary string
	MinArgs int
	MaxArgs int
	Run     Handler
}

func (c Command) checkArity(n int) error {
	if n < c.MinArgs || (c.MaxArgs != Variadic && n > c.MaxArgs) {
		return fmt.Errorf("%w: /%s", ErrUsage, c.Usage)
	}
	return nil
}

// Cursor is the guild and channel bare messages and argument-less commands target.
type Cursor struct {
	Guild   *platform.Guild
	Channel *platform.Channel
}

// Summarizer condenses channel history. *summary.Summarizer implements it.
type Summarizer interface {
	Summarize(ctx context.Context, channelName string, messages []platform.Message) (string, error)
}

// Context is the state every handler receives. The REPL goroutine owns it.
type Context struct {
	Ctx          context.Context
	Sessions     *session.Registry
	Aliases      *alias.Store
	LastReadPath string
	HistoryLimit int
	Cursor       Cursor
	Out          io.Writer
	Summarizer   Summarizer
	Logger       loggerpkg.Logger
	Verbose      bool
	Now          func() time.Time
}

func (sc *Context) ctx() context.Context {
	if sc.Ctx == nil {
		return context.Background()
	}
	return sc.Ctx
}

func (sc *Context) now() time.Time {
	if sc.Now == nil {
		return time.Now()
	}
	return sc.Now()
}

func (sc *Context) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(sc.Out, format, args...)
}

func (sc *Context) println(args ...any) {
	_, _ = fmt.Fprintln(sc.Out, args...)
}

// Dispatcher maps command names to table entries.
type Dispatcher struct {
	commands map[string]Command
	order    []string
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{commands: make(map[string]Command)}
}

// Register adds cmd, replacing any earlier command of the same name.
func (d *Dispatcher) Register(cmd Command) {
	if _, exists := d.commands[cmd.Name]; !exists {
		d.order = append(d.order, cmd.Name)
	}
	d.commands[cmd.Name] = cmd
}

// Lookup returns the command registered under name.
func (d *Dispatcher) Lookup(name string) (Command, bool) {
	cmd, ok := d.commands[name]
	return cmd, ok
}

// Commands returns the table in registration order.
func (d *Dispatcher) Commands() []Command {
	out := make([]Command, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.commands[name])
	}
	return out
}

// Dispatch splits line on whitespace and runs the named command with the
// remaining tokens. Tokens are passed verbatim; there is no quoting.
func (d *Dispatcher) Dispatch(sc *Context, line string) error {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}
	name, args := tokens[0], tokens[1:]

	cmd, ok := d.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if err := cmd.checkArity(len(args)); err != nil {
		return err
	}

	s := sc.Sessions.Active()
	if s == nil {
		return ErrNoActiveSession
	}
	loggerpkg.Debug(sc.Verbose, sc.Logger, "dispatch", map[string]any{
		"command": name,
		"args":    args,
		"session": sc.Sessions.ActiveIndex(),
	})
	return cmd.Run(sc, s, args)
}
