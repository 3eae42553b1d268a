// Package repl drives the interactive loop: it merges stdin lines and session
// events into one goroutine that owns all REPL state.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/minhyannv/discord-cli-go/pkg/commands"
	loggerpkg "github.com/minhyannv/discord-cli-go/pkg/logger"
	"github.com/minhyannv/discord-cli-go/pkg/platform"
	"github.com/minhyannv/discord-cli-go/pkg/session"
)

// Prompt is printed whenever the loop is ready for the next line.
const Prompt = "# "

// maxLineLength bounds one input line. Longer lines are discarded with an error.
const maxLineLength = 64 * 1024

var errLineTooLong = errors.New("line too long")

// State is the loop's lifecycle phase.
type State int

const (
	AwaitingReady State = iota
	Running
	Exiting
)

func (s State) String() string {
	switch s {
	case AwaitingReady:
		return "awaiting-ready"
	case Running:
		return "running"
	case Exiting:
		return "exiting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var errColor = color.New(color.FgRed)

// Loop is the REPL state machine.
type Loop struct {
	sc         *commands.Context
	dispatcher *commands.Dispatcher
	in         io.Reader
	state      State

	reader *lineReader
}

// New builds a loop reading lines from in. Output goes to sc.Out.
func New(sc *commands.Context, d *commands.Dispatcher, in io.Reader) *Loop {
	if sc.Out == nil {
		sc.Out = io.Discard
	}
	if sc.Logger == nil {
		sc.Logger = loggerpkg.NopLogger{}
	}
	return &Loop{sc: sc, dispatcher: d, in: in, state: AwaitingReady}
}

// State reports the current phase.
func (l *Loop) State() State { return l.state }

// Run waits for the primary session to become ready, then serves lines and
// events until /exit, end of input, or ctx cancellation. Every session is
// disconnected before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	l.sc.Ctx = ctx
	stop := make(chan struct{})
	defer close(stop)

	events := l.sc.Sessions.Events()
	var lines <-chan inputLine

	for l.state != Exiting {
		select {
		case <-ctx.Done():
			loggerpkg.Debug(l.sc.Verbose, l.sc.Logger, "interrupted", map[string]any{"state": l.state.String()})
			l.state = Exiting
		case <-l.sc.Sessions.Done():
			l.state = Exiting
		case ev := <-events:
			if l.handleEvent(ev) {
				l.reader = newLineReader(l.in, stop)
				lines = l.reader.lines
				l.printPrompt()
			}
		case line, ok := <-lines:
			if !ok {
				if err := l.reader.err; err != nil {
					loggerpkg.Warn(l.sc.Logger, "read input failed", map[string]any{"error": err.Error()})
				}
				l.state = Exiting
				continue
			}
			if line.err != nil {
				l.printError(line.err)
				l.printPrompt()
				continue
			}
			l.handleLine(line.text)
		}
	}

	err := l.sc.Sessions.DisconnectAll()
	l.printf("Goodbye!\n")
	return err
}

// handleEvent reports whether the event moved the loop into Running.
func (l *Loop) handleEvent(ev session.Event) bool {
	switch ev.Kind {
	case platform.EventReady:
		if l.state != AwaitingReady || ev.Source != l.sc.Sessions.Primary() {
			return false
		}
		l.initCursor(ev.Source)
		l.printf("Ready for commands\n")
		l.state = Running
		return true
	case platform.EventMessage:
		active := l.sc.Sessions.Active()
		if ev.Source != active || ev.Message.Author.ID == active.Me().ID {
			return false
		}
		commands.PrintMessage(l.sc.Out, ev.Message)
	}
	return false
}

// initCursor points the cursor at the first guild and its first text channel.
func (l *Loop) initCursor(s platform.Session) {
	guilds := s.Guilds()
	if len(guilds) == 0 {
		return
	}
	g := guilds[0]
	l.sc.Cursor.Guild = &g

	channels, err := s.GuildChannels(l.sc.Ctx, g.ID)
	if err != nil {
		loggerpkg.Warn(l.sc.Logger, "list channels of first guild failed", map[string]any{
			"guild": g.ID,
			"error": err.Error(),
		})
		return
	}
	for _, c := range channels {
		if c.Text {
			c := c
			l.sc.Cursor.Channel = &c
			return
		}
	}
}

func (l *Loop) handleLine(line string) {
	line = strings.TrimRight(line, " \t\r\n")

	var err error
	switch {
	case line == "":
	case strings.HasPrefix(line, "/exit"):
		l.state = Exiting
		return
	case strings.HasPrefix(line, "/"):
		err = l.safely(func() error { return l.dispatcher.Dispatch(l.sc, line[1:]) })
	default:
		err = l.safely(func() error { return commands.SendToCursor(l.sc, l.sc.Sessions.Active(), line) })
	}
	if err != nil {
		l.printError(err)
	}
	l.printPrompt()
}

func (l *Loop) printError(err error) {
	l.printf("%s\n", errColor.Sprintf("Error: %v", err))
}

// safely converts a handler panic into an error so one bad line cannot end the session.
func (l *Loop) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			loggerpkg.Error(l.sc.Logger, "command panicked", map[string]any{"panic": fmt.Sprint(r)})
			err = fmt.Errorf("command failed: %v", r)
		}
	}()
	return fn()
}

func (l *Loop) printPrompt() { l.printf(Prompt) }

func (l *Loop) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(l.sc.Out, format, args...)
}

// inputLine is one line of input, or the error that replaced it.
type inputLine struct {
	text string
	err  error
}

// lineReader reads lines on its own goroutine. err is valid once lines is
// closed and is nil at end of input.
type lineReader struct {
	lines chan inputLine
	err   error
}

func newLineReader(in io.Reader, stop <-chan struct{}) *lineReader {
	r := &lineReader{lines: make(chan inputLine)}
	go func() {
		defer close(r.lines)
		br := bufio.NewReaderSize(in, maxLineLength)
		for {
			text, err := readLine(br)
			if err != nil && !errors.Is(err, errLineTooLong) {
				if !errors.Is(err, io.EOF) {
					r.err = err
				}
				return
			}
			select {
			case r.lines <- inputLine{text: text, err: err}:
			case <-stop:
				return
			}
		}
	}()
	return r
}

// readLine returns the next line without its terminator. A line that does not
// fit the buffer is consumed up to its newline and reported as errLineTooLong.
func readLine(br *bufio.Reader) (string, error) {
	line, isPrefix, err := br.ReadLine()
	if err != nil {
		return "", err
	}
	if !isPrefix {
		return string(line), nil
	}
	for isPrefix {
		_, isPrefix, err = br.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return "", errLineTooLong
}
