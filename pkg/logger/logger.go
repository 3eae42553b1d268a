package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging interface used by the library.
type Logger interface {
	Info(msg string, obj any)
	Warn(msg string, obj any)
	Debug(msg string, obj any)
	Error(msg string, obj any)
}

// NopLogger discards all log messages.
type NopLogger struct{}

func (NopLogger) Info(string, any)  {}
func (NopLogger) Warn(string, any)  {}
func (NopLogger) Debug(string, any) {}
func (NopLogger) Error(string, any) {}

type writerLogger struct {
	z zerolog.Logger
}

// NewWriterLogger builds a console logger that writes to an io.Writer.
func NewWriterLogger(w io.Writer) Logger {
	if w == nil {
		w = io.Discard
	}
	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: time.RFC3339,
	}
	return writerLogger{z: zerolog.New(out).With().Timestamp().Logger()}
}

func (l writerLogger) write(ev *zerolog.Event, msg string, obj any) {
	if obj != nil {
		ev = ev.Interface("obj", obj)
	}
	ev.Msg(msg)
}

func (l writerLogger) Info(msg string, obj any)  { l.write(l.z.Info(), msg, obj) }
func (l writerLogger) Warn(msg string, obj any)  { l.write(l.z.Warn(), msg, obj) }
func (l writerLogger) Debug(msg string, obj any) { l.write(l.z.Debug(), msg, obj) }
func (l writerLogger) Error(msg string, obj any) { l.write(l.z.Error(), msg, obj) }

// Debug writes a debug log when enabled and logger is non-nil.
func Debug(enabled bool, logger Logger, msg string, obj any) {
	if !enabled || logger == nil {
		return
	}
	logger.Debug(msg, obj)
}

// Debugf is a compatibility helper for format-style debug logging.
func Debugf(enabled bool, logger Logger, format string, args ...any) {
	Debug(enabled, logger, fmt.Sprintf(format, args...), nil)
}

// Warn writes a warning log when logger is non-nil.
func Warn(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, obj)
}

// Error writes an error log when logger is non-nil.
func Error(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Error(msg, obj)
}
