package log

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/migchan/internal/ports"
)

var _ ports.Logger = (*ZerologAdapter)(nil)

// ZerologAdapter implements ports.Logger using zerolog. The level can be
// changed while the adapter is in use.
type ZerologAdapter struct {
	logger zerolog.Logger
	level  atomic.Int32
}

// NewZerologAdapter creates a zerolog adapter with console output on stderr.
func NewZerologAdapter(level zerolog.Level) *ZerologAdapter {
	return NewZerologAdapterWithWriter(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}, level)
}

// NewZerologAdapterWithWriter creates an adapter writing to w.
func NewZerologAdapterWithWriter(w io.Writer, level zerolog.Level) *ZerologAdapter {
	return NewZerologAdapterWithLogger(zerolog.New(w).With().Timestamp().Logger(), level)
}

// NewZerologAdapterWithLogger creates an adapter wrapping an existing zerolog.Logger.
func NewZerologAdapterWithLogger(logger zerolog.Logger, level zerolog.Level) *ZerologAdapter {
	z := &ZerologAdapter{logger: logger}
	z.SetLevel(level)
	return z
}

// SetLevel changes the minimum level of emitted messages.
func (z *ZerologAdapter) SetLevel(level zerolog.Level) {
	z.level.Store(int32(level))
}

// Level returns the current minimum level.
func (z *ZerologAdapter) Level() zerolog.Level {
	return zerolog.Level(z.level.Load())
}

func (z *ZerologAdapter) current() *zerolog.Logger {
	l := z.logger.Level(z.Level())
	return &l
}

// Debug logs a debug-level message.
func (z *ZerologAdapter) Debug(msg string, fields ...ports.Field) {
	emit(z.current().Debug(), msg, fields)
}

// Info logs an info-level message.
func (z *ZerologAdapter) Info(msg string, fields ...ports.Field) {
	emit(z.current().Info(), msg, fields)
}

// Warn logs a warning-level message.
func (z *ZerologAdapter) Warn(msg string, fields ...ports.Field) {
	emit(z.current().Warn(), msg, fields)
}

// Error logs an error-level message.
func (z *ZerologAdapter) Error(msg string, fields ...ports.Field) {
	emit(z.current().Error(), msg, fields)
}

// Logger returns the underlying zerolog.Logger at the current level.
func (z *ZerologAdapter) Logger() zerolog.Logger {
	return *z.current()
}

func emit(event *zerolog.Event, msg string, fields []ports.Field) {
	// Disabled levels return a nil event.
	if event == nil {
		return
	}
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

// addField adds a Field to a zerolog.Event.
func addField(event *zerolog.Event, f ports.Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case string:
		return event.Str(f.Key, v)
	case int:
		return event.Int(f.Key, v)
	case int64:
		return event.Int64(f.Key, v)
	case uint32:
		return event.Uint32(f.Key, v)
	case uint64:
		return event.Uint64(f.Key, v)
	case bool:
		return event.Bool(f.Key, v)
	case time.Duration:
		return event.Dur(f.Key, v)
	case error:
		return event.Err(v)
	case interface{ String() string }:
		return event.Str(f.Key, v.String())
	default:
		return event.Interface(f.Key, v)
	}
}
