package zlog

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

type (
	// Logger implements logiface.EventFactory and logiface.Writer for
	// *Event, writing one JSON object per line to an underlying io.Writer.
	// Events are released by the package function ReleaseEvent.
	Logger struct {
		writer     io.Writer
		timeField  string
		levelField string
	}

	// Option configures a Logger, for use with New.
	Option func(*Logger)

	// LoggerFactory aliases logiface.LoggerFactory[*Event], so callers need
	// not import logiface directly for the common case.
	LoggerFactory struct {
		//lint:ignore U1000 embedded for it's methods
		baseLoggerFactory
	}

	//lint:ignore U1000 used to embed without exporting
	baseLoggerFactory = logiface.LoggerFactory[*Event]
)

var (
	// L is a convenience instance of LoggerFactory.
	L = LoggerFactory{}

	eventPool = sync.Pool{New: func() any { return new(Event) }}

	timeNow = time.Now
)

// WithWriter sets the destination for log lines. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(l *Logger) { l.writer = w }
}

// WithTimeField sets the key of the timestamp field. Defaults to `time`; an
// empty key omits the field.
func WithTimeField(key string) Option {
	return func(l *Logger) { l.timeField = key }
}

// WithLevelField sets the key of the level field. Defaults to `level`; an
// empty key omits the field.
func WithLevelField(key string) Option {
	return func(l *Logger) { l.levelField = key }
}

// WithZlog configures a logiface.Logger to write newline-delimited JSON via
// this package's Logger implementation.
func WithZlog(options ...Option) logiface.Option[*Event] {
	l := Logger{writer: os.Stderr, timeField: `time`, levelField: `level`}
	for _, o := range options {
		o(&l)
	}
	return L.WithOptions(
		L.WithWriter(&l),
		L.WithEventFactory(L.NewEventFactoryFunc(l.NewEvent)),
		L.WithEventReleaser(L.NewEventReleaserFunc(ReleaseEvent)),
	)
}

// NewEvent implements the factory function used by WithZlog.
func (x *Logger) NewEvent(level logiface.Level) *Event {
	e := eventPool.Get().(*Event)
	e.lvl = level
	e.buf = append(e.buf[:0], '{')

	if x.timeField != `` {
		e.appendKey(x.timeField)
		e.appendString(timeNow().UTC().Format(time.RFC3339Nano))
	}
	if x.levelField != `` {
		e.appendKey(x.levelField)
		e.appendString(level.String())
	}

	return e
}

// Write implements logiface.Writer[*Event].
func (x *Logger) Write(event *Event) error {
	_, err := x.writer.Write(event.bytes())
	return err
}

// ReleaseEvent returns an *Event to the pool for reuse.
func ReleaseEvent(e *Event) {
	if cap(e.buf) <= 1<<16 {
		eventPool.Put(e)
	}
}
