// Package zlog is a minimal JSON-lines backend for logiface, in the manner
// of the zerolog-style event implementations distributed alongside it
// (buffer-append event, flushed to an io.Writer on Log).
package zlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

type (
	// Event implements logiface.Event, building a single JSON object per
	// call to Builder.Log, by appending directly to a byte buffer.
	Event struct {
		logiface.UnimplementedEvent

		lvl logiface.Level
		buf []byte
	}
)

func (x *Event) Level() logiface.Level { return x.lvl }

func (x *Event) AddField(key string, val any) {
	x.appendKey(key)
	x.appendInterface(val)
}

func (x *Event) AddMessage(msg string) bool {
	x.appendKey(`msg`)
	x.appendString(msg)
	return true
}

func (x *Event) AddError(err error) bool {
	if err == nil {
		return false
	}
	x.appendKey(`err`)
	x.appendString(err.Error())
	return true
}

func (x *Event) AddString(key string, val string) bool {
	x.appendKey(key)
	x.appendString(val)
	return true
}

func (x *Event) AddInt(key string, val int) bool {
	x.appendKey(key)
	x.buf = append(x.buf, []byte(fmt.Sprintf(`%d`, val))...)
	return true
}

func (x *Event) AddBool(key string, val bool) bool {
	x.appendKey(key)
	if val {
		x.buf = append(x.buf, "true"...)
	} else {
		x.buf = append(x.buf, "false"...)
	}
	return true
}

func (x *Event) AddTime(key string, val time.Time) bool {
	x.appendKey(key)
	x.appendString(val.UTC().Format(time.RFC3339Nano))
	return true
}

func (x *Event) AddDuration(key string, val time.Duration) bool {
	x.appendKey(key)
	x.appendString(val.String())
	return true
}

// appendKey writes the separator (if necessary) and the quoted key, leaving
// the buffer ready for a value to be appended.
func (x *Event) appendKey(key string) {
	if x.buf[len(x.buf)-1] != '{' {
		x.buf = append(x.buf, ',')
	}
	x.appendString(key)
	x.buf = append(x.buf, ':')
}

func (x *Event) appendString(val string) {
	b, err := json.Marshal(val)
	if err != nil {
		// a string always marshals cleanly; this path is unreachable in practice
		b = []byte(`""`)
	}
	x.buf = append(x.buf, b...)
}

func (x *Event) appendInterface(val any) {
	b, err := json.Marshal(val)
	if err != nil {
		x.appendString(fmt.Sprintf(`marshaling error: %v`, err))
		return
	}
	x.buf = append(x.buf, b...)
}

// bytes returns the completed JSON object, including the trailing newline.
func (x *Event) bytes() []byte {
	return append(append(x.buf, '}'), '\n')
}
