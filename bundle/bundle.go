// Package bundle implements the heterogeneous, name-keyed message container
// that travels along a flowpipe pipeline, plus the typed-accessor
// discipline that is the only way to read or write it.
//
// A Bundle never needs its own locking: ownership moves with the handoff
// (see package stage), so at any instant exactly one goroutine ever touches
// a given Bundle.
package bundle

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

var (
	// ErrTypeMismatch is wrapped by the error a typed read panics with when
	// the payload stored under a name is not of the expected type. This
	// indicates the bundle was mutated outside of the accessor discipline
	// (a programmer error), not a recoverable runtime condition.
	ErrTypeMismatch = errors.New(`bundle: type mismatch`)

	// ErrNoMessage is wrapped by the error MustRead panics with when a
	// required payload is absent.
	ErrNoMessage = errors.New(`bundle: no message present`)
)

// Keyed is satisfied by a payload type that publishes a stable canonical
// name, for use with Accessor. Two distinct Keyed messages sharing a
// canonical name cannot coexist in one Bundle.
type Keyed interface {
	CanonicalName() string
}

type entry struct {
	typ reflect.Type
	val any
}

// Bundle is a mapping from string name to at most one opaque payload.
// The zero value is not usable; construct with New.
type Bundle struct {
	values map[string]entry
}

// New returns an empty Bundle, ready for use.
func New() *Bundle {
	return &Bundle{values: make(map[string]entry)}
}

// Names reports the names currently attached, sorted for deterministic
// iteration (used by diagnostic and test code; the bundle itself attaches
// no significance to insertion order).
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.values))
	for name := range b.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of payloads currently attached.
func (b *Bundle) Len() int { return len(b.values) }

// HasName reports whether any payload is attached under name, without
// regard to its type. Unlike Accessor.Has / NamedAccessor.Has, this does
// not require the caller to know T; it exists for diagnostics (see
// stage.NewPrintStage) that enumerate names without reading values.
func (b *Bundle) HasName(name string) bool {
	return b.has(name)
}

func (b *Bundle) has(name string) bool {
	_, ok := b.values[name]
	return ok
}

// read returns the payload stored under name, panicking with a wrapped
// ErrTypeMismatch if present under a different type than want.
func (b *Bundle) read(name string, want reflect.Type) (any, bool) {
	e, ok := b.values[name]
	if !ok {
		return nil, false
	}
	if e.typ != want {
		panic(fmt.Errorf(`bundle: payload %q has type %s, want %s: %w`, name, e.typ, want, ErrTypeMismatch))
	}
	return e.val, true
}

// attach inserts val under name iff absent, returning false (bundle
// unchanged) if a payload is already present under that name, regardless of
// its type.
func (b *Bundle) attach(name string, typ reflect.Type, val any) bool {
	if _, ok := b.values[name]; ok {
		return false
	}
	b.values[name] = entry{typ: typ, val: val}
	return true
}

func readTyped[T any](b *Bundle, name string) (T, bool) {
	v, ok := b.read(name, reflect.TypeFor[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

func attachTyped[T any](b *Bundle, name string, val T) bool {
	return b.attach(name, reflect.TypeFor[T](), val)
}
