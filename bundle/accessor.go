package bundle

import "fmt"

// Accessor is a type-keyed capability over payload type T, using T's
// canonical name (T.CanonicalName()) as the bundle key. It never escapes
// outside of the Bundle it's called on; it carries no state of its own
// beyond the zero value needed to ask T for its name.
type Accessor[T Keyed] struct{}

// NewAccessor constructs a type-keyed Accessor for T.
func NewAccessor[T Keyed]() Accessor[T] {
	return Accessor[T]{}
}

func (a Accessor[T]) name() string {
	var zero T
	return zero.CanonicalName()
}

// Has reports whether any payload is currently attached under T's canonical
// name; the payload's type is not checked.
func (a Accessor[T]) Has(b *Bundle) bool {
	return b.has(a.name())
}

// Read copies out the attached T, leaving the bundle unchanged. ok is false
// if no payload is attached under T's canonical name.
func (a Accessor[T]) Read(b *Bundle) (val T, ok bool) {
	return readTyped[T](b, a.name())
}

// MustRead is like Read, but panics (wrapping ErrNoMessage) if the payload
// is absent. Use only where absence indicates a programmer error, not a
// data-dependent condition.
func (a Accessor[T]) MustRead(b *Bundle) T {
	v, ok := a.Read(b)
	if !ok {
		panic(fmt.Errorf(`bundle: required payload %q absent: %w`, a.name(), ErrNoMessage))
	}
	return v
}

// Attach inserts val under T's canonical name iff absent. It returns false,
// leaving the bundle unchanged, if a payload is already present under that
// name — this is the designed outcome for a canonical-keyed collision, not
// an error; the caller decides what to do with it.
func (a Accessor[T]) Attach(b *Bundle, val T) bool {
	return attachTyped[T](b, a.name(), val)
}

// NamedAccessor is the name-keyed counterpart of Accessor: the same
// operations, parameterized by an explicit name instead of T's canonical
// name. T need not implement Keyed.
type NamedAccessor[T any] struct {
	name string
}

// NewNamedAccessor constructs a NamedAccessor for T, keyed by name.
func NewNamedAccessor[T any](name string) NamedAccessor[T] {
	return NamedAccessor[T]{name: name}
}

// Name returns the bundle key this accessor reads and writes.
func (a NamedAccessor[T]) Name() string { return a.name }

func (a NamedAccessor[T]) Has(b *Bundle) bool {
	return b.has(a.name)
}

func (a NamedAccessor[T]) Read(b *Bundle) (val T, ok bool) {
	return readTyped[T](b, a.name)
}

func (a NamedAccessor[T]) MustRead(b *Bundle) T {
	v, ok := a.Read(b)
	if !ok {
		panic(fmt.Errorf(`bundle: required payload %q absent: %w`, a.name, ErrNoMessage))
	}
	return v
}

func (a NamedAccessor[T]) Attach(b *Bundle, val T) bool {
	return attachTyped[T](b, a.name, val)
}
