package bundle_test

import (
	"errors"
	"testing"

	"github.com/riverforge/flowpipe/bundle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type numMessage struct {
	Value int
}

func (numMessage) CanonicalName() string { return `test::num` }

type otherMessage struct{ Value int }

func (otherMessage) CanonicalName() string { return `test::num` } // same name, different type

func TestAccessor_AttachThenRead_roundTrips(t *testing.T) {
	b := bundle.New()
	a := bundle.NewAccessor[numMessage]()

	assert.False(t, a.Has(b))

	ok := a.Attach(b, numMessage{Value: 7})
	require.True(t, ok)
	assert.True(t, a.Has(b))

	got, ok := a.Read(b)
	require.True(t, ok)
	assert.Equal(t, numMessage{Value: 7}, got)

	// read is non-destructive
	got2, ok := a.Read(b)
	require.True(t, ok)
	assert.Equal(t, got, got2)
}

func TestAccessor_ReadWithoutAttach_returnsAbsent(t *testing.T) {
	b := bundle.New()
	a := bundle.NewAccessor[numMessage]()

	v, ok := a.Read(b)
	assert.False(t, ok)
	assert.Zero(t, v)
	assert.Zero(t, b.Len())
}

func TestAccessor_AttachTwice_secondFailsFirstIntact(t *testing.T) {
	b := bundle.New()
	a := bundle.NewAccessor[numMessage]()

	require.True(t, a.Attach(b, numMessage{Value: 1}))
	require.False(t, a.Attach(b, numMessage{Value: 2}))

	got, ok := a.Read(b)
	require.True(t, ok)
	assert.Equal(t, numMessage{Value: 1}, got)
}

func TestAccessor_TypeMismatch_panics(t *testing.T) {
	b := bundle.New()
	numAccessor := bundle.NewAccessor[numMessage]()
	otherAccessor := bundle.NewAccessor[otherMessage]()

	require.True(t, numAccessor.Attach(b, numMessage{Value: 3}))

	assert.PanicsWithError(t,
		`bundle: payload "test::num" has type bundle_test.numMessage, want bundle_test.otherMessage: bundle: type mismatch`,
		func() { otherAccessor.Read(b) },
	)
}

func TestAccessor_MustRead_panicsWhenAbsent(t *testing.T) {
	b := bundle.New()
	a := bundle.NewAccessor[numMessage]()

	assert.Panics(t, func() { a.MustRead(b) })

	require.True(t, a.Attach(b, numMessage{Value: 9}))
	assert.Equal(t, numMessage{Value: 9}, a.MustRead(b))
}

func TestNamedAccessor_roundTrips(t *testing.T) {
	b := bundle.New()
	a := bundle.NewNamedAccessor[int](`count`)

	require.True(t, a.Attach(b, 42))
	assert.False(t, a.Attach(b, 43))

	got, ok := a.Read(b)
	require.True(t, ok)
	assert.Equal(t, 42, got)
	assert.Equal(t, `count`, a.Name())
}

func TestNames_sortedAndStable(t *testing.T) {
	b := bundle.New()
	bundle.NewNamedAccessor[int](`zeta`).Attach(b, 1)
	bundle.NewNamedAccessor[int](`alpha`).Attach(b, 2)

	assert.Equal(t, []string{`alpha`, `zeta`}, b.Names())
}

func TestErrorsAreWrapped(t *testing.T) {
	b := bundle.New()
	a := bundle.NewAccessor[numMessage]()

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, bundle.ErrNoMessage))
	}()

	a.MustRead(b)
}
