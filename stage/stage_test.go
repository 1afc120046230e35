package stage_test

import (
	"context"
	"testing"
	"time"

	"github.com/riverforge/flowpipe/bundle"
	"github.com/riverforge/flowpipe/message"
	"github.com/riverforge/flowpipe/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var controlAccessor = bundle.NewAccessor[message.ControlMessage]()

func TestHandle_PushWaitForData_roundTrips(t *testing.T) {
	ctx := context.Background()
	h := stage.New(stage.Stage{Name: `noop`}, nil)

	b := bundle.New()
	go func() {
		dropped := h.Push(ctx, b)
		assert.False(t, dropped)
	}()

	got, ok := h.WaitForData(ctx)
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestHandle_Push_dropsAfterShutdown(t *testing.T) {
	ctx := context.Background()
	h := stage.New(stage.Stage{Name: `dead`}, nil)

	// simulate having observed SHUTDOWN
	b := bundle.New()
	require.True(t, controlAccessor.Attach(b, message.ControlMessage{Type: message.ControlShutdown}))
	h.ProcessControlMessage(ctx, b)
	require.False(t, h.Alive())

	dropped := h.Push(ctx, bundle.New())
	assert.True(t, dropped)
}

func TestHandle_Run_processesOneCycleWhenNotPersistent(t *testing.T) {
	ctx := context.Background()

	var processed int
	h := stage.New(stage.Stage{
		Name: `counter`,
		ProcessData: func(ctx context.Context, b *bundle.Bundle) error {
			processed++
			return nil
		},
	}, nil)

	done := make(chan struct{})
	go func() {
		h.Run(ctx, false)
		close(done)
	}()

	b := bundle.New()
	dropped := h.Push(ctx, b)
	require.False(t, dropped)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal(`stage did not exit after one cycle`)
	}

	assert.Equal(t, 1, processed)
}

func TestHandle_Run_shutdownStopsLoopAndPropagatesDownstream(t *testing.T) {
	ctx := context.Background()

	h := stage.New(stage.Stage{Name: `a`}, nil)
	down := stage.New(stage.Stage{Name: `b`}, nil)
	h.Connect(down)

	done := make(chan struct{})
	go func() {
		h.Run(ctx, true)
		close(done)
	}()

	b := bundle.New()
	require.True(t, controlAccessor.Attach(b, message.ControlMessage{Type: message.ControlShutdown}))
	require.False(t, h.Push(ctx, b))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal(`stage did not shut down`)
	}

	// downstream must have received the same bundle carrying SHUTDOWN
	got, ok := down.WaitForData(ctx)
	require.True(t, ok)
	ctrl, ok := controlAccessor.Read(got)
	require.True(t, ok)
	assert.Equal(t, message.ControlShutdown, ctrl.Type)
}

func TestHandle_Run_softResetInvokesResetHook(t *testing.T) {
	ctx := context.Background()

	var resets int
	h := stage.New(stage.Stage{
		Name: `resetter`,
		Reset: func(ctx context.Context) error {
			resets++
			return nil
		},
	}, nil)

	done := make(chan struct{})
	go func() {
		h.Run(ctx, false)
		close(done)
	}()

	b := bundle.New()
	require.True(t, controlAccessor.Attach(b, message.ControlMessage{Type: message.ControlSoftReset}))
	require.False(t, h.Push(ctx, b))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal(`stage did not exit`)
	}

	assert.Equal(t, 1, resets)
}

func TestHandle_Run_initializeAndCleanUpHooksFire(t *testing.T) {
	ctx := context.Background()

	var init, cleanup int
	h := stage.New(stage.Stage{
		Name:       `lifecycle`,
		Initialize: func(ctx context.Context) error { init++; return nil },
		CleanUp:    func(ctx context.Context) error { cleanup++; return nil },
	}, nil)

	done := make(chan struct{})
	go func() {
		h.Run(ctx, false)
		close(done)
	}()

	require.False(t, h.Push(ctx, bundle.New()))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal(`stage did not exit`)
	}

	assert.Equal(t, 1, init)
	assert.Equal(t, 1, cleanup)
}

func TestFunc_adaptsPlainFunction(t *testing.T) {
	var called bool
	s := stage.Func(`adapter`, func(ctx context.Context, b *bundle.Bundle) error {
		called = true
		return nil
	})
	assert.Equal(t, `adapter`, s.Name)

	h := stage.New(s, nil)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		h.Run(ctx, false)
		close(done)
	}()

	require.False(t, h.Push(ctx, bundle.New()))
	<-done
	assert.True(t, called)
}
