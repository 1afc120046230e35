// Package stage implements the per-stage handoff protocol: the concurrency
// contract that lets an upstream node pass a bundle to a downstream node
// with one-bundle-at-a-time exclusive ownership, bounded memory, and no
// dropped items.
//
// The original source's pair-of-mutexes-plus-condition dance is
// reformulated here as a bounded, single-slot channel: capacity one,
// blocking send, blocking receive, closed on shutdown. That gives the same
// FIFO-per-edge and at-most-one-in-flight guarantees with far less code.
package stage

import (
	"context"
	"sync/atomic"

	"github.com/joeycumines/logiface"

	"github.com/riverforge/flowpipe/bundle"
	"github.com/riverforge/flowpipe/message"
	"github.com/riverforge/flowpipe/zlog"
)

var (
	controlAccessor   = bundle.NewAccessor[message.ControlMessage]()
	interruptAccessor = bundle.NewAccessor[message.Interrupt]()
)

type (
	// ProcessFunc is a stage's mandatory per-cycle body: it reads from and
	// may attach to the bundle it's given.
	ProcessFunc func(ctx context.Context, b *bundle.Bundle) error

	// HookFunc is an optional lifecycle hook: initialize, reset, shut down
	// or clean up. A nil HookFunc is a no-op.
	HookFunc func(ctx context.Context) error

	// Stage is the set of behaviors a user supplies for one pipeline node.
	// ProcessData is the only mandatory field; the rest default to no-ops.
	Stage struct {
		// Name identifies the stage in logs and diagnostics.
		Name string

		// ProcessData is called once per cycle with the bundle currently
		// owned by this stage. Required.
		ProcessData ProcessFunc

		// Initialize runs once, before the first cycle.
		Initialize HookFunc

		// Reset runs whenever the stage observes a SOFT_RESET control
		// message, before the cycle's ProcessData call.
		Reset HookFunc

		// ShutDown runs whenever the stage observes a SHUTDOWN control
		// message. The stage is marked Not-Alive regardless of whether
		// this hook is set or what it does.
		ShutDown HookFunc

		// CleanUp runs once, after the last cycle, before the stage's
		// goroutine exits.
		CleanUp HookFunc
	}
)

// Handle is the runtime engine for one Stage: it owns the inbound slot and
// the alive flag, and runs the operational cycle described in spec.md §4.2.
// A Handle is created once per stage per pipeline run; it is not reusable
// across runs.
type Handle struct {
	stage Stage
	log   *logiface.Logger[*zlog.Event]

	in   chan *bundle.Bundle
	done chan struct{}

	alive atomic.Bool
	out   *Handle
}

// New constructs a Handle around s. logger may be nil, disabling logging
// for this stage.
func New(s Stage, logger *logiface.Logger[*zlog.Event]) *Handle {
	h := &Handle{
		stage: s,
		log:   logger,
		in:    make(chan *bundle.Bundle, 1),
		done:  make(chan struct{}),
	}
	h.alive.Store(true)
	return h
}

// Connect wires h's downstream neighbor to next. It must be called before
// Run.
func (h *Handle) Connect(next *Handle) { h.out = next }

// Name returns the stage's diagnostic name.
func (h *Handle) Name() string { return h.stage.Name }

// Alive reports whether the stage has not yet observed SHUTDOWN.
func (h *Handle) Alive() bool { return h.alive.Load() }

func (h *Handle) logf(b *logiface.Builder[*zlog.Event]) *logiface.Builder[*zlog.Event] {
	if h.stage.Name != `` {
		return b.Str(`stage`, h.stage.Name)
	}
	return b
}

// Push hands b to this stage's slot, blocking until room is available
// (spec's slotLock) or the stage has shut down (spec's Not-Alive early
// return). dropped reports whether b was discarded because the stage was,
// or became, Not-Alive.
func (h *Handle) Push(ctx context.Context, b *bundle.Bundle) (dropped bool) {
	if !h.Alive() {
		return true
	}
	select {
	case h.in <- b:
		return false
	case <-h.done:
		return true
	case <-ctx.Done():
		return true
	}
}

// WaitForData blocks until a bundle is available, or ctx is done.
func (h *Handle) WaitForData(ctx context.Context) (*bundle.Bundle, bool) {
	select {
	case b := <-h.in:
		return b, true
	case <-ctx.Done():
		return nil, false
	}
}

// ProcessControlMessage inspects b for a ControlMessage and dispatches:
// SOFT_RESET invokes the Reset hook; SHUTDOWN invokes the ShutDown hook and
// marks the stage Not-Alive.
func (h *Handle) ProcessControlMessage(ctx context.Context, b *bundle.Bundle) {
	ctrl, ok := controlAccessor.Read(b)
	if !ok {
		return
	}
	switch ctrl.Type {
	case message.ControlSoftReset:
		if h.log != nil {
			h.logf(h.log.Info()).Log(`stage observed SOFT_RESET`)
		}
		h.callHook(ctx, h.stage.Reset, `reset`)
	case message.ControlShutdown:
		if h.log != nil {
			h.logf(h.log.Info()).Log(`stage observed SHUTDOWN`)
		}
		h.callHook(ctx, h.stage.ShutDown, `shutDown`)
		h.alive.Store(false)
	}
}

// CallProcessData runs the stage's mandatory body.
func (h *Handle) CallProcessData(ctx context.Context, b *bundle.Bundle) error {
	if h.stage.ProcessData == nil {
		return nil
	}
	return h.stage.ProcessData(ctx, b)
}

// CallInitialize runs the initialize hook, once, before the first cycle.
func (h *Handle) CallInitialize(ctx context.Context) error {
	return h.callHook(ctx, h.stage.Initialize, `initialize`)
}

// CallCleanUp runs the cleanup hook, once, after the last cycle, then
// releases any goroutine still blocked in Push.
func (h *Handle) CallCleanUp(ctx context.Context) error {
	err := h.callHook(ctx, h.stage.CleanUp, `cleanUp`)
	close(h.done)
	return err
}

func (h *Handle) callHook(ctx context.Context, fn HookFunc, name string) error {
	if fn == nil {
		return nil
	}
	if err := fn(ctx); err != nil {
		if h.log != nil {
			h.logf(h.log.Warning()).Str(`hook`, name).Err(err).Log(`stage hook returned an error`)
		}
		return err
	}
	return nil
}

// Run executes the stage's full operational cycle — waitForData,
// processControlMessage, processData, pushData — repeating while persist
// is true and the stage remains alive, then cleans up. It is the loop body
// for every non-head stage; the pipeline head implements a specialized
// variant of the same steps (see package pipeline).
func (h *Handle) Run(ctx context.Context, persist bool) {
	if err := h.CallInitialize(ctx); err != nil {
		_ = h.CallCleanUp(ctx)
		return
	}

	for {
		b, ok := h.WaitForData(ctx)
		if !ok {
			break
		}

		h.ProcessControlMessage(ctx, b)

		if err := h.CallProcessData(ctx, b); err != nil && h.log != nil {
			h.logf(h.log.Warning()).Err(err).Log(`processData returned an error`)
		}

		if h.out != nil {
			h.out.Push(ctx, b)
		}

		if !h.Alive() || !persist {
			break
		}
	}

	_ = h.CallCleanUp(ctx)
}
