// Package pipeline implements the ring coordinator described in spec.md
// §4.3: the pipeline head. It assembles the chain of stages, spawns one
// goroutine per stage, produces fresh bundles, closes the ring so stage-
// emitted interrupts flow back as control messages, and drives orderly
// shutdown and reset end-to-end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"

	"github.com/riverforge/flowpipe/bundle"
	"github.com/riverforge/flowpipe/message"
	"github.com/riverforge/flowpipe/stage"
	"github.com/riverforge/flowpipe/zlog"
)

var (
	// ErrNoStages is returned by Run when no stage has been attached via
	// Connect/ConnectOwned. Per spec.md §7, this is the designed outcome
	// for an empty pipeline, not a failure: Run returns immediately,
	// spawning no goroutines.
	ErrNoStages = errors.New(`pipeline: no stages attached`)

	// ErrInjectionCollision is wrapped by the error reported on the
	// Pipeline's error channel when the head's own control-message attach
	// collides with an existing payload under message.ControlMessageName
	// on a freshly produced bundle (spec.md §9, open question 2). The
	// pipeline does not abort; the originally-attached message wins.
	ErrInjectionCollision = errors.New(`pipeline: control message injection collision`)
)

var (
	controlAccessor   = bundle.NewAccessor[message.ControlMessage]()
	interruptAccessor = bundle.NewAccessor[message.Interrupt]()
)

// ProduceFunc lets a host extend every bundle the head produces, before the
// head's own control-message attach. It is the hook spec.md §8's scenario
// S1 refers to as "the head's processData extended for the test": a stage
// reads back what ProduceFunc attaches via the normal accessor discipline.
type ProduceFunc func(ctx context.Context, out *bundle.Bundle)

// EndOfLineFunc is invoked, once per cycle, with the end-of-line bundle the
// head receives back from the tail, before the head inspects it for
// interrupts. It lets a host observe every bundle that completed a full
// trip around the ring.
type EndOfLineFunc func(ctx context.Context, in *bundle.Bundle)

// Option configures a Pipeline constructed with New.
type Option func(*Pipeline)

// WithLogger sets the logiface logger the pipeline and every stage it owns
// (via ConnectOwned) log through. nil disables logging.
func WithLogger(log *logiface.Logger[*zlog.Event]) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithProduce installs a ProduceFunc, run against every bundle the head
// produces, before the head attaches its own control message.
func WithProduce(fn ProduceFunc) Option {
	return func(p *Pipeline) { p.produce = fn }
}

// WithEndOfLine installs an EndOfLineFunc, run against every bundle that
// completes a trip around the ring.
func WithEndOfLine(fn EndOfLineFunc) Option {
	return func(p *Pipeline) { p.endOfLine = fn }
}

// Pipeline is the ring coordinator: a stage (see package stage) plus the
// ordered chain of participating stages, the reclaim pool for stages whose
// lifetime it owns, and the one cross-thread word — the termination flag —
// described in spec.md §3 and §5.
type Pipeline struct {
	log *logiface.Logger[*zlog.Event]

	produce   ProduceFunc
	endOfLine EndOfLineFunc

	// self is the head's own inbound slot: it receives the end-of-line
	// bundle pushed by the last attached stage, closing the ring.
	self *stage.Handle

	stages []*stage.Handle // ordered stage1..stageN, in attach order
	owned  []*stage.Handle // the subset ConnectOwned constructed and thus owns

	terminate atomic.Bool
	errCh     chan error
}

// New constructs an empty Pipeline, ready to have stages attached via
// Connect / ConnectOwned and then started with Run.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{errCh: make(chan error, 1)}
	for _, opt := range opts {
		opt(p)
	}
	p.self = stage.New(stage.Stage{Name: `head`}, p.log)
	return p
}

// Connect appends a borrowed stage handle: the caller already constructed
// it (via stage.New) and retains responsibility for anything beyond what
// Run itself drives. The first Connect wires the previous tail (or, for
// the very first call, is simply recorded — the head-to-stage1 edge is
// exercised directly by Run's produce/push, not via Handle.Connect);
// subsequent calls wire stageᵢ → stageᵢ₊₁. Returns the Pipeline itself, so
// calls chain: p.Connect(a).Connect(b).
func (p *Pipeline) Connect(h *stage.Handle) *Pipeline {
	p.attach(h)
	return p
}

// ConnectOwned constructs a Handle around s, appends it exactly as Connect
// would, and additionally records it in the pipeline's reclaim pool — the
// Go analogue of the original's unique_ptr-taking overload (spec.md §9,
// open question 1). Per that decision, this also returns the Pipeline
// itself rather than attempting the original's ambiguous chaining
// semantics.
func (p *Pipeline) ConnectOwned(s stage.Stage) *Pipeline {
	h := stage.New(s, p.log)
	p.owned = append(p.owned, h)
	p.attach(h)
	return p
}

func (p *Pipeline) attach(h *stage.Handle) {
	if n := len(p.stages); n > 0 {
		p.stages[n-1].Connect(h)
	}
	p.stages = append(p.stages, h)
}

// Terminate requests orderly shutdown: thread-safe, idempotent. The next
// head cycle observes it and emits a SHUTDOWN control message instead of
// translating any interrupt found in the end-of-line bundle.
func (p *Pipeline) Terminate() {
	p.terminate.Store(true)
}

// Errors returns the channel injection collisions (spec.md §9, open
// question 2) are reported on. It is buffered by one; a collision that
// arrives while a previous one is unread is logged but not resent.
func (p *Pipeline) Errors() <-chan error {
	return p.errCh
}

// Run assembles the ring, spawns one goroutine per attached stage, and
// drives the head's own cycle until shutdown propagates back around the
// ring, then joins every stage goroutine before returning.
//
// If no stage has been attached, Run returns ErrNoStages immediately,
// spawning nothing (spec.md §7, §8 scenario S6).
func (p *Pipeline) Run(ctx context.Context, persist bool) error {
	if len(p.stages) == 0 {
		return ErrNoStages
	}

	// Close the ring: the last attached stage's push target is the head's
	// own inbound slot.
	p.stages[len(p.stages)-1].Connect(p.self)

	if p.log != nil {
		p.log.Info().Int(`stages`, len(p.stages)).Bool(`persist`, persist).Log(`pipeline starting`)
	}

	var wg sync.WaitGroup
	wg.Add(len(p.stages))
	for _, h := range p.stages {
		h := h
		go func() {
			defer wg.Done()
			h.Run(ctx, persist)
		}()
	}

	p.runHead(ctx, persist)

	wg.Wait()
	if p.log != nil {
		p.log.Info().Log(`pipeline stopped`)
	}
	return nil
}

// runHead implements spec.md §4.3's specialized cycle: the first
// processData/pushData pair runs without a preceding waitForData or
// processControlMessage (the head produces bundle #0 itself, and no
// control message can exist yet); every subsequent cycle is the generic
// waitForData → processControlMessage → processData → pushData, repeating
// while persist && alive.
//
// Per spec.md §9, open question 3: regardless of persist, the head always
// waits for the end-of-line bundle to come back around the ring at least
// once before returning, so every attached stage sees exactly one full
// cycle even in one-shot (persist=false) mode.
func (p *Pipeline) runHead(ctx context.Context, persist bool) {
	out := p.produceNext(ctx, nil)
	if dropped := p.stages[0].Push(ctx, out); dropped && p.log != nil {
		p.log.Warning().Log(`bundle #0 dropped: stage1 already not alive`)
	}

	for {
		in, ok := p.self.WaitForData(ctx)
		if !ok {
			break
		}
		p.self.ProcessControlMessage(ctx, in)

		out := p.produceNext(ctx, in)
		p.stages[0].Push(ctx, out)

		if !p.self.Alive() || !persist {
			break
		}
	}

	_ = p.self.CallCleanUp(ctx)
}

// produceNext builds the bundle the head pushes to stage1 this cycle: a
// fresh empty bundle, extended by ProduceFunc if set, then carrying a
// translated ControlMessage when in (the previous end-of-line bundle) asks
// for one, or when termination has been requested. in is nil only for
// bundle #0, which carries no control message.
func (p *Pipeline) produceNext(ctx context.Context, in *bundle.Bundle) *bundle.Bundle {
	if in != nil && p.endOfLine != nil {
		p.endOfLine(ctx, in)
	}

	out := bundle.New()
	if p.produce != nil {
		p.produce(ctx, out)
	}
	if in == nil {
		return out
	}

	if p.terminate.Load() {
		p.attachControl(out, message.ControlShutdown)
		return out
	}

	if interrupt, ok := interruptAccessor.Read(in); ok {
		switch interrupt.Type {
		case message.InterruptBreakPoint:
			p.attachControl(out, message.ControlSoftReset)
		case message.InterruptFinished:
			p.attachControl(out, message.ControlShutdown)
		}
	}

	return out
}

func (p *Pipeline) attachControl(out *bundle.Bundle, typ message.ControlType) {
	if controlAccessor.Attach(out, message.ControlMessage{Type: typ}) {
		return
	}
	// A ProduceFunc attached its own ControlMessage before the head could;
	// spec.md §9 open question 2 decides this is recoverable, not fatal:
	// log it, report it, and keep the message already on the bundle.
	err := fmt.Errorf(`pipeline: wanted to attach control message %s: %w`, typ, ErrInjectionCollision)
	if p.log != nil {
		p.log.Warning().Str(`wanted`, typ.String()).Err(err).Log(`control message injection collision`)
	}
	select {
	case p.errCh <- err:
	default:
	}
}
