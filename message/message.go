// Package message defines the two in-band coordination payloads that flow
// alongside user data inside a bundle: ControlMessage, injected by the
// pipeline head to drive shutdown and reset, and Interrupt, emitted by
// stages to ask the head for one of those things.
package message

import (
	"fmt"
	"io"
)

// Message is the rendering contract a bundle payload may satisfy so that
// host code can render it to a text stream. Bundle payloads are not required
// to implement it, and stage.NewPrintStage does not use it: that stage logs
// payload names only.
type Message interface {
	WriteTo(w io.Writer) (int64, error)
}

// ControlMessageName is the reserved canonical name under which a
// ControlMessage is attached to a bundle. User code must not attach a
// payload under this name directly.
const ControlMessageName = "pipe::ControlMessage"

// ControlType enumerates the kinds of ControlMessage.
type ControlType int8

const (
	// ControlNormal is the zero value: no control action requested.
	ControlNormal ControlType = iota
	ControlShutdown
	ControlSoftReset
)

func (t ControlType) String() string {
	switch t {
	case ControlNormal:
		return `NORMAL`
	case ControlShutdown:
		return `SHUTDOWN`
	case ControlSoftReset:
		return `SOFT_RESET`
	default:
		return fmt.Sprintf(`ControlType(%d)`, int8(t))
	}
}

// ControlMessage drives orderly shutdown and reset. At most one exists per
// bundle, under ControlMessageName; only the pipeline head attaches it.
type ControlMessage struct {
	Type ControlType
}

// CanonicalName satisfies the bundle.Keyed constraint.
func (ControlMessage) CanonicalName() string { return ControlMessageName }

func (m ControlMessage) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w, `%s: type = %s`, ControlMessageName, m.Type)
	return int64(n), err
}

// InterruptName is the reserved canonical name under which an Interrupt is
// attached to a bundle. User code must not attach a payload under this name
// directly.
const InterruptName = "pipe::Interrupt"

// InterruptType enumerates the kinds of Interrupt a stage can raise.
type InterruptType int8

const (
	// InterruptFinished is the zero value, matching the original source's
	// default-constructed Interrupt.
	InterruptFinished InterruptType = iota
	InterruptBreakPoint
)

func (t InterruptType) String() string {
	switch t {
	case InterruptFinished:
		return `FINISHED`
	case InterruptBreakPoint:
		return `BREAK_POINT`
	default:
		return fmt.Sprintf(`InterruptType(%d)`, int8(t))
	}
}

// Interrupt is raised by a stage, inside processData, to ask the head to
// soft-reset (BREAK_POINT) or shut down (FINISHED) the pipeline. At most one
// exists per bundle, under InterruptName.
type Interrupt struct {
	Type InterruptType
}

// CanonicalName satisfies the bundle.Keyed constraint.
func (Interrupt) CanonicalName() string { return InterruptName }

func (m Interrupt) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w, `%s: type = %s`, InterruptName, m.Type)
	return int64(n), err
}
