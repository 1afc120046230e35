package stage

import (
	"context"

	"github.com/joeycumines/logiface"

	"github.com/riverforge/flowpipe/bundle"
	"github.com/riverforge/flowpipe/zlog"
)

// Func adapts a plain function into a Stage whose only interesting
// behavior is ProcessData — the common case for simple pass-through or
// transform stages (see spec.md §8, scenarios S1, S3, S5).
func Func(name string, fn func(ctx context.Context, b *bundle.Bundle) error) Stage {
	return Stage{Name: name, ProcessData: fn}
}

// NewPrintStage returns a Stage that logs the names of every payload
// present in a bundle, through log, once per cycle. It is the Go analogue
// of the original source's BundlePrinter/BundlePrintModule diagnostic
// collaborator: since the bundle's opaque-payload store is accessible only
// through the accessor discipline (see package bundle), the diagnostic
// surface it can offer without defeating that discipline is the set of
// attached names, not their erased values. Host code that wants value
// rendering should attach bundle.Keyed payloads implementing
// message.Message and read them back with their own Accessor.
//
// names restricts the reported set to the given bundle keys; with none
// given, every attached name is reported.
func NewPrintStage(log *logiface.Logger[*zlog.Event], names ...string) Stage {
	return Stage{
		Name: `print`,
		ProcessData: func(ctx context.Context, b *bundle.Bundle) error {
			if log == nil {
				return nil
			}
			want := names
			if len(want) == 0 {
				want = b.Names()
			}
			for _, name := range want {
				if b.HasName(name) {
					log.Debug().Str(`name`, name).Log(`bundle payload present`)
				}
			}
			return nil
		},
	}
}
