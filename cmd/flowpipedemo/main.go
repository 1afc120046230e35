// Command flowpipedemo is a small ops/demo harness for package pipeline: it
// loads a TOML run configuration, tunes the Go runtime for the container it
// is running in, assembles a chain of pass-through/diagnostic stages, and
// drives the pipeline until an OS signal (or its own demo source) requests
// shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/joeycumines/logiface"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/riverforge/flowpipe/bundle"
	"github.com/riverforge/flowpipe/pipeline"
	"github.com/riverforge/flowpipe/stage"
	"github.com/riverforge/flowpipe/zlog"
)

// Config is the demo's run configuration: how many pass-through stages to
// chain, whether the run is persistent or one-shot, how many demo payloads
// to inject before terminating, and the log level.
type Config struct {
	Stages     int    `toml:"stages"`
	Persist    bool   `toml:"persist"`
	Count      int    `toml:"count"`
	LogLevel   string `toml:"log_level"`
	PrintNames bool   `toml:"print_names"`
}

func defaultConfig() Config {
	return Config{Stages: 3, Persist: true, Count: 10, LogLevel: `info`}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == `` {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf(`flowpipedemo: decode config %q: %w`, path, err)
	}
	return cfg, nil
}

func parseLevel(s string) logiface.Level {
	switch s {
	case `emerg`, `emergency`:
		return logiface.LevelEmergency
	case `alert`:
		return logiface.LevelAlert
	case `crit`, `critical`:
		return logiface.LevelCritical
	case `error`, `err`:
		return logiface.LevelError
	case `warning`, `warn`:
		return logiface.LevelWarning
	case `notice`:
		return logiface.LevelNotice
	case `info`, ``:
		return logiface.LevelInformational
	case `debug`:
		return logiface.LevelDebug
	case `trace`:
		return logiface.LevelTrace
	default:
		return logiface.LevelInformational
	}
}

type demoPayload struct{ Seq int }

func (demoPayload) CanonicalName() string { return `flowpipedemo::seq` }

func main() {
	configPath := flag.String(`config`, ``, `path to a TOML run configuration (optional)`)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	// GOMAXPROCS must match the container's CPU quota: spec.md §5 pins one
	// goroutine per stage plus the head, so under-provisioning here starves
	// the very concurrency model the pipeline depends on.
	if _, err := maxprocs.Set(maxprocs.Logger(log.Printf)); err != nil {
		log.Printf(`flowpipedemo: maxprocs.Set: %v`, err)
	}

	// Bundles are heap-allocated once per head cycle (spec.md §3); a
	// long-running demo benefits from a GOMEMLIMIT derived from the
	// cgroup, same as the teacher's own long-running binaries.
	if _, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(memlimit.FromCgroupHybrid),
	); err != nil {
		log.Printf(`flowpipedemo: automemlimit: %v`, err)
	}

	logger := logiface.New[*zlog.Event](
		zlog.WithZlog(zlog.WithWriter(os.Stderr), zlog.WithTimeField(`time`)),
		zlog.L.WithLevel(parseLevel(cfg.LogLevel)),
	)

	p := buildPipeline(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Notice().Log(`signal received, terminating pipeline`)
		p.Terminate()
	}()

	start := time.Now()
	if err := p.Run(context.Background(), cfg.Persist); err != nil {
		logger.Err().Err(err).Log(`pipeline run returned an error`)
		os.Exit(1)
	}
	logger.Info().Dur(`elapsed`, time.Since(start)).Log(`pipeline finished`)
}

var seqAccessor = bundle.NewAccessor[demoPayload]()

// buildPipeline wires cfg.Stages identical pass-through stages, each
// forwarding the demo payload unchanged, plus, when cfg.PrintNames is set, a
// final diagnostic print stage. The head injects cfg.Count numbered payloads via ProduceFunc, then
// terminates once it has seen them all come back around the ring.
func buildPipeline(cfg Config, logger *logiface.Logger[*zlog.Event]) *pipeline.Pipeline {
	var p *pipeline.Pipeline
	var produced, received int

	p = pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithProduce(func(ctx context.Context, out *bundle.Bundle) {
			if cfg.Count > 0 && produced >= cfg.Count {
				return
			}
			produced++
			seqAccessor.Attach(out, demoPayload{Seq: produced})
		}),
		pipeline.WithEndOfLine(func(ctx context.Context, in *bundle.Bundle) {
			if _, ok := seqAccessor.Read(in); ok {
				received++
			}
			if cfg.Count > 0 && received >= cfg.Count {
				p.Terminate()
			}
		}),
	)

	for i := 0; i < cfg.Stages; i++ {
		p.ConnectOwned(stage.Func(fmt.Sprintf(`passthrough-%d`, i+1), func(ctx context.Context, b *bundle.Bundle) error {
			// Demo stage: the payload is already attached by the head;
			// nothing to transform. A real stage would read it via
			// seqAccessor.Read(b) and attach a transformed result.
			return nil
		}))
	}

	if cfg.PrintNames {
		p.ConnectOwned(stage.NewPrintStage(logger))
	}

	return p
}
