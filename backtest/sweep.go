package backtest

import (
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// RunOutcome pairs one sweep configuration with its result or error.
type RunOutcome struct {
	Name   string
	Config Config
	Result *Result
	Err    error
}

// Pool runs independent backtests concurrently. Runs share no mutable
// state: each worker builds its own Simulator over the shared read-only
// providers, so no synchronization exists beyond collecting outcomes.
type Pool struct {
	bars    BarProvider
	snaps   SnapshotProvider
	log     zerolog.Logger
	Workers int
}

func NewPool(bars BarProvider, snaps SnapshotProvider, log zerolog.Logger) *Pool {
	return &Pool{
		bars:    bars,
		snaps:   snaps,
		log:     log.With().Str("component", "sweep").Logger(),
		Workers: runtime.NumCPU(),
	}
}

// NamedConfig is one sweep entry.
type NamedConfig struct {
	Name   string
	Config Config
}

// Run executes every configuration and returns outcomes in input order.
// A failed run does not stop the others.
func (p *Pool) Run(configs []NamedConfig) []RunOutcome {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(configs) {
		workers = len(configs)
	}

	out := make([]RunOutcome, len(configs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				nc := configs[i]
				sim := NewSimulator(p.bars, p.snaps, p.log.With().Str("run", nc.Name).Logger())
				res, err := sim.Run(nc.Config)
				if err != nil {
					p.log.Error().Err(err).Str("run", nc.Name).Msg("run failed")
				}
				out[i] = RunOutcome{Name: nc.Name, Config: nc.Config, Result: res, Err: err}
			}
		}()
	}
	for i := range configs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return out
}
