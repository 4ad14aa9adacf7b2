// Package strategy defines the pluggable selection rule interface and the
// rules shipped with the backtester. Rules are registered by name so the CLI
// and config layer can build them without knowing concrete types.
package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"rotation/universe"
)

// Target is the portfolio a rule wants to hold: a weight per instrument
// code. Weights sum to 1, or to less when the rule elects to hold cash
// (including 0 for all-cash). The simulator consumes a Target exactly once.
type Target struct {
	AsOf    time.Time
	Weights map[string]float64
}

// WeightSum returns the total target weight.
func (t Target) WeightSum() float64 {
	var sum float64
	for _, w := range t.Weights {
		sum += w
	}
	return sum
}

// Codes returns the target's instrument codes in sorted order.
func (t Target) Codes() []string {
	codes := make([]string, 0, len(t.Weights))
	for c := range t.Weights {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// SelectionRule maps a dated universe snapshot to a target portfolio of at
// most n instruments. Implementations must be pure functions of their
// inputs: no hidden state, no clock, no data beyond the snapshot. The same
// snapshot must always yield the same Target.
type SelectionRule interface {
	Name() string
	Select(snap universe.Snapshot, n int) (Target, error)
}

// Params carries the knobs rule factories understand. Fields a rule does
// not use are ignored.
type Params struct {
	MinPrice     float64 // minimum close price, smallcap
	MinMarketCap float64 // minimum total market cap, lowpe
	ExcludeST    bool
	MainBoard    bool
}

// Factory builds a rule from params.
type Factory func(p Params) SelectionRule

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register adds a rule factory under name. Later registrations replace
// earlier ones, which tests rely on.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = f
}

// New builds the named rule, or errors listing what is available.
func New(name string, p Params) (SelectionRule, error) {
	mu.RLock()
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f(p), nil
}

// Names lists registered rule names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// equalWeight builds a Target giving each member 1/n of the portfolio,
// where n is the requested selection size even when fewer members
// qualified: the shortfall stays in cash rather than concentrating the book.
func equalWeight(asOf time.Time, picked []universe.Member, n int) Target {
	t := Target{AsOf: asOf, Weights: make(map[string]float64, len(picked))}
	if n < 1 || len(picked) == 0 {
		return t
	}
	w := 1.0 / float64(n)
	for _, m := range picked {
		t.Weights[m.Instrument.Code] = w
	}
	return t
}
