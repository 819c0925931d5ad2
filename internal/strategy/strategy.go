// Package strategy builds trading strategies by name from flat parameter
// maps, and keeps a Registry of the available constructors.
package strategy

import (
	"fmt"
	"sort"

	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/strategy/strategies"
)

// Names of the built-in strategies.
const (
	Trend      = "trend"
	Oscillator = "oscillator"
	Ensemble   = "ensemble"
)

// Params carries numeric strategy parameters, e.g. from env, YAML or a
// parameter grid. Booleans are encoded as 0/1.
type Params map[string]float64

// Float returns the value of key, or def when unset.
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int returns the value of key truncated to an int, or def when unset.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

// Bool reports whether key is set to a non-zero value, or def when unset.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key]; ok {
		return v != 0
	}
	return def
}

// Clone returns a copy that can be modified independently.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Constructor builds a strategy from parameters.
type Constructor func(params Params, logger ports.Logger) (ports.Strategy, error)

// Registry holds a named collection of strategy constructors.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// DefaultRegistry returns a registry with the built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Trend, newTrend)
	r.Register(Oscillator, newOscillator)
	r.Register(Ensemble, newEnsemble)
	return r
}

// Register adds a constructor, replacing any previous one with the same name.
func (r *Registry) Register(name string, c Constructor) {
	r.constructors[name] = c
}

// Get retrieves a constructor by name.
func (r *Registry) Get(name string) (Constructor, bool) {
	c, ok := r.constructors[name]
	return c, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the named strategy.
func (r *Registry) Build(name string, params Params, logger ports.Logger) (ports.Strategy, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q (available: %v)", ports.ErrConfigurationError, name, r.List())
	}
	return c(params, logger)
}

// New builds a built-in strategy by name.
func New(name string, params Params, logger ports.Logger) (ports.Strategy, error) {
	return DefaultRegistry().Build(name, params, logger)
}

func trendConfig(p Params) strategies.TrendConfig {
	d := strategies.DefaultTrendConfig()
	return strategies.TrendConfig{
		FastPeriod:    p.Int("fast_period", d.FastPeriod),
		SlowPeriod:    p.Int("slow_period", d.SlowPeriod),
		TrendPeriod:   p.Int("trend_period", d.TrendPeriod),
		RSIPeriod:     p.Int("rsi_period", d.RSIPeriod),
		RSIOverbought: p.Float("rsi_overbought", d.RSIOverbought),
		RSIOversold:   p.Float("rsi_oversold", d.RSIOversold),
		AllowShort:    p.Bool("allow_short", d.AllowShort),
	}
}

func oscillatorConfig(p Params) strategies.OscillatorConfig {
	d := strategies.DefaultOscillatorConfig()
	return strategies.OscillatorConfig{
		RSIPeriod:  p.Int("rsi_period", d.RSIPeriod),
		Oversold:   p.Float("rsi_oversold", d.Oversold),
		Overbought: p.Float("rsi_overbought", d.Overbought),
		AllowShort: p.Bool("allow_short", d.AllowShort),
	}
}

func newTrend(p Params, logger ports.Logger) (ports.Strategy, error) {
	return strategies.NewTrend(trendConfig(p), logger)
}

func newOscillator(p Params, logger ports.Logger) (ports.Strategy, error) {
	return strategies.NewOscillator(oscillatorConfig(p), logger)
}

// newEnsemble votes a trend and an oscillator strategy built from the same
// parameters. The trend filter RSI is left to the oscillator member.
func newEnsemble(p Params, logger ports.Logger) (ports.Strategy, error) {
	tc := trendConfig(p)
	tc.RSIPeriod = 0
	trend, err := strategies.NewTrend(tc, logger)
	if err != nil {
		return nil, err
	}
	osc, err := strategies.NewOscillator(oscillatorConfig(p), logger)
	if err != nil {
		return nil, err
	}
	return strategies.NewEnsemble([]strategies.Member{
		{Strategy: trend, Weight: p.Float("trend_weight", 1)},
		{Strategy: osc, Weight: p.Float("oscillator_weight", 1)},
	}, p.Float("threshold", 0.4), logger)
}
