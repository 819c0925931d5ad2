// Package optimization runs a grid search over strategy parameters, one
// independent backtest per combination.
package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/strategy"
	"github.com/loganko83/aitrading-sub000/internal/strategy/backtesting"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string  `yaml:"name"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Step  float64 `yaml:"step"`
	IsInt bool    `yaml:"is_int"`
}

// values returns the grid points of the range, Min first.
func (r ParameterRange) values() []float64 {
	n := int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
	out := make([]float64, 0, n)
	for k := 0; k < n; k++ {
		v := r.Min + float64(k)*r.Step
		if r.IsInt {
			v = math.Round(v)
		}
		out = append(out, v)
	}
	return out
}

// Factory builds a fresh strategy for one parameter combination.
type Factory func(params strategy.Params) (ports.Strategy, error)

// ScoreFunction ranks a completed run. Higher is better.
type ScoreFunction func(metrics *domain.PerformanceMetrics) float64

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters      strategy.Params
	Metrics         domain.PerformanceMetrics
	FinalCapital    float64
	RejectedSignals int
	Score           float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	BaseParams      strategy.Params    // Fixed parameters merged under every combination
	Engine          backtesting.Config // Engine configuration shared by all runs
	Workers         int                // 0 means GOMAXPROCS
	ScoreFunction   ScoreFunction      // nil means DefaultScoreFunction
	EngineLogger    ports.Logger       // Logger handed to each engine; nil means the optimizer's logger
}

// Optimizer implements strategy parameter optimization
type Optimizer struct {
	config OptimizerConfig
	logger ports.Logger
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig, logger ports.Logger) (*Optimizer, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	var errs []string
	if len(config.ParameterRanges) == 0 {
		errs = append(errs, "at least one parameter range is required")
	}
	seen := make(map[string]bool)
	for _, r := range config.ParameterRanges {
		switch {
		case r.Name == "":
			errs = append(errs, "parameter range without a name")
		case seen[r.Name]:
			errs = append(errs, fmt.Sprintf("duplicate parameter range %q", r.Name))
		case r.Step <= 0 || math.IsNaN(r.Step):
			errs = append(errs, fmt.Sprintf("%s: step must be positive", r.Name))
		case r.Max < r.Min:
			errs = append(errs, fmt.Sprintf("%s: max below min", r.Name))
		}
		seen[r.Name] = true
	}
	if config.Workers < 0 {
		errs = append(errs, "workers cannot be negative")
	}
	if err := config.Engine.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: optimizer: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}

	if config.Workers == 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	if config.EngineLogger == nil {
		config.EngineLogger = logger
	}
	return &Optimizer{config: config, logger: logger}, nil
}

// Combinations returns the number of parameter sets the grid expands to.
func (o *Optimizer) Combinations() int {
	n := 1
	for _, r := range o.config.ParameterRanges {
		n *= len(r.values())
	}
	return n
}

// Optimize runs one backtest per parameter combination and returns the
// results ordered by score, best first. Ties keep grid order, so the output
// does not depend on the number of workers. Combinations the factory rejects
// are skipped; an engine failure aborts the search.
func (o *Optimizer) Optimize(ctx context.Context, factory Factory, bars []domain.Bar) ([]OptimizationResult, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: strategy factory is required", ports.ErrConfigurationError)
	}
	combinations := o.generateParameterCombinations()
	slots := make([]*OptimizationResult, len(combinations))

	o.logger.Info(ctx, "Starting parameter search", map[string]interface{}{
		"combinations": len(combinations),
		"workers":      o.config.Workers,
		"bars":         len(bars),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Workers)
	for i, params := range combinations {
		if gctx.Err() != nil {
			break
		}
		i, params := i, params
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := o.evaluate(gctx, factory, params, bars)
			if err != nil {
				return fmt.Errorf("combination %d: %w", i, err)
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: parameter search: %v", ports.ErrContextCanceled, err)
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: parameter search: %v", ports.ErrContextCanceled, err)
	}

	results := make([]OptimizationResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	sortResultsByScore(results)

	o.logger.Info(ctx, "Parameter search finished", map[string]interface{}{
		"evaluated": len(results),
		"skipped":   len(combinations) - len(results),
	})
	return results, nil
}

// evaluate returns nil, nil when the factory rejects the combination.
func (o *Optimizer) evaluate(ctx context.Context, factory Factory, params strategy.Params, bars []domain.Bar) (*OptimizationResult, error) {
	s, err := factory(params)
	if err != nil {
		o.logger.Debug(ctx, "Skipping parameter combination", map[string]interface{}{
			"params": params,
			"reason": err.Error(),
		})
		return nil, nil
	}
	engine, err := backtesting.NewEngine(o.config.Engine, o.config.EngineLogger)
	if err != nil {
		return nil, err
	}
	result, err := engine.Run(ctx, s, bars)
	if err != nil {
		return nil, err
	}

	score := o.config.ScoreFunction(&result.Metrics)
	if math.IsNaN(score) {
		score = math.Inf(-1)
	}
	return &OptimizationResult{
		Parameters:      params,
		Metrics:         result.Metrics,
		FinalCapital:    result.FinalCapital,
		RejectedSignals: result.RejectedSignals,
		Score:           score,
	}, nil
}

// generateParameterCombinations generates all possible parameter combinations
// in row-major order over ParameterRanges.
func (o *Optimizer) generateParameterCombinations() []strategy.Params {
	var combinations []strategy.Params
	current := o.config.BaseParams.Clone()

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combinations = append(combinations, current.Clone())
			return
		}
		param := o.config.ParameterRanges[paramIndex]
		for _, v := range param.values() {
			current[param.Name] = v
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction blends risk-adjusted return, consistency and drawdown.
// A run without trades scores zero.
func DefaultScoreFunction(metrics *domain.PerformanceMetrics) float64 {
	if metrics == nil || metrics.TotalTrades == 0 {
		return 0
	}
	pf := metrics.ProfitFactor
	if math.IsInf(pf, 1) || pf > 3 {
		pf = 3
	}

	score := 0.0
	score += metrics.SharpeRatio * 0.4
	score += metrics.WinRate / 100 * 0.2
	score += pf / 3 * 0.2
	score += metrics.TotalReturn / 100 * 0.2
	score -= metrics.MaxDrawdownPct / 100 * 0.2
	return score
}
