package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/loganko83/aitrading-sub000/config"
	"github.com/loganko83/aitrading-sub000/internal/adapters/barstore"
	"github.com/loganko83/aitrading-sub000/internal/adapters/logger"
	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/strategy"
	"github.com/loganko83/aitrading-sub000/internal/strategy/backtesting"
	"github.com/loganko83/aitrading-sub000/internal/strategy/optimization"
)

// Report is the outcome of one backtest run.
type Report struct {
	RunID  string // Empty when no repository is configured
	Result *domain.BacktestResult
}

// BacktestService orchestrates a backtest: load bars, simulate, report and persist.
type BacktestService struct {
	cfg    *config.Config
	logger ports.Logger
	source ports.BarSource
	repo   ports.BacktestRepository // Optional
}

// NewBacktestService creates a new application service instance.
func NewBacktestService(
	cfg *config.Config,
	logger ports.Logger,
	source ports.BarSource,
	repo ports.BacktestRepository,
) (*BacktestService, error) {
	// Validate dependencies
	if cfg == nil || logger == nil || source == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for BacktestService", ports.ErrConfigurationError)
	}
	if err := cfg.Backtest.Validate(); err != nil {
		return nil, err
	}

	return &BacktestService{
		cfg:    cfg,
		logger: logger,
		source: source,
		repo:   repo,
	}, nil
}

// LoadBars fetches the configured bar window.
func (s *BacktestService) LoadBars(ctx context.Context) ([]domain.Bar, error) {
	bars, err := s.source.LoadBars(ctx, s.cfg.Symbol, s.cfg.Interval, s.cfg.Start, s.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("loading %s %s bars: %w", s.cfg.Symbol, s.cfg.Interval, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no %s %s bars in the requested window", ports.ErrInsufficientData, s.cfg.Symbol, s.cfg.Interval)
	}
	s.logger.Info(ctx, "Bars loaded", map[string]interface{}{
		"symbol":   s.cfg.Symbol,
		"interval": s.cfg.Interval,
		"count":    len(bars),
		"from":     bars[0].Time,
		"to":       bars[len(bars)-1].Time,
	})
	return bars, nil
}

// Run executes a single backtest of the configured strategy.
func (s *BacktestService) Run(ctx context.Context) (*Report, error) {
	strat, err := strategy.New(s.cfg.Strategy, s.cfg.StrategyParams, s.logger)
	if err != nil {
		return nil, err
	}
	return s.RunStrategy(ctx, strat)
}

// RunStrategy executes a single backtest of strat over the configured window.
func (s *BacktestService) RunStrategy(ctx context.Context, strat ports.Strategy) (*Report, error) {
	bars, err := s.LoadBars(ctx)
	if err != nil {
		return nil, err
	}

	engine, err := backtesting.NewEngine(s.cfg.Backtest, s.logger)
	if err != nil {
		return nil, err
	}
	result, err := engine.Run(ctx, strat, bars)
	if err != nil {
		s.logger.Error(ctx, err, "Backtest failed", map[string]interface{}{"strategy": strat.Name()})
		return nil, err
	}
	s.logSummary(ctx, result)

	report := &Report{Result: result}
	if s.repo != nil {
		id, err := s.repo.SaveResult(ctx, result)
		if err != nil {
			return report, fmt.Errorf("saving backtest result: %w", err)
		}
		report.RunID = id
		s.logger.Info(ctx, "Backtest result saved", map[string]interface{}{"runID": id})
	}
	if s.cfg.TradesCSV != "" {
		if err := barstore.WriteTradesCSV(s.cfg.TradesCSV, result.Trades); err != nil {
			return report, fmt.Errorf("writing trades csv: %w", err)
		}
		s.logger.Info(ctx, "Trade ledger written", map[string]interface{}{"path": s.cfg.TradesCSV, "trades": len(result.Trades)})
	}
	return report, nil
}

// Optimize runs a parameter grid search over the configured strategy and
// returns every evaluated combination, best first. Engines run silently.
func (s *BacktestService) Optimize(ctx context.Context) ([]optimization.OptimizationResult, error) {
	if len(s.cfg.ParameterRanges) == 0 {
		return nil, fmt.Errorf("%w: no optimizer parameter ranges configured", ports.ErrConfigurationError)
	}
	optimizer, err := optimization.NewOptimizer(optimization.OptimizerConfig{
		ParameterRanges: s.cfg.ParameterRanges,
		BaseParams:      s.cfg.StrategyParams,
		Engine:          s.cfg.Backtest,
		Workers:         s.cfg.OptimizerWorkers,
		EngineLogger:    logger.Nop{},
	}, s.logger)
	if err != nil {
		return nil, err
	}

	bars, err := s.LoadBars(ctx)
	if err != nil {
		return nil, err
	}
	name := s.cfg.Strategy
	factory := func(p strategy.Params) (ports.Strategy, error) {
		return strategy.New(name, p, logger.Nop{})
	}
	results, err := optimizer.Optimize(ctx, factory, bars)
	if err != nil {
		if errors.Is(err, ports.ErrContextCanceled) {
			s.logger.Warn(ctx, "Parameter search canceled")
		}
		return nil, err
	}
	if len(results) > 0 {
		best := results[0]
		s.logger.Info(ctx, "Best parameters", map[string]interface{}{
			"params":      best.Parameters,
			"score":       best.Score,
			"totalReturn": best.Metrics.TotalReturn,
			"sharpe":      best.Metrics.SharpeRatio,
		})
	}
	return results, nil
}

func (s *BacktestService) logSummary(ctx context.Context, result *domain.BacktestResult) {
	m := result.Metrics
	s.logger.Info(ctx, "Backtest summary", map[string]interface{}{
		"strategy":        result.StrategyName,
		"symbol":          result.Symbol,
		"finalCapital":    fmt.Sprintf("%.2f", result.FinalCapital),
		"totalReturnPct":  fmt.Sprintf("%.2f", m.TotalReturn),
		"trades":          result.TotalTrades,
		"winRatePct":      fmt.Sprintf("%.1f", m.WinRate),
		"profitFactor":    fmt.Sprintf("%.2f", m.ProfitFactor),
		"sharpe":          fmt.Sprintf("%.2f", m.SharpeRatio),
		"maxDrawdownPct":  fmt.Sprintf("%.2f", m.MaxDrawdownPct),
		"rejectedSignals": result.RejectedSignals,
		"marginWarnings":  result.MarginWarnings,
		"rating":          m.Rating,
	})
}
