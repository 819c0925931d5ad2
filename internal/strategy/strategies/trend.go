package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/strategy/indicators"
)

// TrendConfig configures the EMA crossover strategy.
type TrendConfig struct {
	FastPeriod    int     // Fast EMA (e.g. 9)
	SlowPeriod    int     // Slow EMA (e.g. 21)
	TrendPeriod   int     // SMA trend filter, 0 disables it
	RSIPeriod     int     // RSI filter, 0 disables it
	RSIOverbought float64 // Longs need RSI below this
	RSIOversold   float64 // Shorts need RSI above this
	AllowShort    bool
}

// DefaultTrendConfig returns the usual 9/21 EMA crossover with a 50 SMA filter.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		FastPeriod:    9,
		SlowPeriod:    21,
		TrendPeriod:   50,
		RSIPeriod:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
	}
}

// Trend enters when the fast EMA crosses the slow EMA in the direction of
// the SMA trend, unless RSI says the move is already stretched.
type Trend struct {
	*BaseStrategy
	cfg TrendConfig
	rsi *indicators.RSI
}

// NewTrend validates cfg and builds the strategy.
func NewTrend(cfg TrendConfig, logger ports.Logger) (*Trend, error) {
	base, err := NewBaseStrategy(logger)
	if err != nil {
		return nil, err
	}
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 || cfg.TrendPeriod < 0 || cfg.RSIPeriod < 0 {
		return nil, fmt.Errorf("%w: trend periods must be positive", ports.ErrConfigurationError)
	}
	if cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, fmt.Errorf("%w: fast EMA period %d must be less than slow period %d", ports.ErrConfigurationError, cfg.FastPeriod, cfg.SlowPeriod)
	}
	t := &Trend{BaseStrategy: base, cfg: cfg}
	if cfg.RSIPeriod > 0 {
		if cfg.RSIOversold >= cfg.RSIOverbought {
			return nil, fmt.Errorf("%w: RSI oversold %.1f must be below overbought %.1f", ports.ErrConfigurationError, cfg.RSIOversold, cfg.RSIOverbought)
		}
		t.rsi = indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
			Overbought:      cfg.RSIOverbought,
			Oversold:        cfg.RSIOversold,
		})
	}
	return t, nil
}

// Name returns the name of the strategy
func (t *Trend) Name() string {
	return fmt.Sprintf("trend_ema_%d_%d", t.cfg.FastPeriod, t.cfg.SlowPeriod)
}

// RequiredDataPoints is the shortest window that yields a signal.
func (t *Trend) RequiredDataPoints() int {
	need := t.cfg.SlowPeriod + 1
	if t.cfg.TrendPeriod > need {
		need = t.cfg.TrendPeriod
	}
	if t.cfg.RSIPeriod+1 > need {
		need = t.cfg.RSIPeriod + 1
	}
	return need
}

// Evaluate implements ports.Strategy.
func (t *Trend) Evaluate(ctx context.Context, window []domain.Bar, currentPrice float64) domain.Signal {
	need := t.RequiredDataPoints()
	if len(window) < need {
		return domain.NeutralSignal("warming up")
	}
	w := tail(window, need*lookbackFactor)
	closes := indicators.Closes(w)
	fast := indicators.EMA(closes, t.cfg.FastPeriod)
	slow := indicators.EMA(closes, t.cfg.SlowPeriod)
	n := len(closes) - 1

	values := map[string]float64{"ema_fast": fast[n], "ema_slow": slow[n]}
	var dir domain.Direction
	switch {
	case fast[n-1] <= slow[n-1] && fast[n] > slow[n]:
		dir = domain.Long
	case fast[n-1] >= slow[n-1] && fast[n] < slow[n]:
		dir = domain.Short
	default:
		return domain.Signal{Direction: domain.Neutral, Reasoning: "no crossover", Indicators: values}
	}
	if dir == domain.Short && !t.cfg.AllowShort {
		return domain.Signal{Direction: domain.Neutral, Reasoning: "bearish crossover, shorts disabled", Indicators: values}
	}

	if t.cfg.TrendPeriod > 0 {
		sma := indicators.SMA(closes, t.cfg.TrendPeriod)[n]
		values["sma_trend"] = sma
		if (dir == domain.Long && currentPrice <= sma) || (dir == domain.Short && currentPrice >= sma) {
			return domain.Signal{Direction: domain.Neutral, Reasoning: "crossover against the trend filter", Indicators: values}
		}
	}
	if t.rsi != nil {
		series, err := t.rsi.Series(w)
		if err != nil {
			return domain.NeutralSignal(err.Error())
		}
		rsi := series[n]
		values["rsi"] = rsi
		if (dir == domain.Long && t.rsi.IsOverbought(rsi)) || (dir == domain.Short && t.rsi.IsOversold(rsi)) {
			return domain.Signal{Direction: domain.Neutral, Reasoning: "crossover rejected by RSI", Indicators: values}
		}
	}

	spread := math.Abs(fast[n]-slow[n]) / slow[n]
	sig := domain.Signal{
		ShouldEnter: true,
		Direction:   dir,
		Confidence:  clamp01(0.5 + spread*100),
		Reasoning:   fmt.Sprintf("EMA %d crossed EMA %d (%s)", t.cfg.FastPeriod, t.cfg.SlowPeriod, dir),
		Indicators:  values,
	}
	t.logEntry(ctx, t.Name(), sig)
	return sig
}
