package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/strategy/indicators"
)

// OscillatorConfig configures the RSI mean-reversion strategy.
type OscillatorConfig struct {
	RSIPeriod  int
	Oversold   float64
	Overbought float64
	AllowShort bool
}

// DefaultOscillatorConfig returns RSI(14) with 30/70 bands.
func DefaultOscillatorConfig() OscillatorConfig {
	return OscillatorConfig{RSIPeriod: 14, Oversold: 30, Overbought: 70}
}

// Oscillator buys when RSI climbs back out of the oversold band and sells
// when it falls back from the overbought band.
type Oscillator struct {
	*BaseStrategy
	cfg OscillatorConfig
	rsi *indicators.RSI
}

// NewOscillator validates cfg and builds the strategy.
func NewOscillator(cfg OscillatorConfig, logger ports.Logger) (*Oscillator, error) {
	base, err := NewBaseStrategy(logger)
	if err != nil {
		return nil, err
	}
	if cfg.RSIPeriod <= 0 {
		return nil, fmt.Errorf("%w: RSI period must be positive", ports.ErrConfigurationError)
	}
	if cfg.Oversold <= 0 || cfg.Overbought >= 100 || cfg.Oversold >= cfg.Overbought {
		return nil, fmt.Errorf("%w: RSI bands must satisfy 0 < oversold < overbought < 100, got %.1f/%.1f", ports.ErrConfigurationError, cfg.Oversold, cfg.Overbought)
	}
	return &Oscillator{
		BaseStrategy: base,
		cfg:          cfg,
		rsi: indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
			Overbought:      cfg.Overbought,
			Oversold:        cfg.Oversold,
		}),
	}, nil
}

// Name returns the name of the strategy
func (o *Oscillator) Name() string {
	return fmt.Sprintf("rsi_%d_%.0f_%.0f", o.cfg.RSIPeriod, o.cfg.Oversold, o.cfg.Overbought)
}

// RequiredDataPoints covers two consecutive RSI readings.
func (o *Oscillator) RequiredDataPoints() int {
	return o.cfg.RSIPeriod + 2
}

// Evaluate implements ports.Strategy.
func (o *Oscillator) Evaluate(ctx context.Context, window []domain.Bar, currentPrice float64) domain.Signal {
	need := o.RequiredDataPoints()
	if len(window) < need {
		return domain.NeutralSignal("warming up")
	}
	series, err := o.rsi.Series(tail(window, need*lookbackFactor))
	if err != nil {
		return domain.NeutralSignal(err.Error())
	}
	prev, cur := series[len(series)-2], series[len(series)-1]
	values := map[string]float64{"rsi": cur, "rsi_prev": prev}

	var sig domain.Signal
	switch {
	case o.rsi.IsOversold(prev) && !o.rsi.IsOversold(cur):
		sig = domain.Signal{
			ShouldEnter: true,
			Direction:   domain.Long,
			Confidence:  clamp01(math.Abs(cur-prev) / o.cfg.Oversold),
			Reasoning:   fmt.Sprintf("RSI left oversold band (%.1f -> %.1f)", prev, cur),
		}
	case o.cfg.AllowShort && o.rsi.IsOverbought(prev) && !o.rsi.IsOverbought(cur):
		sig = domain.Signal{
			ShouldEnter: true,
			Direction:   domain.Short,
			Confidence:  clamp01(math.Abs(cur-prev) / (100 - o.cfg.Overbought)),
			Reasoning:   fmt.Sprintf("RSI left overbought band (%.1f -> %.1f)", prev, cur),
		}
	default:
		return domain.Signal{Direction: domain.Neutral, Reasoning: "RSI inside bands", Indicators: values}
	}
	sig.Indicators = values
	o.logEntry(ctx, o.Name(), sig)
	return sig
}
