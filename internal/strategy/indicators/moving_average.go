package indicators

import (
	"context"
	"fmt"
	"math"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	SimpleMovingAverage      MovingAverageType = "SMA"
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA over bar closes.
type MovingAverage struct {
	BaseIndicator
	kind MovingAverageType
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		kind:          config.Type,
	}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return string(m.kind)
}

// Calculate returns the moving average at the last bar of the window.
func (m *MovingAverage) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	series, err := m.Series(bars)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// Series returns the moving average aligned with bars; values before the
// first full period are NaN.
func (m *MovingAverage) Series(bars []domain.Bar) ([]float64, error) {
	period := m.Config.Period
	if err := checkPeriod(m.Name(), period); err != nil {
		return nil, err
	}
	if len(bars) < period {
		return nil, insufficient(m.Name(), period, len(bars))
	}
	closes := Closes(bars)
	switch m.kind {
	case SimpleMovingAverage:
		return SMA(closes, period), nil
	case ExponentialMovingAverage:
		return EMA(closes, period), nil
	default:
		return nil, fmt.Errorf("%w: unsupported moving average type %q", ports.ErrConfigurationError, m.kind)
	}
}

// Closes extracts the close prices of bars.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// SMA returns the simple moving average of values with a running sum.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

// EMA returns the exponential moving average of values, seeded with the SMA
// of the first period values.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	k := 2.0 / float64(period+1)
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
		out[i] = math.NaN()
	}
	ema := seed / float64(period)
	out[period-1] = ema
	for i := period; i < len(values); i++ {
		ema += (values[i] - ema) * k
		out[i] = ema
	}
	return out
}
