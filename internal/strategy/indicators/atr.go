package indicators

import (
	"context"
	"math"

	"github.com/loganko83/aitrading-sub000/internal/domain"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

// ATR implements the Average True Range indicator with Wilder's smoothing.
type ATR struct {
	BaseIndicator
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	return &ATR{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return "ATR"
}

// RequiredDataPoints returns period+1 since the first true range has no previous close.
func (a *ATR) RequiredDataPoints() int {
	return a.Config.Period + 1
}

// Calculate computes the Wilder-smoothed ATR for the last bar of the window.
func (a *ATR) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	period := a.Config.Period
	if err := checkPeriod("ATR", period); err != nil {
		return 0, err
	}
	if len(bars) < period+1 {
		return 0, insufficient("ATR", period+1, len(bars))
	}

	trueRanges := TrueRange(bars)

	// First ATR is simple average of first 'period' true ranges
	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)

	for i := period; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
	}
	return atr, nil
}

// TrueRange returns the true range of every bar. The first bar has no
// previous close, so its range is high - low.
func TrueRange(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prevClose := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
		}
		out[i] = tr
	}
	return out
}

// RollingATR returns the simple rolling mean of the true range over period
// bars, aligned with the input. Indices before the first full window are NaN.
func RollingATR(bars []domain.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if period < 1 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	tr := TrueRange(bars)
	sum := 0.0
	for i := range tr {
		sum += tr[i]
		if i >= period {
			sum -= tr[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}
