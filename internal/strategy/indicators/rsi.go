package indicators

import (
	"context"
	"math"

	"github.com/loganko83/aitrading-sub000/internal/domain"
)

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Overbought float64
	Oversold   float64
}

// RSI implements the Relative Strength Index with Wilder's smoothing.
type RSI struct {
	BaseIndicator
	overbought float64
	oversold   float64
}

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) *RSI {
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		overbought:    config.Overbought,
		oversold:      config.Oversold,
	}
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return "RSI"
}

// RequiredDataPoints returns period+1: RSI works on close-to-close changes.
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Calculate returns the RSI at the last bar of the window.
func (r *RSI) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	series, err := r.Series(bars)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// Series returns RSI values aligned with bars; the first period entries are NaN.
func (r *RSI) Series(bars []domain.Bar) ([]float64, error) {
	period := r.Config.Period
	if err := checkPeriod("RSI", period); err != nil {
		return nil, err
	}
	if len(bars) <= period {
		return nil, insufficient("RSI", period+1, len(bars))
	}

	out := make([]float64, len(bars))
	for i := 0; i < period; i++ {
		out[i] = math.NaN()
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		gain, loss := split(bars[i].Close - bars[i-1].Close)
		avgGain += gain
		avgLoss += loss
	}
	n := float64(period)
	avgGain /= n
	avgLoss /= n
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(bars); i++ {
		gain, loss := split(bars[i].Close - bars[i-1].Close)
		avgGain = (avgGain*(n-1) + gain) / n
		avgLoss = (avgLoss*(n-1) + loss) / n
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

// IsOverbought checks if the RSI value indicates an overbought condition
func (r *RSI) IsOverbought(value float64) bool {
	return value >= r.overbought
}

// IsOversold checks if the RSI value indicates an oversold condition
func (r *RSI) IsOversold(value float64) bool {
	return value <= r.oversold
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return math.Min(100, math.Max(0, 100-100/(1+rs)))
}
