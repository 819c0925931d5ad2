// Package strategies holds the signal generators shipped with the engine.
// Each one is a pure function of the bar window it is given.
package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

// lookbackFactor bounds the window each strategy recomputes its indicators
// over, as a multiple of its longest period.
const lookbackFactor = 4

// BaseStrategy provides common functionality for strategies
type BaseStrategy struct {
	logger ports.Logger
}

// NewBaseStrategy creates a new base strategy instance
func NewBaseStrategy(logger ports.Logger) (*BaseStrategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required for strategy", ports.ErrConfigurationError)
	}
	return &BaseStrategy{logger: logger}, nil
}

func (b *BaseStrategy) logEntry(ctx context.Context, name string, sig domain.Signal) {
	fields := ports.Fields{
		"strategy":   name,
		"direction":  sig.Direction,
		"confidence": sig.Confidence,
	}
	for k, v := range sig.Indicators {
		fields[k] = v
	}
	b.logger.Debug(ctx, sig.Reasoning, fields)
}

// tail returns the last n bars of window, or the whole window.
func tail(window []domain.Bar, n int) []domain.Bar {
	if len(window) <= n {
		return window
	}
	return window[len(window)-n:]
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
