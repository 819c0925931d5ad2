// Package indicators computes technical indicators over bar windows.
package indicators

import (
	"context"
	"fmt"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

// Indicator represents a technical indicator that can be calculated from price data
type Indicator interface {
	// Calculate computes the indicator value for the latest bar of the window
	Calculate(ctx context.Context, bars []domain.Bar) (float64, error)

	// RequiredDataPoints returns the minimum number of bars needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of bars needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

func insufficient(name string, need, got int) error {
	return fmt.Errorf("%w: %s needs %d bars, got %d", ports.ErrInsufficientData, name, need, got)
}

func checkPeriod(name string, period int) error {
	if period < 1 {
		return fmt.Errorf("%w: %s period must be positive, got %d", ports.ErrConfigurationError, name, period)
	}
	return nil
}
