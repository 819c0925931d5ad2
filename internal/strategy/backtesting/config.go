package backtesting

import (
	"fmt"
	"math"
	"strings"

	"github.com/loganko83/aitrading-sub000/internal/margin"
	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/risk"
)

// Config holds the engine parameters for one run. Fees and percentages are
// fractions (0.0004 = 4 bps).
type Config struct {
	Symbol          string
	InitialCapital  float64
	MakerFee        float64
	TakerFee        float64
	Leverage        int
	PositionSizePct float64
	RiskFreeRate    float64 // Annual, used for Sharpe/Sortino
	ATRPeriod       int     // Window of the rolling ATR used for default stops
	Risk            risk.Parameters
	MarginSchedule  margin.Schedule // nil selects the default tiers
}

// DefaultConfig returns a config with exchange-like defaults.
func DefaultConfig() Config {
	return Config{
		Symbol:          "BTCUSDT",
		InitialCapital:  10000,
		MakerFee:        0.0002,
		TakerFee:        0.0004,
		Leverage:        3,
		PositionSizePct: 0.10,
		RiskFreeRate:    0.02,
		ATRPeriod:       14,
		Risk:            risk.DefaultParameters(),
	}
}

// Validate reports every problem with the config at once.
func (c Config) Validate() error {
	var errs []string
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		errs = append(errs, fmt.Sprintf("initial capital must be positive, got %v", c.InitialCapital))
	}
	if !validFee(c.MakerFee) {
		errs = append(errs, fmt.Sprintf("maker fee must be in [0, 1), got %v", c.MakerFee))
	}
	if !validFee(c.TakerFee) {
		errs = append(errs, fmt.Sprintf("taker fee must be in [0, 1), got %v", c.TakerFee))
	}
	if c.Leverage < margin.MinLeverage || c.Leverage > margin.MaxLeverage {
		errs = append(errs, fmt.Sprintf("leverage must be within [%d, %d], got %d", margin.MinLeverage, margin.MaxLeverage, c.Leverage))
	}
	if !(c.PositionSizePct > 0 && c.PositionSizePct <= 1) {
		errs = append(errs, fmt.Sprintf("position size pct must be in (0, 1], got %v", c.PositionSizePct))
	}
	if math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0) {
		errs = append(errs, "risk free rate must be finite")
	}
	if c.ATRPeriod < 1 {
		errs = append(errs, fmt.Sprintf("ATR period must be at least 1, got %d", c.ATRPeriod))
	}
	if err := c.Risk.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.MarginSchedule != nil {
		if err := c.MarginSchedule.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: backtest config: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

func validFee(f float64) bool {
	return f >= 0 && f < 1
}
