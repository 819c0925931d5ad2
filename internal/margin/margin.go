// Package margin implements exchange-style leverage, margin and liquidation
// arithmetic over a tiered maintenance-margin schedule.
//
// Every function is pure: it reads only its arguments and the immutable
// default schedule, so it is safe to call from any number of goroutines.
package margin

import (
	"fmt"
	"math"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

const (
	MinLeverage = 1
	MaxLeverage = 125

	// HighRiskRatio flags a position whose margin ratio deserves attention.
	HighRiskRatio = 80.0
	// LiquidationRatio is the margin ratio at which the exchange liquidates.
	LiquidationRatio = 100.0
)

// ErrInvalidLeverage is returned for leverage outside [MinLeverage, MaxLeverage].
var ErrInvalidLeverage = fmt.Errorf("%w: leverage must be within [%d, %d]", ports.ErrConfigurationError, MinLeverage, MaxLeverage)

// Tier is one bracket of the maintenance-margin schedule.
type Tier struct {
	MaxNotional     float64 // Inclusive ceiling of the bracket
	MaxLeverage     int
	MaintenanceRate float64
}

// Schedule is an ordered table of tiers with ascending ceilings.
type Schedule []Tier

var defaultSchedule = Schedule{
	{MaxNotional: 50_000, MaxLeverage: 125, MaintenanceRate: 0.004},
	{MaxNotional: 250_000, MaxLeverage: 100, MaintenanceRate: 0.005},
	{MaxNotional: 1_000_000, MaxLeverage: 50, MaintenanceRate: 0.01},
	{MaxNotional: 10_000_000, MaxLeverage: 20, MaintenanceRate: 0.025},
	{MaxNotional: math.Inf(1), MaxLeverage: 10, MaintenanceRate: 0.05},
}

// DefaultSchedule returns a copy of the reference tier table.
func DefaultSchedule() Schedule {
	out := make(Schedule, len(defaultSchedule))
	copy(out, defaultSchedule)
	return out
}

// Validate checks that ceilings ascend and the last tier is unbounded.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: margin schedule is empty", ports.ErrConfigurationError)
	}
	for i, t := range s {
		if t.MaintenanceRate < 0 || t.MaintenanceRate >= 1 {
			return fmt.Errorf("%w: tier %d maintenance rate %.4f outside [0, 1)", ports.ErrConfigurationError, i, t.MaintenanceRate)
		}
		if t.MaxLeverage < MinLeverage || t.MaxLeverage > MaxLeverage {
			return fmt.Errorf("%w: tier %d max leverage %d outside [%d, %d]", ports.ErrConfigurationError, i, t.MaxLeverage, MinLeverage, MaxLeverage)
		}
		if i > 0 && t.MaxNotional <= s[i-1].MaxNotional {
			return fmt.Errorf("%w: tier %d ceiling %.2f not above previous %.2f", ports.ErrConfigurationError, i, t.MaxNotional, s[i-1].MaxNotional)
		}
	}
	if !math.IsInf(s[len(s)-1].MaxNotional, 1) {
		return fmt.Errorf("%w: last margin tier must be unbounded", ports.ErrConfigurationError)
	}
	return nil
}

// Lookup returns the maintenance rate and tier max leverage for a notional
// value: the first tier whose ceiling is not exceeded.
func (s Schedule) Lookup(notional float64) (rate float64, maxLeverage int) {
	notional = math.Abs(notional)
	for _, t := range s {
		if notional <= t.MaxNotional {
			return t.MaintenanceRate, t.MaxLeverage
		}
	}
	last := s[len(s)-1]
	return last.MaintenanceRate, last.MaxLeverage
}

// MaintenanceMargin returns notional × rate for size contracts at price.
func (s Schedule) MaintenanceMargin(size, price float64) float64 {
	notional := math.Abs(size * price)
	rate, _ := s.Lookup(notional)
	return notional * rate
}

// LiquidationPrice returns the isolated-margin liquidation price.
//
//	LONG:  entry × (1 − 1/leverage + mmr)
//	SHORT: entry × (1 + 1/leverage − mmr)
func (s Schedule) LiquidationPrice(entry float64, side domain.Direction, leverage int, notional float64) (float64, error) {
	if err := checkLeverage(leverage); err != nil {
		return 0, err
	}
	imr := 1 / float64(leverage)
	mmr, _ := s.Lookup(notional)
	switch side {
	case domain.Long:
		return entry * (1 - imr + mmr), nil
	case domain.Short:
		return entry * (1 + imr - mmr), nil
	default:
		return 0, fmt.Errorf("%w: liquidation price needs LONG or SHORT, got %q", ports.ErrInvalidRequest, side)
	}
}

// InitialMargin returns (size × price) / leverage.
func InitialMargin(size, price float64, leverage int) (float64, error) {
	if err := checkLeverage(leverage); err != nil {
		return 0, err
	}
	return math.Abs(size*price) / float64(leverage), nil
}

// MaintenanceMarginRate looks up the default schedule.
func MaintenanceMarginRate(notional float64) (float64, int) {
	return defaultSchedule.Lookup(notional)
}

// MaintenanceMargin uses the default schedule.
func MaintenanceMargin(size, price float64) float64 {
	return defaultSchedule.MaintenanceMargin(size, price)
}

// LiquidationPrice uses the default schedule.
func LiquidationPrice(entry float64, side domain.Direction, leverage int, notional float64) (float64, error) {
	return defaultSchedule.LiquidationPrice(entry, side, leverage, notional)
}

// MarginRatio returns maintMargin / marginBalance × 100. A non-positive
// balance is reported as LiquidationRatio.
func MarginRatio(maintMargin, marginBalance float64) float64 {
	if marginBalance <= 0 {
		return LiquidationRatio
	}
	return maintMargin / marginBalance * 100
}

// IsLiquidation reports whether ratio has reached the liquidation level.
func IsLiquidation(ratio float64) bool {
	return ratio >= LiquidationRatio
}

// IsHighRisk reports whether ratio is in the warning band or worse.
func IsHighRisk(ratio float64) bool {
	return ratio >= HighRiskRatio
}

// MaxPositionSize returns the largest quantity affordable with the balance:
// (balance × leverage × maxPositionPct) / price.
func MaxPositionSize(availableBalance, price float64, leverage int, maxPositionPct float64) (float64, error) {
	if err := checkLeverage(leverage); err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, nil
	}
	return availableBalance * float64(leverage) * maxPositionPct / price, nil
}

func checkLeverage(leverage int) error {
	if leverage < MinLeverage || leverage > MaxLeverage {
		return fmt.Errorf("%w (got %d)", ErrInvalidLeverage, leverage)
	}
	return nil
}
