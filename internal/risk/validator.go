package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/margin"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

// Rejection reasons, in the order the checks run.
const (
	ReasonMaxOpenPositions = "max-open-positions"
	ReasonMaxLeverage      = "max-leverage"
	ReasonDailyLossLimit   = "daily-loss-limit"
	ReasonMaxDrawdown      = "max-drawdown"
	ReasonRiskReward       = "risk-reward"
	ReasonRiskPerTrade     = "risk-per-trade"
	ReasonMarginLimit      = "margin-limit"
)

// FallbackATRPct is the volatility assumed when ATR is zero or undefined.
const FallbackATRPct = 0.02

// tolerance absorbs float noise on the ratio comparisons so that a position
// sized exactly at a limit is not rejected by a rounding error.
const tolerance = 1e-9

// Parameters holds risk limits for one run. Percentages are fractions.
type Parameters struct {
	MaxPositionSizePct      float64 `yaml:"max_position_size_pct"`
	MaxRiskPerTradePct      float64 `yaml:"max_risk_per_trade_pct"`
	MaxDailyLossPct         float64 `yaml:"max_daily_loss_pct"`
	MaxDrawdownPct          float64 `yaml:"max_drawdown_pct"`
	StopLossATRMultiplier   float64 `yaml:"stop_loss_atr_multiplier"`
	TakeProfitATRMultiplier float64 `yaml:"take_profit_atr_multiplier"`
	MinRiskRewardRatio      float64 `yaml:"min_risk_reward_ratio"`
	MaxOpenPositions        int     `yaml:"max_open_positions"`
	MaxLeverage             int     `yaml:"max_leverage"`
}

// DefaultParameters returns the conservative default limits.
func DefaultParameters() Parameters {
	return Parameters{
		MaxPositionSizePct:      0.10,
		MaxRiskPerTradePct:      0.02,
		MaxDailyLossPct:         0.05,
		MaxDrawdownPct:          0.20,
		StopLossATRMultiplier:   2.0,
		TakeProfitATRMultiplier: 3.0,
		MinRiskRewardRatio:      1.5,
		MaxOpenPositions:        1,
		MaxLeverage:             20,
	}
}

// Validate reports every invalid field at once.
func (p Parameters) Validate() error {
	var errs []string
	fraction := func(name string, v float64) {
		if math.IsNaN(v) || v <= 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be in (0, 1], got %v", name, v))
		}
	}
	fraction("max position size pct", p.MaxPositionSizePct)
	fraction("max risk per trade pct", p.MaxRiskPerTradePct)
	fraction("max daily loss pct", p.MaxDailyLossPct)
	fraction("max drawdown pct", p.MaxDrawdownPct)
	if !(p.StopLossATRMultiplier > 0) {
		errs = append(errs, fmt.Sprintf("stop loss ATR multiplier must be positive, got %v", p.StopLossATRMultiplier))
	}
	if !(p.TakeProfitATRMultiplier > 0) {
		errs = append(errs, fmt.Sprintf("take profit ATR multiplier must be positive, got %v", p.TakeProfitATRMultiplier))
	}
	if math.IsNaN(p.MinRiskRewardRatio) || p.MinRiskRewardRatio < 0 {
		errs = append(errs, fmt.Sprintf("min risk/reward ratio must be non-negative, got %v", p.MinRiskRewardRatio))
	}
	if p.MaxOpenPositions < 1 {
		errs = append(errs, fmt.Sprintf("max open positions must be at least 1, got %d", p.MaxOpenPositions))
	}
	if p.MaxLeverage < margin.MinLeverage || p.MaxLeverage > margin.MaxLeverage {
		errs = append(errs, fmt.Sprintf("max leverage must be within [%d, %d], got %d", margin.MinLeverage, margin.MaxLeverage, p.MaxLeverage))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: invalid risk parameters: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

// Proposal describes an entry the engine wants to take.
type Proposal struct {
	Direction  domain.Direction
	EntryPrice float64
	Quantity   float64
	Leverage   int
	StopLoss   float64
	TakeProfit float64
}

// Assessment is the derived risk picture of an accepted proposal.
type Assessment struct {
	PositionValue    float64
	RiskAmount       float64
	RewardAmount     float64
	RiskRewardRatio  float64
	RiskPct          float64
	RequiredMargin   float64
	LiquidationPrice float64
}

// Rejection is returned when a proposal fails one of the checks.
type Rejection struct {
	Reason string
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s: %s", ports.ErrValidationRejected, r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() error { return ports.ErrValidationRejected }

// Stats is a read-only view of the validator's counters.
type Stats struct {
	Capital         float64
	PeakCapital     float64
	DailyPnL        float64
	Drawdown        float64
	OpenPositions   int
	TradesValidated int
	TradesRejected  int
}

// Validator gates entries against the risk limits of a single run. It is not
// safe for concurrent use; build one per run.
type Validator struct {
	params         Parameters
	schedule       margin.Schedule
	initialCapital float64

	capital       float64
	peakCapital   float64
	dailyPnL      float64
	openPositions int
	validated     int
	rejected      int
}

// NewValidator creates a validator seeded with the run's initial capital.
// A nil schedule selects the default margin tiers.
func NewValidator(params Parameters, initialCapital float64, schedule margin.Schedule) (*Validator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !(initialCapital > 0) || math.IsInf(initialCapital, 0) {
		return nil, fmt.Errorf("%w: initial capital must be positive, got %v", ports.ErrConfigurationError, initialCapital)
	}
	if schedule == nil {
		schedule = margin.DefaultSchedule()
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	return &Validator{
		params:         params,
		schedule:       schedule,
		initialCapital: initialCapital,
		capital:        initialCapital,
		peakCapital:    initialCapital,
	}, nil
}

// Parameters returns the limits the validator was built with.
func (v *Validator) Parameters() Parameters {
	return v.params
}

// ValidateTrade runs the checks in order and returns the first failure as a
// *Rejection. Errors that are not rejections indicate a malformed proposal.
func (v *Validator) ValidateTrade(p Proposal) (*Assessment, error) {
	if p.Direction != domain.Long && p.Direction != domain.Short {
		return nil, fmt.Errorf("%w: proposal direction must be LONG or SHORT, got %q", ports.ErrInvalidRequest, p.Direction)
	}
	if !(p.EntryPrice > 0) || !(p.Quantity > 0) {
		return nil, fmt.Errorf("%w: proposal needs positive price and quantity (price=%v qty=%v)", ports.ErrInvalidRequest, p.EntryPrice, p.Quantity)
	}
	if !isFinite(p.StopLoss) || !isFinite(p.TakeProfit) {
		return nil, fmt.Errorf("%w: proposal levels must be finite (stop=%v target=%v)", ports.ErrInvalidRequest, p.StopLoss, p.TakeProfit)
	}

	if v.openPositions >= v.params.MaxOpenPositions {
		return nil, v.reject(ReasonMaxOpenPositions, "%d open, limit %d", v.openPositions, v.params.MaxOpenPositions)
	}
	if p.Leverage > v.params.MaxLeverage {
		return nil, v.reject(ReasonMaxLeverage, "leverage %d exceeds %d", p.Leverage, v.params.MaxLeverage)
	}
	if limit := -v.params.MaxDailyLossPct * v.initialCapital; v.dailyPnL <= limit {
		return nil, v.reject(ReasonDailyLossLimit, "daily P&L %.2f at or below %.2f", v.dailyPnL, limit)
	}
	if dd := v.drawdown(); dd >= v.params.MaxDrawdownPct {
		return nil, v.reject(ReasonMaxDrawdown, "drawdown %.4f at or above %.4f", dd, v.params.MaxDrawdownPct)
	}

	sign := p.Direction.Sign()
	a := &Assessment{
		PositionValue: p.Quantity * p.EntryPrice,
		RiskAmount:    sign * (p.EntryPrice - p.StopLoss) * p.Quantity,
		RewardAmount:  sign * (p.TakeProfit - p.EntryPrice) * p.Quantity,
	}
	// A stop at or beyond the entry leaves no measurable risk; rr stays 0.
	if a.RiskAmount > 0 {
		a.RiskRewardRatio = a.RewardAmount / a.RiskAmount
	}
	if a.RiskRewardRatio+tolerance < v.params.MinRiskRewardRatio {
		return nil, v.reject(ReasonRiskReward, "risk/reward %.3f below %.3f", a.RiskRewardRatio, v.params.MinRiskRewardRatio)
	}

	if v.capital > 0 {
		a.RiskPct = a.RiskAmount / v.capital
	} else {
		a.RiskPct = math.Inf(1)
	}
	if a.RiskPct > v.params.MaxRiskPerTradePct+tolerance {
		return nil, v.reject(ReasonRiskPerTrade, "risk %.4f of capital exceeds %.4f", a.RiskPct, v.params.MaxRiskPerTradePct)
	}

	required, err := margin.InitialMargin(p.Quantity, p.EntryPrice, p.Leverage)
	if err != nil {
		return nil, err
	}
	a.RequiredMargin = required
	if limit := v.capital * v.params.MaxPositionSizePct; required > limit*(1+tolerance) {
		return nil, v.reject(ReasonMarginLimit, "margin %.2f exceeds %.2f", required, limit)
	}

	a.LiquidationPrice, err = v.schedule.LiquidationPrice(p.EntryPrice, p.Direction, p.Leverage, a.PositionValue)
	if err != nil {
		return nil, err
	}
	v.validated++
	return a, nil
}

// Levels derives stop-loss and take-profit prices from ATR. A non-positive
// or undefined ATR is replaced by FallbackATRPct of the entry price.
func (v *Validator) Levels(entry, atr float64, dir domain.Direction) (stop, target float64) {
	if math.IsNaN(atr) || atr <= 0 {
		atr = entry * FallbackATRPct
	}
	sign := dir.Sign()
	stop = entry - sign*atr*v.params.StopLossATRMultiplier
	target = entry + sign*atr*v.params.TakeProfitATRMultiplier
	return stop, target
}

// UpdateCapital books the net P&L of a closed trade.
func (v *Validator) UpdateCapital(pnl float64) {
	v.capital += pnl
	v.dailyPnL += pnl
	if v.capital > v.peakCapital {
		v.peakCapital = v.capital
	}
}

// ResetDailyTracking zeroes the daily P&L. The caller picks the day boundary.
func (v *Validator) ResetDailyTracking() {
	v.dailyPnL = 0
}

// PositionOpened records an accepted entry.
func (v *Validator) PositionOpened() {
	v.openPositions++
}

// PositionClosed records an exit.
func (v *Validator) PositionClosed() error {
	if v.openPositions == 0 {
		return fmt.Errorf("%w: position closed with none open", ports.ErrStateViolation)
	}
	v.openPositions--
	return nil
}

// Snapshot returns the current counters.
func (v *Validator) Snapshot() Stats {
	return Stats{
		Capital:         v.capital,
		PeakCapital:     v.peakCapital,
		DailyPnL:        v.dailyPnL,
		Drawdown:        v.drawdown(),
		OpenPositions:   v.openPositions,
		TradesValidated: v.validated,
		TradesRejected:  v.rejected,
	}
}

func (v *Validator) drawdown() float64 {
	if v.peakCapital <= 0 {
		return 1
	}
	return (v.peakCapital - v.capital) / v.peakCapital
}

func (v *Validator) reject(reason, format string, args ...interface{}) error {
	v.rejected++
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
