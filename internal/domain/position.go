package domain

import "time"

// Position represents the single open position of a backtest run.
type Position struct {
	EntryIndex       int       // Bar index at which the position was opened
	EntryTime        time.Time // Timestamp of the entry bar
	EntryPrice       float64
	Direction        Direction
	Quantity         float64
	Leverage         int
	StopLoss         float64
	TakeProfit       float64
	Fees             float64 // Fees charged so far (entry fee)
	InitialMargin    float64 // Notional / leverage at entry
	LiquidationPrice float64
}

// Notional returns the exposure of the position at the given price.
func (p *Position) Notional(price float64) float64 {
	return p.Quantity * price
}

// UnrealizedPnL returns the gross profit or loss at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return p.Direction.Sign() * (price - p.EntryPrice) * p.Quantity
}

// StopTouched reports whether the bar reached the stop-loss level.
func (p *Position) StopTouched(b Bar) bool {
	if p.StopLoss <= 0 {
		return false
	}
	if p.Direction == Short {
		return b.High >= p.StopLoss
	}
	return b.Low <= p.StopLoss
}

// TargetTouched reports whether the bar reached the take-profit level.
func (p *Position) TargetTouched(b Bar) bool {
	if p.TakeProfit <= 0 {
		return false
	}
	if p.Direction == Short {
		return b.Low <= p.TakeProfit
	}
	return b.High >= p.TakeProfit
}
