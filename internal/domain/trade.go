package domain

import "time"

// Trade represents a closed position. It is never modified after creation.
type Trade struct {
	ID          int // Sequence number within the run, starting at 1
	Symbol      string
	Direction   Direction
	EntryTime   time.Time
	ExitTime    time.Time
	EntryPrice  float64
	ExitPrice   float64
	Quantity    float64
	Leverage    int
	StopLoss    float64
	TakeProfit  float64
	EntryFee    float64
	ExitFee     float64
	GrossPnL    float64
	PnL         float64 // Net of entry and exit fees
	PnLPct      float64 // Net P&L as percent of the initial margin
	CloseReason CloseReason
}

// Fees returns the total fees paid for the trade.
func (t Trade) Fees() float64 {
	return t.EntryFee + t.ExitFee
}

// Duration returns how long the position was held.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
