package domain

import "time"

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// DrawdownPoint is equity minus the running maximum equity; always <= 0.
type DrawdownPoint struct {
	Time     time.Time
	Drawdown float64
}

// BacktestResult is the output of a single engine run.
type BacktestResult struct {
	StrategyName   string
	Symbol         string
	StartTime      time.Time
	EndTime        time.Time
	InitialCapital float64
	FinalCapital   float64
	Trades         []Trade
	EquityCurve    []EquityPoint
	DrawdownCurve  []DrawdownPoint

	TotalTrades     int
	TotalFees       float64
	RejectedSignals int
	Rejections      map[string]int // Rejection reason -> count
	MarginWarnings  int
	BarsInMarket    int

	Metrics PerformanceMetrics
}

// RunSummary is the persisted headline of a backtest run.
type RunSummary struct {
	ID             string
	StrategyName   string
	Symbol         string
	StartTime      time.Time
	EndTime        time.Time
	InitialCapital float64
	FinalCapital   float64
	TotalTrades    int
	TotalReturnPct float64
	SharpeRatio    float64
	MaxDrawdownPct float64
	WinRate        float64
	ProfitFactor   float64
	Rating         Rating
	CreatedAt      time.Time
}
