package domain

import "time"

// PerformanceMetrics summarizes a completed backtest.
type PerformanceMetrics struct {
	TotalReturn      float64 // Percent
	AnnualizedReturn float64 // Percent
	NetProfit        float64
	TotalFees        float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // Percent
	AverageWin    float64 // Positive magnitude
	AverageLoss   float64 // Positive magnitude
	LargestWin    float64
	LargestLoss   float64
	ProfitFactor  float64 // +Inf when there are wins and no losses
	Expectancy    float64

	MaxDrawdown    float64 // Absolute, positive
	MaxDrawdownPct float64 // 0 - 100
	RecoveryFactor float64
	SharpeRatio    float64
	SortinoRatio   float64

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageTradeDuration time.Duration
	Exposure             float64 // Fraction of bars with an open position

	MonthlyReturns []MonthlyReturn
	Drawdowns      []DrawdownPeriod
	Rating         Rating
}

// MonthlyReturn is the realized net P&L of trades closed in a month.
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}

// DrawdownPeriod represents one peak-to-recovery episode of the equity curve.
type DrawdownPeriod struct {
	StartTime   time.Time
	EndTime     time.Time
	PeakValue   float64
	TroughValue float64
	Depth       float64 // Fraction of the peak
	Duration    time.Duration
	Recovered   bool
}
