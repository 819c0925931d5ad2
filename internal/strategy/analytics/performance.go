// Package analytics derives performance metrics from a finished backtest.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/stats"
)

// TradingDaysPerYear annualizes daily Sharpe and Sortino ratios.
const TradingDaysPerYear = 252

// Calculate computes the metrics of result. It reads the trades, the equity
// curve and the capital fields and has no side effects.
func Calculate(result *domain.BacktestResult, riskFreeRate float64) domain.PerformanceMetrics {
	m := domain.PerformanceMetrics{Rating: domain.RatingPoor}
	if result == nil {
		return m
	}

	m.NetProfit = result.FinalCapital - result.InitialCapital
	r := stats.SafeDiv(m.NetProfit, result.InitialCapital, 0)
	m.TotalReturn = r * 100
	m.AnnualizedReturn = annualize(r, result.EndTime.Sub(result.StartTime)) * 100

	analyzeTrades(&m, result.Trades)
	analyzeEquity(&m, result.EquityCurve)

	m.RecoveryFactor = stats.SafeDiv(m.NetProfit, m.MaxDrawdown, 0)
	m.Exposure = stats.SafeDiv(float64(result.BarsInMarket), float64(len(result.EquityCurve)), 0)

	excess := excessReturns(result.EquityCurve, riskFreeRate)
	m.SharpeRatio = sharpe(excess)
	m.SortinoRatio = sortino(excess)
	m.Rating = Rate(m.SharpeRatio, m.WinRate, m.ProfitFactor)
	return m
}

// Rate grades a strategy from its Sharpe ratio, win rate (percent) and profit factor.
func Rate(sharpe, winRate, profitFactor float64) domain.Rating {
	switch {
	case sharpe > 2 && winRate > 60 && profitFactor > 2:
		return domain.RatingExcellent
	case sharpe > 1 && winRate > 50 && profitFactor > 1.5:
		return domain.RatingGood
	case sharpe > 0.5 && winRate > 40 && profitFactor > 1:
		return domain.RatingAverage
	default:
		return domain.RatingPoor
	}
}

// annualize compounds r over the elapsed period to a yearly rate.
func annualize(r float64, elapsed time.Duration) float64 {
	days := elapsed.Hours() / 24
	if days <= 0 {
		return 0
	}
	if 1+r <= 0 {
		return -1
	}
	return math.Pow(1+r, 365/days) - 1
}

func analyzeTrades(m *domain.PerformanceMetrics, trades []domain.Trade) {
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	var grossWin, grossLoss float64
	var wins, losses int
	var totalDuration time.Duration
	monthly := make(map[time.Time]float64)

	for _, t := range trades {
		m.TotalFees += t.Fees()
		totalDuration += t.Duration()

		y, mo, _ := t.ExitTime.UTC().Date()
		monthly[time.Date(y, mo, 1, 0, 0, 0, 0, time.UTC)] += t.PnL

		switch {
		case t.PnL > 0:
			m.WinningTrades++
			grossWin += t.PnL
			m.LargestWin = math.Max(m.LargestWin, t.PnL)
			wins++
			losses = 0
		case t.PnL < 0:
			m.LosingTrades++
			grossLoss -= t.PnL
			m.LargestLoss = math.Max(m.LargestLoss, -t.PnL)
			losses++
			wins = 0
		default:
			wins, losses = 0, 0
		}
		if wins > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = wins
		}
		if losses > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = losses
		}
	}

	winRate := float64(m.WinningTrades) / float64(m.TotalTrades)
	m.WinRate = winRate * 100
	m.AverageWin = stats.SafeDiv(grossWin, float64(m.WinningTrades), 0)
	m.AverageLoss = stats.SafeDiv(grossLoss, float64(m.LosingTrades), 0)
	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		m.ProfitFactor = math.Inf(1)
	}
	m.Expectancy = winRate*m.AverageWin - (1-winRate)*m.AverageLoss
	m.AverageTradeDuration = totalDuration / time.Duration(len(trades))

	m.MonthlyReturns = make([]domain.MonthlyReturn, 0, len(monthly))
	for month, pnl := range monthly {
		m.MonthlyReturns = append(m.MonthlyReturns, domain.MonthlyReturn{Month: month, Return: pnl})
	}
	sort.Slice(m.MonthlyReturns, func(i, j int) bool {
		return m.MonthlyReturns[i].Month.Before(m.MonthlyReturns[j].Month)
	})
}

// analyzeEquity walks the equity curve once for the maximum drawdown and the
// individual drawdown episodes. The percentage is taken against the running
// peak at the trough.
func analyzeEquity(m *domain.PerformanceMetrics, curve []domain.EquityPoint) {
	if len(curve) == 0 {
		return
	}
	peak := curve[0].Equity
	peakTime := curve[0].Time
	var current *domain.DrawdownPeriod

	for _, p := range curve {
		if p.Equity >= peak {
			if current != nil {
				current.EndTime = p.Time
				current.Duration = p.Time.Sub(current.StartTime)
				current.Recovered = true
				m.Drawdowns = append(m.Drawdowns, *current)
				current = nil
			}
			peak, peakTime = p.Equity, p.Time
			continue
		}

		dd := peak - p.Equity
		if dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
			m.MaxDrawdownPct = math.Min(100, stats.SafeDiv(dd, peak, 1)*100)
		}
		if current == nil {
			current = &domain.DrawdownPeriod{StartTime: peakTime, PeakValue: peak, TroughValue: p.Equity}
		}
		if p.Equity < current.TroughValue {
			current.TroughValue = p.Equity
		}
		current.Depth = stats.SafeDiv(current.PeakValue-current.TroughValue, current.PeakValue, 1)
	}

	if current != nil {
		last := curve[len(curve)-1].Time
		current.EndTime = last
		current.Duration = last.Sub(current.StartTime)
		m.Drawdowns = append(m.Drawdowns, *current)
	}
}

// excessReturns resamples the curve to daily closes and subtracts the daily
// risk-free rate from each simple return.
func excessReturns(curve []domain.EquityPoint, riskFreeRate float64) []float64 {
	returns := stats.PctChange(stats.DailyCloses(curve))
	daily := riskFreeRate / TradingDaysPerYear
	for i := range returns {
		returns[i] -= daily
	}
	return returns
}

func sharpe(excess []float64) float64 {
	if len(excess) < 2 {
		return 0
	}
	return finite(math.Sqrt(TradingDaysPerYear) * stats.SafeDiv(stats.Mean(excess), stats.StdDev(excess), 0))
}

func sortino(excess []float64) float64 {
	if len(excess) < 2 {
		return 0
	}
	var downside []float64
	for _, r := range excess {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	return finite(math.Sqrt(TradingDaysPerYear) * stats.SafeDiv(stats.Mean(excess), stats.StdDev(downside), 0))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
