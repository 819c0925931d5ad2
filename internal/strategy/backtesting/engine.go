// Package backtesting replays bars through a strategy with a single-position
// state machine and produces a BacktestResult.
package backtesting

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/margin"
	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/risk"
	"github.com/loganko83/aitrading-sub000/internal/strategy/analytics"
	"github.com/loganko83/aitrading-sub000/internal/strategy/indicators"
)

// ReasonInsufficientCapital counts entries skipped because capital could not
// fund a positive quantity.
const ReasonInsufficientCapital = "insufficient-capital"

// Engine runs one backtest. It owns its capital, position and validator and
// must not be shared or reused.
type Engine struct {
	cfg      Config
	schedule margin.Schedule
	logger   ports.Logger
	used     bool

	validator *risk.Validator
	atr       []float64
	capital   float64
	position  *domain.Position
	result    *domain.BacktestResult
}

// NewEngine validates cfg and returns an engine ready for a single Run.
func NewEngine(cfg Config, logger ports.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	schedule := cfg.MarginSchedule
	if schedule == nil {
		schedule = margin.DefaultSchedule()
	}
	return &Engine{cfg: cfg, schedule: schedule, logger: logger}, nil
}

// Run replays bars through strategy. Exits are checked before the strategy
// is consulted, stop-loss ahead of take-profit, and any position still open
// on the last bar is closed at its close price.
func (e *Engine) Run(ctx context.Context, strategy ports.Strategy, bars []domain.Bar) (*domain.BacktestResult, error) {
	if e.used {
		return nil, fmt.Errorf("%w: engine already ran; build a new one per run", ports.ErrStateViolation)
	}
	e.used = true

	if strategy == nil {
		return nil, fmt.Errorf("%w: strategy is required", ports.ErrConfigurationError)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: empty bar series", ports.ErrConfigurationError)
	}
	if idx, err := domain.ValidateSeries(bars); err != nil {
		return nil, &ports.BarError{Index: idx, Time: bars[idx].Time, Err: ports.ErrConfigurationError, Msg: err.Error()}
	}

	validator, err := risk.NewValidator(e.cfg.Risk, e.cfg.InitialCapital, e.schedule)
	if err != nil {
		return nil, err
	}
	e.validator = validator
	e.atr = indicators.RollingATR(bars, e.cfg.ATRPeriod)
	e.capital = e.cfg.InitialCapital
	e.result = &domain.BacktestResult{
		StrategyName:   strategy.Name(),
		Symbol:         e.cfg.Symbol,
		StartTime:      bars[0].Time,
		EndTime:        bars[len(bars)-1].Time,
		InitialCapital: e.cfg.InitialCapital,
		Rejections:     make(map[string]int),
		EquityCurve:    make([]domain.EquityPoint, 0, len(bars)),
		DrawdownCurve:  make([]domain.DrawdownPoint, 0, len(bars)),
	}

	e.logger.Info(ctx, "Backtest started", ports.Fields{
		"strategy": strategy.Name(),
		"symbol":   e.cfg.Symbol,
		"bars":     len(bars),
		"capital":  e.cfg.InitialCapital,
		"leverage": e.cfg.Leverage,
	})

	last := len(bars) - 1
	peak := math.Inf(-1)
	for i, bar := range bars {
		if i > 0 && !sameUTCDay(bar, bars[i-1]) {
			e.validator.ResetDailyTracking()
		}

		if e.position != nil {
			if err := e.checkExits(ctx, i, bar); err != nil {
				return nil, err
			}
		}

		if e.position == nil && i < last {
			// Full slice expression: an append by the strategy must not reach bars[i+1].
			signal := strategy.Evaluate(ctx, bars[:i+1:i+1], bar.Close)
			if signal.ShouldEnter {
				if err := e.tryEnter(ctx, i, bar, signal); err != nil {
					return nil, err
				}
			}
		}

		if i == last && e.position != nil {
			if err := e.closePosition(ctx, i, bar, bar.Close, domain.CloseReasonEndOfData); err != nil {
				return nil, err
			}
		}

		equity := e.capital
		if e.position != nil {
			e.result.BarsInMarket++
			e.checkMargin(ctx, i, bar)
			equity += e.position.UnrealizedPnL(bar.Close)
		}
		peak = math.Max(peak, equity)
		e.result.EquityCurve = append(e.result.EquityCurve, domain.EquityPoint{Time: bar.Time, Equity: equity})
		e.result.DrawdownCurve = append(e.result.DrawdownCurve, domain.DrawdownPoint{Time: bar.Time, Drawdown: equity - peak})
	}

	res := e.result
	res.FinalCapital = e.capital
	res.TotalTrades = len(res.Trades)
	for _, t := range res.Trades {
		res.TotalFees += t.Fees()
	}
	res.Metrics = analytics.Calculate(res, e.cfg.RiskFreeRate)

	e.logger.Info(ctx, "Backtest finished", ports.Fields{
		"strategy":      res.StrategyName,
		"trades":        res.TotalTrades,
		"rejected":      res.RejectedSignals,
		"final_capital": res.FinalCapital,
		"return_pct":    res.Metrics.TotalReturn,
		"sharpe":        res.Metrics.SharpeRatio,
		"rating":        res.Metrics.Rating,
	})
	return res, nil
}

func (e *Engine) checkExits(ctx context.Context, i int, bar domain.Bar) error {
	switch {
	case e.position.StopTouched(bar):
		return e.closePosition(ctx, i, bar, e.position.StopLoss, domain.CloseReasonStopLoss)
	case e.position.TargetTouched(bar):
		return e.closePosition(ctx, i, bar, e.position.TakeProfit, domain.CloseReasonTakeProfit)
	}
	return nil
}

func (e *Engine) tryEnter(ctx context.Context, i int, bar domain.Bar, signal domain.Signal) error {
	dir := signal.Direction
	if dir != domain.Long && dir != domain.Short {
		return nil
	}
	entry := signal.EntryPrice
	if math.IsNaN(entry) || entry <= 0 {
		entry = bar.Close
	}

	qty, err := margin.MaxPositionSize(e.capital, entry, e.cfg.Leverage, e.cfg.PositionSizePct)
	if err != nil {
		return &ports.BarError{Index: i, Time: bar.Time, Err: ports.ErrConfigurationError, Msg: err.Error()}
	}
	if !(qty > 0) {
		e.recordRejection(ctx, i, bar, ReasonInsufficientCapital, fmt.Sprintf("capital %.2f cannot fund a position", e.capital))
		return nil
	}

	// Missing or non-finite levels fall back to the ATR-derived ones.
	stop, target := e.validator.Levels(entry, e.atr[i], dir)
	if p := signal.StopLoss; p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) {
		stop = *p
	}
	if p := signal.TakeProfit; p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) {
		target = *p
	}

	assessment, err := e.validator.ValidateTrade(risk.Proposal{
		Direction:  dir,
		EntryPrice: entry,
		Quantity:   qty,
		Leverage:   e.cfg.Leverage,
		StopLoss:   stop,
		TakeProfit: target,
	})
	var rejection *risk.Rejection
	if errors.As(err, &rejection) {
		e.recordRejection(ctx, i, bar, rejection.Reason, rejection.Detail)
		return nil
	}
	if err != nil {
		return &ports.BarError{Index: i, Time: bar.Time, Err: ports.ErrInvalidRequest, Msg: err.Error()}
	}

	return e.openPosition(ctx, i, bar, &domain.Position{
		EntryIndex:       i,
		EntryTime:        bar.Time,
		EntryPrice:       entry,
		Direction:        dir,
		Quantity:         qty,
		Leverage:         e.cfg.Leverage,
		StopLoss:         stop,
		TakeProfit:       target,
		InitialMargin:    assessment.RequiredMargin,
		LiquidationPrice: assessment.LiquidationPrice,
	}, signal)
}

func (e *Engine) openPosition(ctx context.Context, i int, bar domain.Bar, pos *domain.Position, signal domain.Signal) error {
	if e.position != nil {
		return &ports.BarError{Index: i, Time: bar.Time, Err: ports.ErrStateViolation, Msg: "open requested while a position is open"}
	}
	pos.Fees = pos.Notional(pos.EntryPrice) * e.cfg.TakerFee
	e.capital -= pos.Fees
	e.position = pos
	e.validator.PositionOpened()

	e.logger.Debug(ctx, "Position opened", ports.Fields{
		"bar":        i,
		"direction":  pos.Direction,
		"entry":      pos.EntryPrice,
		"quantity":   pos.Quantity,
		"stop":       pos.StopLoss,
		"target":     pos.TakeProfit,
		"fee":        pos.Fees,
		"confidence": signal.Confidence,
		"reason":     signal.Reasoning,
	})
	return nil
}

func (e *Engine) closePosition(ctx context.Context, i int, bar domain.Bar, price float64, reason domain.CloseReason) error {
	pos := e.position
	if pos == nil {
		return &ports.BarError{Index: i, Time: bar.Time, Err: ports.ErrStateViolation, Msg: "close requested while flat"}
	}

	gross := pos.UnrealizedPnL(price)
	exitFee := pos.Notional(price) * e.cfg.TakerFee
	net := gross - pos.Fees - exitFee
	e.capital += gross - exitFee

	pnlPct := 0.0
	if pos.InitialMargin > 0 {
		pnlPct = net / pos.InitialMargin * 100
	}
	trade := domain.Trade{
		ID:          len(e.result.Trades) + 1,
		Symbol:      e.cfg.Symbol,
		Direction:   pos.Direction,
		EntryTime:   pos.EntryTime,
		ExitTime:    bar.Time,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   price,
		Quantity:    pos.Quantity,
		Leverage:    pos.Leverage,
		StopLoss:    pos.StopLoss,
		TakeProfit:  pos.TakeProfit,
		EntryFee:    pos.Fees,
		ExitFee:     exitFee,
		GrossPnL:    gross,
		PnL:         net,
		PnLPct:      pnlPct,
		CloseReason: reason,
	}
	e.result.Trades = append(e.result.Trades, trade)
	e.position = nil

	e.validator.UpdateCapital(net)
	if err := e.validator.PositionClosed(); err != nil {
		return &ports.BarError{Index: i, Time: bar.Time, Err: ports.ErrStateViolation, Msg: err.Error()}
	}

	e.logger.Debug(ctx, "Position closed", ports.Fields{
		"bar":     i,
		"trade":   trade.ID,
		"reason":  reason,
		"exit":    price,
		"pnl":     net,
		"capital": e.capital,
	})
	return nil
}

// checkMargin flags bars where the margin ratio at the close enters the
// high-risk band. It never closes the position.
func (e *Engine) checkMargin(ctx context.Context, i int, bar domain.Bar) {
	pos := e.position
	maint := e.schedule.MaintenanceMargin(pos.Quantity, bar.Close)
	ratio := margin.MarginRatio(maint, pos.InitialMargin+pos.UnrealizedPnL(bar.Close))
	if !margin.IsHighRisk(ratio) {
		return
	}
	e.result.MarginWarnings++
	e.logger.Warn(ctx, "Margin ratio in high-risk band", ports.Fields{
		"bar":         i,
		"time":        bar.Time,
		"ratio":       ratio,
		"liquidation": margin.IsLiquidation(ratio),
		"liq_price":   pos.LiquidationPrice,
	})
}

func (e *Engine) recordRejection(ctx context.Context, i int, bar domain.Bar, reason, detail string) {
	e.result.RejectedSignals++
	e.result.Rejections[reason]++
	e.logger.Debug(ctx, "Entry rejected", ports.Fields{
		"bar":    i,
		"time":   bar.Time,
		"reason": reason,
		"detail": detail,
	})
}

func sameUTCDay(a, b domain.Bar) bool {
	ay, am, ad := a.Time.UTC().Date()
	by, bm, bd := b.Time.UTC().Date()
	return ay == by && am == bm && ad == bd
}
