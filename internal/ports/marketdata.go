package ports

import (
	"context"
	"time"

	"github.com/loganko83/aitrading-sub000/internal/domain"
)

// BarSource supplies an ordered, finite bar series for a backtest.
type BarSource interface {
	// LoadBars returns bars for symbol/interval within [start, end], ascending.
	// A zero start or end leaves that side of the range open.
	LoadBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error)
}
