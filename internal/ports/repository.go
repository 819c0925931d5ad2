package ports

import (
	"context"

	"github.com/loganko83/aitrading-sub000/internal/domain"
)

// BacktestRepository defines the interface for storing and retrieving backtest runs.
type BacktestRepository interface {
	// SaveResult stores the run headline, its trades and equity curve and returns the run ID.
	SaveResult(ctx context.Context, result *domain.BacktestResult) (string, error)
	// FindRun retrieves a run summary by ID. Returns ErrNotFound if missing.
	FindRun(ctx context.Context, id string) (*domain.RunSummary, error)
	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error)
	// FindTrades returns the trades of a run ordered by trade sequence.
	FindTrades(ctx context.Context, runID string) ([]domain.Trade, error)
}
