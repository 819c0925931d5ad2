package sqlite

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "nested", "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

var start = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func sampleResult() *domain.BacktestResult {
	trades := []domain.Trade{
		{
			ID: 1, Symbol: "BTCUSDT", Direction: domain.Long,
			EntryTime: start, ExitTime: start.Add(2 * time.Hour),
			EntryPrice: 100, ExitPrice: 95, Quantity: 30, Leverage: 3,
			StopLoss: 95, TakeProfit: 110, EntryFee: 1.2, ExitFee: 1.14,
			GrossPnL: -150, PnL: -152.34, PnLPct: -15.234,
			CloseReason: domain.CloseReasonStopLoss,
		},
		{
			ID: 2, Symbol: "BTCUSDT", Direction: domain.Short,
			EntryTime: start.Add(3 * time.Hour), ExitTime: start.Add(5 * time.Hour),
			EntryPrice: 96, ExitPrice: 90, Quantity: 30, Leverage: 3,
			StopLoss: 99, TakeProfit: 90, EntryFee: 1.152, ExitFee: 1.08,
			GrossPnL: 180, PnL: 177.768, PnLPct: 18.5175,
			CloseReason: domain.CloseReasonTakeProfit,
		},
	}
	var equity []domain.EquityPoint
	var drawdown []domain.DrawdownPoint
	for i, v := range []float64{10000, 9900, 9847.66, 9950, 10025.43} {
		ts := start.Add(time.Duration(i) * time.Hour)
		equity = append(equity, domain.EquityPoint{Time: ts, Equity: v})
		drawdown = append(drawdown, domain.DrawdownPoint{Time: ts, Drawdown: math.Min(0, v-10000)})
	}
	return &domain.BacktestResult{
		StrategyName:   "trend_ema_9_21",
		Symbol:         "BTCUSDT",
		StartTime:      start,
		EndTime:        start.Add(5 * time.Hour),
		InitialCapital: 10000,
		FinalCapital:   10025.428,
		Trades:         trades,
		EquityCurve:    equity,
		DrawdownCurve:  drawdown,
		TotalTrades:    2,
		Metrics: domain.PerformanceMetrics{
			TotalReturn:    0.25428,
			SharpeRatio:    0.8,
			MaxDrawdownPct: 1.5234,
			WinRate:        50,
			ProfitFactor:   1.1669,
			Rating:         domain.RatingAverage,
		},
	}
}

func TestRepository_SaveAndFindRun(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	id, err := repo.SaveResult(ctx, sampleResult())
	require.NoError(t, err)
	assert.Len(t, id, 36)

	run, err := repo.FindRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "trend_ema_9_21", run.StrategyName)
	assert.Equal(t, "BTCUSDT", run.Symbol)
	assert.True(t, start.Equal(run.StartTime))
	assert.True(t, start.Add(5*time.Hour).Equal(run.EndTime))
	assert.Equal(t, 2, run.TotalTrades)
	assert.InDelta(t, 10025.428, run.FinalCapital, 1e-9)
	assert.InDelta(t, 0.25428, run.TotalReturnPct, 1e-12)
	assert.InDelta(t, 1.1669, run.ProfitFactor, 1e-12)
	assert.Equal(t, domain.RatingAverage, run.Rating)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestRepository_FindTrades(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	result := sampleResult()

	id, err := repo.SaveResult(ctx, result)
	require.NoError(t, err)

	trades, err := repo.FindTrades(ctx, id)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	for i, got := range trades {
		want := result.Trades[i]
		assert.True(t, want.EntryTime.Equal(got.EntryTime))
		assert.True(t, want.ExitTime.Equal(got.ExitTime))
		got.EntryTime, got.ExitTime = want.EntryTime, want.ExitTime
		assert.Equal(t, want, got)
	}

	none, err := repo.FindTrades(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_EquityCurve(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	result := sampleResult()

	id, err := repo.SaveResult(ctx, result)
	require.NoError(t, err)

	equity, drawdown, err := repo.FindEquityCurve(ctx, id)
	require.NoError(t, err)
	require.Len(t, equity, len(result.EquityCurve))
	require.Len(t, drawdown, len(result.DrawdownCurve))
	for i := range equity {
		assert.True(t, result.EquityCurve[i].Time.Equal(equity[i].Time))
		assert.Equal(t, result.EquityCurve[i].Equity, equity[i].Equity)
		assert.Equal(t, result.DrawdownCurve[i].Drawdown, drawdown[i].Drawdown)
	}
}

func TestRepository_UnboundedProfitFactor(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	result := sampleResult()
	result.Metrics.ProfitFactor = math.Inf(1)
	id, err := repo.SaveResult(ctx, result)
	require.NoError(t, err)

	run, err := repo.FindRun(ctx, id)
	require.NoError(t, err)
	assert.True(t, math.IsInf(run.ProfitFactor, 1))
}

func TestRepository_ListRunsNewestFirst(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	clock := start
	repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := repo.SaveResult(ctx, sampleResult())
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)

	all, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRepository_NotFound(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, err := repo.FindRun(ctx, "does-not-exist")
	assert.True(t, errors.Is(err, ports.ErrNotFound))

	err = repo.DeleteRun(ctx, "does-not-exist")
	assert.True(t, errors.Is(err, ports.ErrNotFound))

	_, err = repo.SaveResult(ctx, nil)
	assert.True(t, errors.Is(err, ports.ErrInvalidRequest))
}

func TestRepository_DeleteRunCascades(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	id, err := repo.SaveResult(ctx, sampleResult())
	require.NoError(t, err)
	require.NoError(t, repo.DeleteRun(ctx, id))

	trades, err := repo.FindTrades(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, trades)
	equity, _, err := repo.FindEquityCurve(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, equity)
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))
}
