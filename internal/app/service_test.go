package app

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganko83/aitrading-sub000/config"
	"github.com/loganko83/aitrading-sub000/internal/adapters/barstore"
	"github.com/loganko83/aitrading-sub000/internal/adapters/binanceclient"
	"github.com/loganko83/aitrading-sub000/internal/adapters/synthetic"
	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/strategy/backtesting"
	"github.com/loganko83/aitrading-sub000/internal/strategy/optimization"
)

// Mock implementations
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockStrategy struct{}

func (mockStrategy) Name() string { return "mock" }

func (mockStrategy) Evaluate(ctx context.Context, window []domain.Bar, currentPrice float64) domain.Signal {
	return domain.Signal{
		ShouldEnter: true,
		Direction:   domain.Long,
		Confidence:  1,
		StopLoss:    domain.Price(currentPrice - 1),
		TakeProfit:  domain.Price(currentPrice + 2),
	}
}

type mockSource struct {
	bars  []domain.Bar
	err   error
	calls int
}

func (m *mockSource) LoadBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	m.calls++
	return m.bars, m.err
}

type mockRepo struct {
	saved   []*domain.BacktestResult
	saveErr error
}

func (m *mockRepo) SaveResult(ctx context.Context, result *domain.BacktestResult) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saved = append(m.saved, result)
	return "run-1", nil
}

func (m *mockRepo) FindRun(ctx context.Context, id string) (*domain.RunSummary, error) {
	return nil, ports.ErrNotFound
}

func (m *mockRepo) ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	return nil, nil
}

func (m *mockRepo) FindTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	return nil, nil
}

func waveBars(n int) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	prev := 100.0
	for i := range bars {
		c := 100 + 4*math.Sin(float64(i)/6)
		bars[i] = domain.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   prev,
			High:   math.Max(prev, c) + 0.3,
			Low:    math.Min(prev, c) - 0.3,
			Close:  c,
			Volume: 5,
		}
		prev = c
	}
	return bars
}

func testConfig() *config.Config {
	return &config.Config{
		Symbol:        "BTCUSDT",
		Interval:      "1h",
		BarSource:     config.SourceSynthetic,
		SyntheticSeed: 7,
		Backtest:      backtesting.DefaultConfig(),
		Strategy:      "oscillator",
		DBPath:        "unused.db",
	}
}

func TestNewBacktestService(t *testing.T) {
	log := &mockLogger{}
	src := &mockSource{}

	_, err := NewBacktestService(nil, log, src, nil)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))
	_, err = NewBacktestService(testConfig(), nil, src, nil)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))
	_, err = NewBacktestService(testConfig(), log, nil, nil)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))

	bad := testConfig()
	bad.Backtest.InitialCapital = 0
	_, err = NewBacktestService(bad, log, src, nil)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))

	svc, err := NewBacktestService(testConfig(), log, src, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestRunStrategy_PersistsAndWritesLedger(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.TradesCSV = filepath.Join(t.TempDir(), "trades.csv")
	log := &mockLogger{}
	src := &mockSource{bars: waveBars(200)}
	repo := &mockRepo{}

	svc, err := NewBacktestService(cfg, log, src, repo)
	require.NoError(t, err)

	report, err := svc.RunStrategy(ctx, mockStrategy{})
	require.NoError(t, err)
	require.NotNil(t, report.Result)

	assert.Equal(t, "run-1", report.RunID)
	require.Len(t, repo.saved, 1)
	assert.Same(t, report.Result, repo.saved[0])
	assert.Equal(t, "mock", report.Result.StrategyName)
	assert.Equal(t, 1, src.calls)

	raw, err := os.ReadFile(cfg.TradesCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, len(report.Result.Trades)+1, "header plus one row per trade")

	assert.Contains(t, log.infoMsgs, "Bars loaded")
	assert.Contains(t, log.infoMsgs, "Backtest summary")
	assert.Contains(t, log.infoMsgs, "Backtest result saved")
	assert.Contains(t, log.infoMsgs, "Trade ledger written")
}

func TestRunStrategy_WithoutRepository(t *testing.T) {
	svc, err := NewBacktestService(testConfig(), &mockLogger{}, &mockSource{bars: waveBars(50)}, nil)
	require.NoError(t, err)

	report, err := svc.RunStrategy(context.Background(), mockStrategy{})
	require.NoError(t, err)
	assert.Empty(t, report.RunID)
	assert.NotNil(t, report.Result)
}

func TestRunStrategy_SourceFailures(t *testing.T) {
	ctx := context.Background()

	svc, err := NewBacktestService(testConfig(), &mockLogger{}, &mockSource{err: ports.ErrNotFound}, nil)
	require.NoError(t, err)
	_, err = svc.RunStrategy(ctx, mockStrategy{})
	assert.True(t, errors.Is(err, ports.ErrNotFound))
	assert.Contains(t, err.Error(), "BTCUSDT 1h")

	svc, err = NewBacktestService(testConfig(), &mockLogger{}, &mockSource{}, nil)
	require.NoError(t, err)
	_, err = svc.RunStrategy(ctx, mockStrategy{})
	assert.True(t, errors.Is(err, ports.ErrInsufficientData))
}

func TestRunStrategy_SaveFailureKeepsResult(t *testing.T) {
	repo := &mockRepo{saveErr: ports.ErrQueryFailed}
	svc, err := NewBacktestService(testConfig(), &mockLogger{}, &mockSource{bars: waveBars(50)}, repo)
	require.NoError(t, err)

	report, err := svc.RunStrategy(context.Background(), mockStrategy{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrQueryFailed))
	require.NotNil(t, report)
	assert.NotNil(t, report.Result)
	assert.Empty(t, report.RunID)
}

func TestRun_ConfiguredStrategy(t *testing.T) {
	cfg := testConfig()
	src, err := synthetic.New(synthetic.Config{
		Seed:       cfg.SyntheticSeed,
		StartPrice: 30000,
		Volatility: 0.01,
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Count:      400,
	})
	require.NoError(t, err)

	svc, err := NewBacktestService(cfg, &mockLogger{}, src, nil)
	require.NoError(t, err)
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.Result.StrategyName)
	assert.Len(t, report.Result.EquityCurve, 400)

	cfg.Strategy = "martingale"
	_, err = svc.Run(context.Background())
	assert.Error(t, err)
}

func TestOptimize(t *testing.T) {
	cfg := testConfig()
	log := &mockLogger{}
	svc, err := NewBacktestService(cfg, log, &mockSource{bars: waveBars(300)}, nil)
	require.NoError(t, err)

	_, err = svc.Optimize(context.Background())
	assert.True(t, errors.Is(err, ports.ErrConfigurationError), "no ranges configured")

	cfg.OptimizerWorkers = 2
	cfg.ParameterRanges = []optimization.ParameterRange{
		{Name: "rsi_period", Min: 10, Max: 14, Step: 2, IsInt: true},
	}
	results, err := svc.Optimize(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, sort.SliceIsSorted(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	}))
	assert.Contains(t, log.infoMsgs, "Best parameters")
}

func TestOptimize_Canceled(t *testing.T) {
	cfg := testConfig()
	cfg.ParameterRanges = []optimization.ParameterRange{
		{Name: "rsi_period", Min: 10, Max: 20, Step: 1, IsInt: true},
	}
	log := &mockLogger{}
	svc, err := NewBacktestService(cfg, log, &mockSource{bars: waveBars(300)}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Optimize(ctx)
	assert.True(t, errors.Is(err, ports.ErrContextCanceled))
	assert.Contains(t, log.warnMsgs, "Parameter search canceled")
}

func TestNewBarSource(t *testing.T) {
	log := &mockLogger{}
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		check   func(t *testing.T, src ports.BarSource)
		wantErr bool
	}{
		{
			name: "synthetic",
			check: func(t *testing.T, src ports.BarSource) {
				assert.IsType(t, &synthetic.Source{}, src)
			},
		},
		{
			name:   "binance",
			mutate: func(c *config.Config) { c.BarSource = config.SourceBinance },
			check: func(t *testing.T, src ports.BarSource) {
				assert.IsType(t, &binanceclient.Client{}, src)
			},
		},
		{
			name: "csv file",
			mutate: func(c *config.Config) {
				c.BarSource = config.SourceCSV
				c.BarsFile = "/tmp/bars.csv"
			},
			check: func(t *testing.T, src ports.BarSource) {
				store, ok := src.(*barstore.CSVStore)
				require.True(t, ok)
				assert.Equal(t, "/tmp/bars.csv", store.Path("BTCUSDT", "1h"))
			},
		},
		{
			name: "parquet directory",
			mutate: func(c *config.Config) {
				c.BarSource = config.SourceParquet
				c.DataDir = "/data"
			},
			check: func(t *testing.T, src ports.BarSource) {
				store, ok := src.(*barstore.ParquetStore)
				require.True(t, ok)
				assert.Equal(t, filepath.Join("/data", "BTCUSDT", "1h.parquet"), store.Path("BTCUSDT", "1h"))
			},
		},
		{
			name:    "unknown",
			mutate:  func(c *config.Config) { c.BarSource = "ftp" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			src, err := NewBarSource(cfg, log)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ports.ErrConfigurationError))
				return
			}
			require.NoError(t, err)
			tt.check(t, src)
		})
	}
}
