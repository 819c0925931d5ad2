package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganko83/aitrading-sub000/internal/adapters/logger"
	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/risk"
	"github.com/loganko83/aitrading-sub000/internal/strategy/optimization"
)

var envKeys = []string{
	"BINANCE_API_KEY", "BINANCE_API_SECRET", "IS_TESTNET", "SYMBOL", "INTERVAL", "BAR_SOURCE",
	"BARS_FILE", "DATA_DIR", "SYNTHETIC_SEED", "BACKTEST_START", "BACKTEST_END", "INITIAL_CAPITAL",
	"MAKER_FEE", "TAKER_FEE", "POSITION_SIZE_PCT", "RISK_FREE_RATE", "LEVERAGE", "ATR_PERIOD",
	"RISK_MAX_POSITION_SIZE_PCT", "RISK_MAX_RISK_PER_TRADE_PCT", "RISK_MAX_DAILY_LOSS_PCT",
	"RISK_MAX_DRAWDOWN_PCT", "RISK_STOP_LOSS_ATR_MULTIPLIER", "RISK_TAKE_PROFIT_ATR_MULTIPLIER",
	"RISK_MIN_RISK_REWARD_RATIO", "RISK_MAX_OPEN_POSITIONS", "RISK_MAX_LEVERAGE", "STRATEGY",
	"OPTIMIZER_WORKERS", "DB_PATH", "TRADES_CSV", "RUN_FILE", "LOG_LEVEL",
}

// clearEnv blanks every variable the loader reads, including stray strategy params.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, strategyParamPrefix) {
			t.Setenv(key, "")
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, "1h", cfg.Interval)
	assert.Equal(t, SourceSynthetic, cfg.BarSource)
	assert.Equal(t, int64(42), cfg.SyntheticSeed)
	assert.True(t, cfg.Start.IsZero())
	assert.Equal(t, "trend", cfg.Strategy)
	assert.Empty(t, cfg.StrategyParams)
	assert.Equal(t, "BTCUSDT", cfg.Backtest.Symbol)
	assert.Equal(t, 10000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, 3, cfg.Backtest.Leverage)
	assert.Equal(t, risk.DefaultParameters(), cfg.Backtest.Risk)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.IsTestnet)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYMBOL", "ethusdt")
	t.Setenv("INTERVAL", "15m")
	t.Setenv("BAR_SOURCE", "CSV")
	t.Setenv("BARS_FILE", "/tmp/eth.csv")
	t.Setenv("LEVERAGE", "5")
	t.Setenv("TAKER_FEE", "0.0005")
	t.Setenv("RISK_MAX_LEVERAGE", "10")
	t.Setenv("RISK_MIN_RISK_REWARD_RATIO", "2")
	t.Setenv("BACKTEST_START", "2024-01-01")
	t.Setenv("BACKTEST_END", "2024-02-01T12:00:00Z")
	t.Setenv("STRATEGY", "Oscillator")
	t.Setenv("STRATEGY_RSI_PERIOD", "10")
	t.Setenv("STRATEGY_ALLOW_SHORT", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, "ETHUSDT", cfg.Backtest.Symbol)
	assert.Equal(t, SourceCSV, cfg.BarSource)
	assert.Equal(t, 5, cfg.Backtest.Leverage)
	assert.Equal(t, 0.0005, cfg.Backtest.TakerFee)
	assert.Equal(t, 10, cfg.Backtest.Risk.MaxLeverage)
	assert.Equal(t, 2.0, cfg.Backtest.Risk.MinRiskRewardRatio)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Start)
	assert.Equal(t, time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC), cfg.End)
	assert.Equal(t, "oscillator", cfg.Strategy)
	assert.Equal(t, 10.0, cfg.StrategyParams["rsi_period"])
	assert.Equal(t, 1.0, cfg.StrategyParams["allow_short"])
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
}

func TestLoadConfig_CollectsParseErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEVERAGE", "abc")
	t.Setenv("TAKER_FEE", "cheap")
	t.Setenv("BACKTEST_START", "yesterday")
	t.Setenv("STRATEGY_FAST_PERIOD", "fast")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))
	for _, key := range []string{"LEVERAGE", "TAKER_FEE", "BACKTEST_START", "STRATEGY_FAST_PERIOD"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoadConfig_SemanticErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("BAR_SOURCE", "ftp")
	t.Setenv("STRATEGY", "martingale")
	t.Setenv("INTERVAL", "7x")
	t.Setenv("LEVERAGE", "500")
	t.Setenv("BACKTEST_START", "2024-02-01")
	t.Setenv("BACKTEST_END", "2024-01-01")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))
	for _, want := range []string{"BAR_SOURCE", "martingale", "INTERVAL", "leverage", "BACKTEST_START"} {
		assert.Contains(t, err.Error(), want)
	}
}

const runYAML = `
backtest:
  symbol: solusdt
  interval: 4h
  source: parquet
  bars_file: /data/sol.parquet
  start: 2024-03-01
engine:
  leverage: 5
  taker_fee: 0.0005
risk:
  max_leverage: 10
strategy:
  type: ensemble
  params:
    fast_period: 12
    allow_short: true
    threshold: 0.5
optimizer:
  workers: 3
  ranges:
    - {name: fast_period, min: 5, max: 15, step: 5, is_int: true}
    - {name: threshold, min: 0.3, max: 0.5, step: 0.1}
`

func TestLoadConfig_RunFileMergesOverEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(runYAML), 0o644))
	t.Setenv("RUN_FILE", path)
	t.Setenv("INITIAL_CAPITAL", "25000")
	t.Setenv("STRATEGY_SLOW_PERIOD", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "SOLUSDT", cfg.Symbol)
	assert.Equal(t, "SOLUSDT", cfg.Backtest.Symbol)
	assert.Equal(t, "4h", cfg.Interval)
	assert.Equal(t, SourceParquet, cfg.BarSource)
	assert.Equal(t, "/data/sol.parquet", cfg.BarsFile)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), cfg.Start)
	assert.True(t, cfg.End.IsZero())

	// Keys missing from the file keep the env values.
	assert.Equal(t, 25000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, 5, cfg.Backtest.Leverage)
	assert.Equal(t, 0.0005, cfg.Backtest.TakerFee)
	assert.Equal(t, 10, cfg.Backtest.Risk.MaxLeverage)
	assert.Equal(t, risk.DefaultParameters().MaxDrawdownPct, cfg.Backtest.Risk.MaxDrawdownPct)

	assert.Equal(t, "ensemble", cfg.Strategy)
	assert.Equal(t, 12.0, cfg.StrategyParams["fast_period"])
	assert.Equal(t, 30.0, cfg.StrategyParams["slow_period"])
	assert.Equal(t, 1.0, cfg.StrategyParams["allow_short"])
	assert.Equal(t, 0.5, cfg.StrategyParams["threshold"])

	assert.Equal(t, 3, cfg.OptimizerWorkers)
	assert.Equal(t, []optimization.ParameterRange{
		{Name: "fast_period", Min: 5, Max: 15, Step: 5, IsInt: true},
		{Name: "threshold", Min: 0.3, Max: 0.5, Step: 0.1},
	}, cfg.ParameterRanges)
}

func TestLoadRunFile_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{}

	err := LoadRunFile(filepath.Join(dir, "missing.yaml"), cfg)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("engine: [unclosed"), 0o644))
	err = LoadRunFile(broken, cfg)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))

	badValues := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badValues, []byte("backtest:\n  start: soon\nstrategy:\n  params:\n    fast_period: [1, 2]\n"), 0o644))
	err = LoadRunFile(badValues, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))
	assert.Contains(t, err.Error(), "backtest.start")
	assert.Contains(t, err.Error(), "strategy.params.fast_period")
}
