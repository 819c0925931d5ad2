package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/loganko83/aitrading-sub000/internal/adapters/logger" // Import the logger package for LogLevel
	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/strategy"
	"github.com/loganko83/aitrading-sub000/internal/strategy/backtesting"
	"github.com/loganko83/aitrading-sub000/internal/strategy/optimization"
)

// Bar sources understood by BAR_SOURCE.
const (
	SourceBinance   = "binance"
	SourceCSV       = "csv"
	SourceParquet   = "parquet"
	SourceSynthetic = "synthetic"
)

// strategyParamPrefix marks env vars that become strategy parameters,
// e.g. STRATEGY_FAST_PERIOD=12 sets fast_period.
const strategyParamPrefix = "STRATEGY_"

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Market data
	Symbol        string
	Interval      string
	BarSource     string
	BarsFile      string // Single CSV/Parquet file; empty means the DataDir layout
	DataDir       string
	SyntheticSeed int64
	Start         time.Time // Zero means unbounded
	End           time.Time

	// Simulation
	Backtest backtesting.Config

	// Strategy
	Strategy       string
	StrategyParams strategy.Params

	// Parameter search
	OptimizerWorkers int
	ParameterRanges  []optimization.ParameterRange

	// Output
	DBPath    string
	TradesCSV string // Trade ledger written after each run when set
	RunFile   string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// LoadConfig loads configuration from environment variables (.env file),
// then applies RUN_FILE when set.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API. Klines are public, so keys are optional.
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	// Market data
	cfg.Symbol = strings.ToUpper(getEnv("SYMBOL", "BTCUSDT"))
	cfg.Interval = getEnv("INTERVAL", "1h")
	cfg.BarSource = strings.ToLower(getEnv("BAR_SOURCE", SourceSynthetic))
	cfg.BarsFile = getEnv("BARS_FILE", "")
	cfg.DataDir = getEnv("DATA_DIR", "./data/bars")
	seed, err := getEnvAsIntRequired("SYNTHETIC_SEED", 42)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SYNTHETIC_SEED: %v", err))
	}
	cfg.SyntheticSeed = int64(seed)

	if cfg.Start, err = getEnvAsTime("BACKTEST_START"); err != nil {
		errs = append(errs, fmt.Sprintf("invalid BACKTEST_START: %v", err))
	}
	if cfg.End, err = getEnvAsTime("BACKTEST_END"); err != nil {
		errs = append(errs, fmt.Sprintf("invalid BACKTEST_END: %v", err))
	}

	// Simulation
	bt := backtesting.DefaultConfig()
	bt.Symbol = cfg.Symbol
	floats := []struct {
		key string
		dst *float64
	}{
		{"INITIAL_CAPITAL", &bt.InitialCapital},
		{"MAKER_FEE", &bt.MakerFee},
		{"TAKER_FEE", &bt.TakerFee},
		{"POSITION_SIZE_PCT", &bt.PositionSizePct},
		{"RISK_FREE_RATE", &bt.RiskFreeRate},
		{"RISK_MAX_POSITION_SIZE_PCT", &bt.Risk.MaxPositionSizePct},
		{"RISK_MAX_RISK_PER_TRADE_PCT", &bt.Risk.MaxRiskPerTradePct},
		{"RISK_MAX_DAILY_LOSS_PCT", &bt.Risk.MaxDailyLossPct},
		{"RISK_MAX_DRAWDOWN_PCT", &bt.Risk.MaxDrawdownPct},
		{"RISK_STOP_LOSS_ATR_MULTIPLIER", &bt.Risk.StopLossATRMultiplier},
		{"RISK_TAKE_PROFIT_ATR_MULTIPLIER", &bt.Risk.TakeProfitATRMultiplier},
		{"RISK_MIN_RISK_REWARD_RATIO", &bt.Risk.MinRiskRewardRatio},
	}
	for _, f := range floats {
		if *f.dst, err = getEnvAsFloatRequired(f.key, *f.dst); err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", f.key, err))
		}
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"LEVERAGE", &bt.Leverage},
		{"ATR_PERIOD", &bt.ATRPeriod},
		{"RISK_MAX_OPEN_POSITIONS", &bt.Risk.MaxOpenPositions},
		{"RISK_MAX_LEVERAGE", &bt.Risk.MaxLeverage},
	}
	for _, f := range ints {
		if *f.dst, err = getEnvAsIntRequired(f.key, *f.dst); err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", f.key, err))
		}
	}
	cfg.Backtest = bt

	// Strategy
	cfg.Strategy = strings.ToLower(getEnv("STRATEGY", strategy.Trend))
	cfg.StrategyParams = strategy.Params{}
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, strategyParamPrefix) || value == "" {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, strategyParamPrefix))
		v, err := parseParam(value)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
			continue
		}
		cfg.StrategyParams[name] = v
	}

	// Parameter search
	cfg.OptimizerWorkers, err = getEnvAsIntRequired("OPTIMIZER_WORKERS", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid OPTIMIZER_WORKERS: %v", err))
	}

	// Output
	cfg.DBPath = getEnv("DB_PATH", "./data/backtests.db")
	cfg.TradesCSV = getEnv("TRADES_CSV", "")
	cfg.RunFile = getEnv("RUN_FILE", "")

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: configuration validation failed: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}

	if cfg.RunFile != "" {
		if err := LoadRunFile(cfg.RunFile, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the assembled configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}
	if _, ok := domain.ParseInterval(c.Interval); !ok {
		errs = append(errs, fmt.Sprintf("unsupported INTERVAL %q", c.Interval))
	}
	switch c.BarSource {
	case SourceBinance, SourceSynthetic:
	case SourceCSV, SourceParquet:
		if c.BarsFile == "" && c.DataDir == "" {
			errs = append(errs, "BARS_FILE or DATA_DIR must be set for file bar sources")
		}
	default:
		errs = append(errs, fmt.Sprintf("BAR_SOURCE must be one of binance, csv, parquet, synthetic (got %q)", c.BarSource))
	}
	if !c.Start.IsZero() && !c.End.IsZero() && !c.Start.Before(c.End) {
		errs = append(errs, "BACKTEST_START must be before BACKTEST_END")
	}

	if err := c.Backtest.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Backtest.Symbol != c.Symbol {
		errs = append(errs, "backtest symbol does not match SYMBOL")
	}

	if _, ok := strategy.DefaultRegistry().Get(c.Strategy); !ok {
		errs = append(errs, fmt.Sprintf("unknown STRATEGY %q (available: %v)", c.Strategy, strategy.DefaultRegistry().List()))
	}
	if c.OptimizerWorkers < 0 {
		errs = append(errs, "OPTIMIZER_WORKERS cannot be negative")
	}
	if c.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: configuration validation failed: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsTime(key string) (time.Time, error) {
	return parseTime(os.Getenv(key))
}

// parseTime accepts YYYY-MM-DD (UTC midnight) or RFC3339. Empty means zero.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", s)
	}
	return t.UTC(), nil
}

// parseParam reads a numeric strategy parameter; booleans become 0/1.
func parseParam(s string) (float64, error) {
	if b, err := strconv.ParseBool(s); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
