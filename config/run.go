package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/risk"
	"github.com/loganko83/aitrading-sub000/internal/strategy/optimization"
)

// RunFile is the YAML description of a backtest or parameter search.
// Absent keys keep the value already loaded from the environment.
type RunFile struct {
	Backtest struct {
		Symbol   string `yaml:"symbol"`
		Interval string `yaml:"interval"`
		Source   string `yaml:"source"`
		BarsFile string `yaml:"bars_file"`
		Start    string `yaml:"start"`
		End      string `yaml:"end"`
	} `yaml:"backtest"`

	Engine struct {
		InitialCapital  float64 `yaml:"initial_capital"`
		MakerFee        float64 `yaml:"maker_fee"`
		TakerFee        float64 `yaml:"taker_fee"`
		Leverage        int     `yaml:"leverage"`
		PositionSizePct float64 `yaml:"position_size_pct"`
		RiskFreeRate    float64 `yaml:"risk_free_rate"`
		ATRPeriod       int     `yaml:"atr_period"`
	} `yaml:"engine"`

	Risk risk.Parameters `yaml:"risk"`

	Strategy struct {
		Type   string         `yaml:"type"`
		Params map[string]any `yaml:"params"`
	} `yaml:"strategy"`

	Optimizer struct {
		Workers int                           `yaml:"workers"`
		Ranges  []optimization.ParameterRange `yaml:"ranges"`
	} `yaml:"optimizer"`
}

// LoadRunFile reads the YAML file at path and merges it over cfg.
func LoadRunFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read run file: %v", ports.ErrConfigurationError, err)
	}

	rf := runFileFrom(cfg)
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return fmt.Errorf("%w: parse run file %s: %v", ports.ErrConfigurationError, path, err)
	}
	return rf.apply(cfg)
}

// runFileFrom seeds a RunFile with the current values so the decoder only
// overwrites keys present in the document.
func runFileFrom(cfg *Config) RunFile {
	var rf RunFile
	rf.Backtest.Symbol = cfg.Symbol
	rf.Backtest.Interval = cfg.Interval
	rf.Backtest.Source = cfg.BarSource
	rf.Backtest.BarsFile = cfg.BarsFile
	rf.Backtest.Start = formatTime(cfg.Start)
	rf.Backtest.End = formatTime(cfg.End)

	bt := cfg.Backtest
	rf.Engine.InitialCapital = bt.InitialCapital
	rf.Engine.MakerFee = bt.MakerFee
	rf.Engine.TakerFee = bt.TakerFee
	rf.Engine.Leverage = bt.Leverage
	rf.Engine.PositionSizePct = bt.PositionSizePct
	rf.Engine.RiskFreeRate = bt.RiskFreeRate
	rf.Engine.ATRPeriod = bt.ATRPeriod
	rf.Risk = bt.Risk

	rf.Strategy.Type = cfg.Strategy
	rf.Optimizer.Workers = cfg.OptimizerWorkers
	return rf
}

func (rf RunFile) apply(cfg *Config) error {
	var errs []string

	cfg.Symbol = strings.ToUpper(rf.Backtest.Symbol)
	cfg.Interval = rf.Backtest.Interval
	cfg.BarSource = strings.ToLower(rf.Backtest.Source)
	cfg.BarsFile = rf.Backtest.BarsFile
	var err error
	if cfg.Start, err = parseTime(rf.Backtest.Start); err != nil {
		errs = append(errs, fmt.Sprintf("backtest.start: %v", err))
	}
	if cfg.End, err = parseTime(rf.Backtest.End); err != nil {
		errs = append(errs, fmt.Sprintf("backtest.end: %v", err))
	}

	cfg.Backtest.Symbol = cfg.Symbol
	cfg.Backtest.InitialCapital = rf.Engine.InitialCapital
	cfg.Backtest.MakerFee = rf.Engine.MakerFee
	cfg.Backtest.TakerFee = rf.Engine.TakerFee
	cfg.Backtest.Leverage = rf.Engine.Leverage
	cfg.Backtest.PositionSizePct = rf.Engine.PositionSizePct
	cfg.Backtest.RiskFreeRate = rf.Engine.RiskFreeRate
	cfg.Backtest.ATRPeriod = rf.Engine.ATRPeriod
	cfg.Backtest.Risk = rf.Risk

	cfg.Strategy = strings.ToLower(rf.Strategy.Type)
	if cfg.StrategyParams == nil {
		cfg.StrategyParams = make(map[string]float64)
	}
	keys := make([]string, 0, len(rf.Strategy.Params))
	for k := range rf.Strategy.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := toFloat(rf.Strategy.Params[k])
		if err != nil {
			errs = append(errs, fmt.Sprintf("strategy.params.%s: %v", k, err))
			continue
		}
		cfg.StrategyParams[strings.ToLower(k)] = v
	}

	cfg.OptimizerWorkers = rf.Optimizer.Workers
	if len(rf.Optimizer.Ranges) > 0 {
		cfg.ParameterRanges = rf.Optimizer.Ranges
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: run file: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		return parseParam(x)
	default:
		return 0, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
