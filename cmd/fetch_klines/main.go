// Command fetch_klines downloads futures klines from Binance into the local
// bar store so later backtests can run offline.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/loganko83/aitrading-sub000/config"
	"github.com/loganko83/aitrading-sub000/internal/adapters/barstore"
	"github.com/loganko83/aitrading-sub000/internal/adapters/binanceclient"
	"github.com/loganko83/aitrading-sub000/internal/adapters/logger"
	"github.com/loganko83/aitrading-sub000/internal/domain"
)

type barWriter interface {
	WriteBars(ctx context.Context, symbol, interval string, bars []domain.Bar) error
	Path(symbol, interval string) string
}

var (
	format = flag.String("format", "csv", "output format: csv or parquet")
	days   = flag.Int("days", 90, "history to fetch when BACKTEST_START is unset")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	var store barWriter
	switch *format {
	case "csv":
		store = barstore.NewCSVStore(cfg.DataDir)
	case "parquet":
		store = barstore.NewParquetStore(cfg.DataDir)
	default:
		log.Fatalf("FATAL: unknown format %q", *format)
	}

	end := cfg.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := cfg.Start
	if start.IsZero() {
		start = end.AddDate(0, 0, -*days)
	}

	appLogger.Info(ctx, "Fetching klines", map[string]interface{}{
		"symbol": cfg.Symbol, "interval": cfg.Interval, "from": start, "to": end,
	})
	bars, err := binanceClient.GetKlinesRange(ctx, cfg.Symbol, cfg.Interval, start, end)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching klines")
		log.Fatalf("Error fetching klines: %v", err)
	}
	if idx, err := domain.ValidateSeries(bars); err != nil {
		appLogger.Warn(ctx, "Fetched series failed validation", map[string]interface{}{"index": idx, "error": err.Error()})
	}

	if err := store.WriteBars(ctx, cfg.Symbol, cfg.Interval, bars); err != nil {
		appLogger.Error(ctx, err, "Error writing bars")
		log.Fatalf("Error writing bars: %v", err)
	}
	appLogger.Info(ctx, "Saved bars", map[string]interface{}{"count": len(bars), "path": store.Path(cfg.Symbol, cfg.Interval)})
}
