package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for fatal errors the logger may not have seen
	"os"
	"os/signal"
	"syscall"

	"github.com/loganko83/aitrading-sub000/config"
	"github.com/loganko83/aitrading-sub000/internal/adapters/logger"
	"github.com/loganko83/aitrading-sub000/internal/adapters/sqlite"
	"github.com/loganko83/aitrading-sub000/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		log.Printf("FATAL: %v", err)
		os.Exit(1)
	}
}

// run wires the adapters and executes one backtest. Deferred cleanup always
// runs because failures are returned instead of exiting.
func run(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize Bar Source
	source, err := app.NewBarSource(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize bar source: %w", err)
	}
	appLogger.Info(ctx, "Bar source initialized", map[string]interface{}{"source": cfg.BarSource})

	// 5. Initialize Application Service
	svc, err := app.NewBacktestService(cfg, appLogger, source, repo)
	if err != nil {
		return fmt.Errorf("failed to initialize backtest service: %w", err)
	}

	// 6. Run
	report, err := svc.Run(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest exited with error")
		return fmt.Errorf("backtest exited with error: %w", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.", map[string]interface{}{"runID": report.RunID})
	return nil
}
