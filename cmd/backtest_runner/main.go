// Command backtest_runner grid-searches strategy parameters over the configured
// bar window and prints the best combinations. Ranges come from RUN_FILE.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/loganko83/aitrading-sub000/config"
	"github.com/loganko83/aitrading-sub000/internal/adapters/logger"
	"github.com/loganko83/aitrading-sub000/internal/adapters/sqlite"
	"github.com/loganko83/aitrading-sub000/internal/app"
	"github.com/loganko83/aitrading-sub000/internal/strategy"
	"github.com/loganko83/aitrading-sub000/internal/strategy/optimization"
)

var (
	top  = flag.Int("top", 10, "number of combinations to print")
	save = flag.Bool("save", false, "re-run the best combination and store it in DB_PATH")
)

func main() {
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		log.Printf("FATAL: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	source, err := app.NewBarSource(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize bar source: %w", err)
	}

	// 2. Search
	svc, err := app.NewBacktestService(cfg, appLogger, source, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize backtest service: %w", err)
	}
	results, err := svc.Optimize(ctx)
	if err != nil {
		return fmt.Errorf("parameter search failed: %w", err)
	}
	printResults(results, *top)

	if !*save || len(results) == 0 {
		return nil
	}

	// 3. Persist the winner with its full trade ledger
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		return fmt.Errorf("failed to initialize database repository: %w", err)
	}
	defer repo.Close()

	best, err := strategy.New(cfg.Strategy, results[0].Parameters, appLogger)
	if err != nil {
		return fmt.Errorf("failed to build best strategy: %w", err)
	}
	svc, err = app.NewBacktestService(cfg, appLogger, source, repo)
	if err != nil {
		return fmt.Errorf("failed to initialize backtest service: %w", err)
	}
	report, err := svc.RunStrategy(ctx, best)
	if err != nil {
		return fmt.Errorf("best combination failed to run: %w", err)
	}
	fmt.Printf("\nBest combination stored as run %s\n", report.RunID)
	return nil
}

func printResults(results []optimization.OptimizationResult, n int) {
	if n > len(results) {
		n = len(results)
	}
	fmt.Printf("Evaluated %d combinations, top %d:\n\n", len(results), n)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "#\tScore\tReturn%\tSharpe\tMaxDD%\tWin%\tPF\tTrades\tParams\t")
	for i, r := range results[:n] {
		m := r.Metrics
		fmt.Fprintf(w, "%d\t%.3f\t%.2f\t%.2f\t%.2f\t%.1f\t%.2f\t%d\t%s\t\n",
			i+1, r.Score, m.TotalReturn, m.SharpeRatio, m.MaxDrawdownPct, m.WinRate, m.ProfitFactor, m.TotalTrades, formatParams(r.Parameters))
	}
	w.Flush()
}

func formatParams(p strategy.Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}
