// Command analyze_backtests inspects runs stored in DB_PATH.
//
//	analyze_backtests              list recent runs
//	analyze_backtests -run <id>    show one run with its trades and daily equity stats
//	analyze_backtests -delete <id> remove a run
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"text/tabwriter"

	"github.com/loganko83/aitrading-sub000/config"
	"github.com/loganko83/aitrading-sub000/internal/adapters/logger"
	"github.com/loganko83/aitrading-sub000/internal/adapters/sqlite"
	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
	"github.com/loganko83/aitrading-sub000/internal/stats"
)

var (
	limit    = flag.Int("limit", 20, "number of runs to list")
	runID    = flag.String("run", "", "show details for this run")
	deleteID = flag.String("delete", "", "delete this run")
)

func main() {
	flag.Parse()
	err := run(context.Background())
	if errors.Is(err, ports.ErrNotFound) {
		log.Printf("Run not found: %v", err)
		os.Exit(1)
	}
	if err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		return fmt.Errorf("failed to initialize database repository: %w", err)
	}
	defer repo.Close()

	switch {
	case *deleteID != "":
		if err := repo.DeleteRun(ctx, *deleteID); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s\n", *deleteID)
		return nil
	case *runID != "":
		return showRun(ctx, repo, *runID)
	default:
		return listRuns(ctx, repo, *limit)
	}
}

func listRuns(ctx context.Context, repo *sqlite.Repository, limit int) error {
	runs, err := repo.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No backtest runs stored yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "ID\tStrategy\tSymbol\tTrades\tReturn%\tSharpe\tMaxDD%\tWin%\tPF\tRating\tCreated\t")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.1f\t%s\t%s\t%s\t\n",
			r.ID, r.StrategyName, r.Symbol, r.TotalTrades, r.TotalReturnPct, r.SharpeRatio,
			r.MaxDrawdownPct, r.WinRate, formatPF(r.ProfitFactor), r.Rating, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func showRun(ctx context.Context, repo *sqlite.Repository, id string) error {
	run, err := repo.FindRun(ctx, id)
	if err != nil {
		return err
	}
	trades, err := repo.FindTrades(ctx, id)
	if err != nil {
		return err
	}
	equity, drawdown, err := repo.FindEquityCurve(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %s on %s\n", run.ID, run.StrategyName, run.Symbol)
	fmt.Printf("Window:   %s .. %s\n", run.StartTime.Format("2006-01-02 15:04"), run.EndTime.Format("2006-01-02 15:04"))
	fmt.Printf("Capital:  %.2f -> %.2f (%.2f%%)\n", run.InitialCapital, run.FinalCapital, run.TotalReturnPct)
	fmt.Printf("Sharpe:   %.2f  MaxDD: %.2f%%  Win: %.1f%%  PF: %s  Rating: %s\n",
		run.SharpeRatio, run.MaxDrawdownPct, run.WinRate, formatPF(run.ProfitFactor), run.Rating)

	daily := stats.PctChange(stats.DailyCloses(equity))
	worst := 0.0
	for _, d := range drawdown {
		worst = math.Min(worst, d.Drawdown)
	}
	fmt.Printf("Daily:    %d returns, mean %.4f%%, stddev %.4f%%, deepest drawdown %.2f\n\n",
		len(daily), stats.Mean(daily)*100, stats.StdDev(daily)*100, worst)

	if len(trades) == 0 {
		fmt.Println("No trades.")
		return nil
	}
	return printTrades(trades)
}

func printTrades(trades []domain.Trade) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "#\tDir\tEntry\tExit\tEntryPx\tExitPx\tQty\tFees\tPnL\tPnL%\tReason\t")
	for _, t := range trades {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.4f\t%.4f\t%.6f\t%.4f\t%.2f\t%.2f\t%s\t\n",
			t.ID, t.Direction, t.EntryTime.Format("01-02 15:04"), t.ExitTime.Format("01-02 15:04"),
			t.EntryPrice, t.ExitPrice, t.Quantity, t.Fees(), t.PnL, t.PnLPct, t.CloseReason)
	}
	return w.Flush()
}

func formatPF(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
