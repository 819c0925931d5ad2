package barstore

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loganko83/aitrading-sub000/internal/domain"
)

// WriteTradesCSV writes the trade ledger of a run, one row per trade.
// Money columns are rounded to 8 decimals.
func WriteTradesCSV(path string, trades []domain.Trade) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Write([]string{
		"id", "symbol", "direction", "entry_time", "exit_time", "entry_price", "exit_price",
		"quantity", "leverage", "stop_loss", "take_profit", "fees", "gross_pnl", "pnl", "pnl_pct", "close_reason",
	})
	for _, t := range trades {
		writer.Write([]string{
			strconv.Itoa(t.ID),
			t.Symbol,
			string(t.Direction),
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			money(t.EntryPrice),
			money(t.ExitPrice),
			money(t.Quantity),
			strconv.Itoa(t.Leverage),
			money(t.StopLoss),
			money(t.TakeProfit),
			money(t.Fees()),
			money(t.GrossPnL),
			money(t.PnL),
			decimal.NewFromFloat(t.PnLPct).StringFixed(4),
			string(t.CloseReason),
		})
	}
	writer.Flush()
	return writer.Error()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).Round(8).String()
}
