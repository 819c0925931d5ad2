// Package barstore keeps bar series on disk as CSV or Parquet files and
// serves them back as a ports.BarSource.
//
// Files are laid out as
//
//	<DataDir>/<SYMBOL>/<interval>.csv
//	<DataDir>/<SYMBOL>/<interval>.parquet
//
// unless a store is pinned to a single file.
package barstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

func barPath(dataDir, file, symbol, interval, ext string) string {
	if file != "" {
		return file
	}
	return filepath.Join(dataDir, strings.ToUpper(symbol), interval+ext)
}

// filterRange keeps bars within [start, end]; zero bounds are open.
func filterRange(bars []domain.Bar, start, end time.Time) []domain.Bar {
	out := bars[:0:0]
	for _, b := range bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// mergeBars deduplicates bars by timestamp, preferring incoming over
// existing, and returns them in ascending time order.
func mergeBars(existing, incoming []domain.Bar) []domain.Bar {
	seen := make(map[int64]domain.Bar, len(existing)+len(incoming))
	for _, b := range existing {
		seen[b.Time.UnixMilli()] = b
	}
	for _, b := range incoming {
		seen[b.Time.UnixMilli()] = b
	}

	merged := make([]domain.Bar, 0, len(seen))
	for _, b := range seen {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})
	return merged
}

func notFound(path string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: bar file %s", ports.ErrNotFound, path)
	}
	return fmt.Errorf("opening bar file %s: %w", path, err)
}
