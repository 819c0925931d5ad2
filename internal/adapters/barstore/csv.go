package barstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

var _ ports.BarSource = (*CSVStore)(nil)

var csvHeader = []string{"open_time", "open", "high", "low", "close", "volume"}

// CSVStore reads and writes bars as CSV.
type CSVStore struct {
	DataDir string
	File    string // When set, every symbol/interval maps to this file
}

// NewCSVStore creates a store rooted at dataDir.
func NewCSVStore(dataDir string) *CSVStore {
	return &CSVStore{DataDir: dataDir}
}

// NewCSVFile creates a store pinned to a single file.
func NewCSVFile(path string) *CSVStore {
	return &CSVStore{File: path}
}

// Path returns the file backing symbol/interval.
func (s *CSVStore) Path(symbol, interval string) string {
	return barPath(s.DataDir, s.File, symbol, interval, ".csv")
}

// LoadBars implements ports.BarSource.
func (s *CSVStore) LoadBars(_ context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := readCSV(s.Path(symbol, interval))
	if err != nil {
		return nil, err
	}
	return filterRange(bars, start, end), nil
}

// WriteBars merges bars into the symbol/interval file.
func (s *CSVStore) WriteBars(_ context.Context, symbol, interval string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	path := s.Path(symbol, interval)
	existing, err := readCSV(path)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return err
	}
	return writeCSV(path, mergeBars(existing, bars))
}

func writeCSV(path string, bars []domain.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		if err := writer.Write([]string{
			b.Time.UTC().Format(time.RFC3339),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func readCSV(path string) ([]domain.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, notFound(path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	cols, err := columns(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		bar, err := parseRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ports.ErrInvalidRequest, path, line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// columns maps the required fields to their positions. The time column may be
// called open_time, time or timestamp.
func columns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "time" || name == "timestamp" {
			name = "open_time"
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	var missing []string
	for _, name := range csvHeader {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ports.ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseRecord(rec []string, cols map[string]int) (domain.Bar, error) {
	field := func(name string) string {
		if i := cols[name]; i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	ts, err := parseTime(field("open_time"))
	if err != nil {
		return domain.Bar{}, err
	}
	var values [5]float64
	for i, name := range csvHeader[1:] {
		d, err := decimal.NewFromString(field(name))
		if err != nil {
			return domain.Bar{}, fmt.Errorf("parsing %s: %w", name, err)
		}
		values[i] = d.InexactFloat64()
	}
	return domain.Bar{Time: ts, Open: values[0], High: values[1], Low: values[2], Close: values[3], Volume: values[4]}, nil
}

// parseTime accepts RFC3339 or Unix milliseconds.
func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}
