package barstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

var _ ports.BarSource = (*ParquetStore)(nil)

// BarRecord is the Parquet schema for bar data.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ParquetStore reads and writes bars as Parquet.
type ParquetStore struct {
	DataDir string
	File    string // When set, every symbol/interval maps to this file
}

// NewParquetStore creates a store rooted at dataDir.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// NewParquetFile creates a store pinned to a single file.
func NewParquetFile(path string) *ParquetStore {
	return &ParquetStore{File: path}
}

// Path returns the file backing symbol/interval.
func (s *ParquetStore) Path(symbol, interval string) string {
	return barPath(s.DataDir, s.File, symbol, interval, ".parquet")
}

// LoadBars implements ports.BarSource.
func (s *ParquetStore) LoadBars(_ context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := s.read(s.Path(symbol, interval))
	if err != nil {
		return nil, err
	}
	return filterRange(bars, start, end), nil
}

// WriteBars merges bars into the symbol/interval file.
func (s *ParquetStore) WriteBars(_ context.Context, symbol, interval string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	path := s.Path(symbol, interval)
	existing, err := s.read(path)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return err
	}
	merged := mergeBars(existing, bars)

	records := make([]BarRecord, len(merged))
	for i, b := range merged {
		records[i] = BarRecord{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func (s *ParquetStore) read(path string) ([]domain.Bar, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, notFound(path, err)
	}
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, err
	}
	bars := make([]domain.Bar, len(records))
	for i, r := range records {
		bars[i] = domain.Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return bars, nil
}
