package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Bar represents a single OHLCV sample for a fixed interval.
type Bar struct {
	Time   time.Time // Start time of the interval
	Open   float64   // Opening price
	High   float64   // Highest price
	Low    float64   // Lowest price
	Close  float64   // Closing price
	Volume float64   // Traded volume
}

// Validate checks the OHLC ordering invariant of a single bar.
func (b Bar) Validate() error {
	fields := [...]struct {
		name string
		v    float64
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}, {"volume", b.Volume}}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s is not a finite number", f.name)
		}
	}
	if b.High < math.Max(b.Open, math.Max(b.Close, b.Low)) {
		return fmt.Errorf("high %.8f below open/close/low", b.High)
	}
	if b.Low > math.Min(b.Open, math.Min(b.Close, b.High)) {
		return fmt.Errorf("low %.8f above open/close/high", b.Low)
	}
	return nil
}

// ValidateSeries checks every bar and strict time ordering.
// It returns the index of the first offending bar, or -1.
func ValidateSeries(bars []Bar) (int, error) {
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return i, err
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return i, fmt.Errorf("timestamp %s not after previous %s", b.Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339))
		}
	}
	return -1, nil
}

// ParseInterval converts an exchange interval such as "15m", "4h" or "1d"
// into its duration.
func ParseInterval(s string) (time.Duration, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1m":
		return time.Minute, true
	case "3m":
		return 3 * time.Minute, true
	case "5m":
		return 5 * time.Minute, true
	case "15m":
		return 15 * time.Minute, true
	case "30m":
		return 30 * time.Minute, true
	case "1h":
		return time.Hour, true
	case "2h":
		return 2 * time.Hour, true
	case "4h":
		return 4 * time.Hour, true
	case "6h":
		return 6 * time.Hour, true
	case "8h":
		return 8 * time.Hour, true
	case "12h":
		return 12 * time.Hour, true
	case "1d":
		return 24 * time.Hour, true
	case "1w":
		return 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
