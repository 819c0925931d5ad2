// Package synthetic generates reproducible bar series from a seeded random
// walk, for demos and tests without market data.
package synthetic

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

var _ ports.BarSource = (*Source)(nil)

// Config describes the random walk.
type Config struct {
	Seed       int64
	StartPrice float64
	Volatility float64   // Standard deviation of the per-bar log return
	Drift      float64   // Mean of the per-bar log return
	Start      time.Time // Used when LoadBars gets a zero start
	Count      int       // Bars to generate when LoadBars gets a zero end
}

// DefaultConfig returns a BTC-like hourly walk.
func DefaultConfig() Config {
	return Config{
		Seed:       42,
		StartPrice: 40000,
		Volatility: 0.006,
		Drift:      0,
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Count:      2000,
	}
}

// Source is a ports.BarSource producing the same bars for the same
// config, symbol and request.
type Source struct {
	cfg Config
}

// New validates cfg and returns a Source.
func New(cfg Config) (*Source, error) {
	var errs []string
	if !(cfg.StartPrice > 0) {
		errs = append(errs, "start price must be positive")
	}
	if cfg.Volatility < 0 || math.IsNaN(cfg.Volatility) {
		errs = append(errs, "volatility cannot be negative")
	}
	if math.IsNaN(cfg.Drift) || math.IsInf(cfg.Drift, 0) {
		errs = append(errs, "drift must be finite")
	}
	if cfg.Count < 1 {
		errs = append(errs, "count must be at least 1")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: synthetic source: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return &Source{cfg: cfg}, nil
}

// LoadBars implements ports.BarSource. The walk always starts at the
// configured start so a narrower window returns a slice of the same path.
func (s *Source) LoadBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	step, ok := domain.ParseInterval(interval)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported interval %q", ports.ErrInvalidRequest, interval)
	}
	origin := s.cfg.Start.UTC()
	if !start.IsZero() && start.Before(origin) {
		origin = start.UTC()
	}
	last := origin.Add(time.Duration(s.cfg.Count-1) * step)
	if !end.IsZero() {
		last = end.UTC()
	}
	if last.Before(origin) {
		return nil, fmt.Errorf("%w: end %s before start %s", ports.ErrInvalidRequest, last.Format(time.RFC3339), origin.Format(time.RFC3339))
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed ^ int64(hash(symbol))))
	var bars []domain.Bar
	price := s.cfg.StartPrice
	for ts := origin; !ts.After(last); ts = ts.Add(step) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := s.next(rng, ts, price)
		price = b.Close
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// next draws one bar opening at price.
func (s *Source) next(rng *rand.Rand, ts time.Time, price float64) domain.Bar {
	ret := s.cfg.Drift + s.cfg.Volatility*rng.NormFloat64()
	closePrice := price * math.Exp(ret)
	wickUp := math.Abs(rng.NormFloat64()) * s.cfg.Volatility * 0.5
	wickDown := math.Abs(rng.NormFloat64()) * s.cfg.Volatility * 0.5
	return domain.Bar{
		Time:   ts,
		Open:   price,
		High:   math.Max(price, closePrice) * (1 + wickUp),
		Low:    math.Min(price, closePrice) * (1 - wickDown),
		Close:  closePrice,
		Volume: 50 + 100*rng.Float64(),
	}
}

// hash separates the paths of different symbols.
func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToUpper(s)))
	return h.Sum32()
}
