// Package stats holds the small numeric helpers behind the performance
// metrics. Every function guards against empty input and division by zero
// and never returns NaN.
package stats

import (
	"math"
	"time"

	"github.com/loganko83/aitrading-sub000/internal/domain"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the sample standard deviation (n-1), or 0 with fewer than
// two observations.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := Mean(xs)
	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs) - 1)
	return math.Sqrt(variance)
}

// PctChange returns the simple returns between consecutive values. A step
// starting from a non-positive value yields 0.
func PctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, values[i]/prev-1)
	}
	return out
}

// SafeDiv returns a/b, or fallback when b is zero or the result is not finite.
func SafeDiv(a, b, fallback float64) float64 {
	if b == 0 {
		return fallback
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return fallback
	}
	return r
}

// DailyCloses collapses an equity curve to the last value of each UTC day.
func DailyCloses(curve []domain.EquityPoint) []float64 {
	if len(curve) == 0 {
		return nil
	}
	var out []float64
	day := dayKey(curve[0].Time)
	last := curve[0].Equity
	for _, p := range curve[1:] {
		k := dayKey(p.Time)
		if k != day {
			out = append(out, last)
			day = k
		}
		last = p.Equity
	}
	return append(out, last)
}

func dayKey(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return int64(y)*10000 + int64(m)*100 + int64(d)
}
