package indicators

import (
	"time"

	"github.com/loganko83/aitrading-sub000/internal/domain"
)

// barsFromCloses builds hourly bars whose high/low hug the close.
func barsFromCloses(closes ...float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Time:  start.Add(time.Duration(i) * time.Hour),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return bars
}
