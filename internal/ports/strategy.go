package ports

import (
	"context"

	"github.com/loganko83/aitrading-sub000/internal/domain"
)

// Strategy defines the interface for trading strategies.
type Strategy interface {
	// Name returns the identifier used in results and logs.
	Name() string

	// Evaluate inspects the window of bars up to and including the current one
	// and returns a fresh signal. It must not modify the window.
	Evaluate(ctx context.Context, window []domain.Bar, currentPrice float64) domain.Signal
}
