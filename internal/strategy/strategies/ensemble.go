package strategies

import (
	"context"
	"fmt"
	"strings"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

// Member is one weighted voter of an Ensemble.
type Member struct {
	Strategy ports.Strategy
	Weight   float64
}

// Ensemble combines member signals into a confidence-weighted vote. It
// enters when the net score for one side, normalized by the total weight,
// reaches Threshold.
type Ensemble struct {
	*BaseStrategy
	members   []Member
	threshold float64
	total     float64
}

// NewEnsemble validates the members and the threshold.
func NewEnsemble(members []Member, threshold float64, logger ports.Logger) (*Ensemble, error) {
	base, err := NewBaseStrategy(logger)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: ensemble needs at least one member", ports.ErrConfigurationError)
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: ensemble threshold must be in (0, 1], got %v", ports.ErrConfigurationError, threshold)
	}
	total := 0.0
	for i, m := range members {
		if m.Strategy == nil || m.Weight <= 0 {
			return nil, fmt.Errorf("%w: ensemble member %d needs a strategy and a positive weight", ports.ErrConfigurationError, i)
		}
		total += m.Weight
	}
	return &Ensemble{BaseStrategy: base, members: members, threshold: threshold, total: total}, nil
}

// Name returns the name of the strategy
func (e *Ensemble) Name() string {
	names := make([]string, len(e.members))
	for i, m := range e.members {
		names[i] = m.Strategy.Name()
	}
	return "ensemble(" + strings.Join(names, "+") + ")"
}

// Evaluate asks every member and tallies the votes. Stop and target come
// from the strongest member on the winning side, when it supplied them.
func (e *Ensemble) Evaluate(ctx context.Context, window []domain.Bar, currentPrice float64) domain.Signal {
	var long, short float64
	var bestLong, bestShort *domain.Signal
	var bestLongScore, bestShortScore float64
	values := make(map[string]float64)

	for _, m := range e.members {
		sig := m.Strategy.Evaluate(ctx, window, currentPrice)
		if !sig.ShouldEnter {
			continue
		}
		score := m.Weight * clamp01(sig.Confidence)
		switch sig.Direction {
		case domain.Long:
			long += score
			if bestLong == nil || score > bestLongScore {
				s := sig
				bestLong, bestLongScore = &s, score
			}
		case domain.Short:
			short += score
			if bestShort == nil || score > bestShortScore {
				s := sig
				bestShort, bestShortScore = &s, score
			}
		}
	}
	values["vote_long"] = long / e.total
	values["vote_short"] = short / e.total

	net := (long - short) / e.total
	var dir domain.Direction
	var best *domain.Signal
	switch {
	case net >= e.threshold:
		dir, best = domain.Long, bestLong
	case -net >= e.threshold:
		dir, best, net = domain.Short, bestShort, -net
	default:
		return domain.Signal{Direction: domain.Neutral, Reasoning: "no consensus", Indicators: values}
	}

	sig := domain.Signal{
		ShouldEnter: true,
		Direction:   dir,
		Confidence:  clamp01(net),
		EntryPrice:  best.EntryPrice,
		StopLoss:    best.StopLoss,
		TakeProfit:  best.TakeProfit,
		Reasoning:   fmt.Sprintf("ensemble vote %.2f %s, led by: %s", net, dir, best.Reasoning),
		Indicators:  values,
	}
	e.logEntry(ctx, e.Name(), sig)
	return sig
}
