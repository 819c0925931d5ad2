package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	debugMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...ports.Fields) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...ports.Fields) {}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...ports.Fields) {}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...ports.Fields) {}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		strategy   string
		params     Params
		wantErr    bool
		wantName string
	}{
		{"trend defaults", Trend, nil, false, "trend_ema_9_21"},
		{"trend custom", Trend, Params{"fast_period": 5, "slow_period": 20, "allow_short": 1}, false, "trend_ema_5_20"},
		{"trend invalid periods", Trend, Params{"fast_period": 30, "slow_period": 20}, true, ""},
		{"oscillator", Oscillator, Params{"rsi_period": 7}, false, "rsi_7_30_70"},
		{"oscillator bad bands", Oscillator, Params{"rsi_oversold": 80}, true, ""},
		{"ensemble", Ensemble, Params{"threshold": 0.5}, false, "ensemble(trend_ema_9_21+rsi_14_30_70)"},
		{"ensemble bad threshold", Ensemble, Params{"threshold": 2}, true, ""},
		{"unknown", "martingale", nil, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.strategy, tt.params, &mockLogger{})
			if tt.wantErr {
				assert.ErrorIs(t, err, ports.ErrConfigurationError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, s.Name())
		})
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{Ensemble, Oscillator, Trend}, r.List())

	r.Register("always_long", func(Params, ports.Logger) (ports.Strategy, error) {
		return stubStrategy{}, nil
	})
	s, err := r.Build("always_long", nil, &mockLogger{})
	require.NoError(t, err)
	sig := s.Evaluate(context.Background(), nil, 0)
	assert.Equal(t, domain.Long, sig.Direction)

	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestParams(t *testing.T) {
	p := Params{"a": 2.7, "flag": 1}
	assert.Equal(t, 2, p.Int("a", 0))
	assert.Equal(t, 5, p.Int("b", 5))
	assert.Equal(t, 2.7, p.Float("a", 0))
	assert.True(t, p.Bool("flag", false))
	assert.True(t, p.Bool("missing", true))

	c := p.Clone()
	c["a"] = 1
	assert.Equal(t, 2.7, p["a"])
}

type stubStrategy struct{}

func (stubStrategy) Name() string { return "always_long" }

func (stubStrategy) Evaluate(context.Context, []domain.Bar, float64) domain.Signal {
	return domain.Signal{ShouldEnter: true, Direction: domain.Long}
}
