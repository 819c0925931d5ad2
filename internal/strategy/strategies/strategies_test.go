package strategies

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

// MockLogger implements ports.Logger for testing
type MockLogger struct {
	debugs int
}

func (m *MockLogger) Debug(ctx context.Context, msg string, fields ...ports.Fields) { m.debugs++ }
func (m *MockLogger) Info(ctx context.Context, msg string, fields ...ports.Fields)  {}
func (m *MockLogger) Warn(ctx context.Context, msg string, fields ...ports.Fields)  {}
func (m *MockLogger) Error(ctx context.Context, err error, msg string, fields ...ports.Fields) {
}

func closes(values ...float64) []domain.Bar {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(values))
	for i, v := range values {
		bars[i] = domain.Bar{Time: start.Add(time.Duration(i) * time.Minute), Open: v, High: v, Low: v, Close: v}
	}
	return bars
}

func last(bars []domain.Bar) float64 {
	return bars[len(bars)-1].Close
}

func TestNewTrend_Validation(t *testing.T) {
	log := &MockLogger{}

	_, err := NewTrend(DefaultTrendConfig(), log)
	require.NoError(t, err)

	_, err = NewTrend(DefaultTrendConfig(), nil)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	cfg := DefaultTrendConfig()
	cfg.FastPeriod = 21
	_, err = NewTrend(cfg, log)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	cfg = DefaultTrendConfig()
	cfg.RSIOversold = 80
	_, err = NewTrend(cfg, log)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestTrend_Evaluate(t *testing.T) {
	cfg := TrendConfig{FastPeriod: 2, SlowPeriod: 4}
	flat := []float64{10, 10, 10, 10, 10, 10, 10, 10}

	tests := []struct {
		name       string
		allowShort bool
		bars       []domain.Bar
		enter      bool
		direction  domain.Direction
	}{
		{"warming up", false, closes(10, 10, 10), false, domain.Neutral},
		{"bullish crossover", false, closes(append(flat, 12)...), true, domain.Long},
		{"bearish crossover without shorts", false, closes(append(flat, 8)...), false, domain.Neutral},
		{"bearish crossover with shorts", true, closes(append(flat, 8)...), true, domain.Short},
		{"steady uptrend has no fresh cross", false, closes(10, 11, 12, 13, 14, 15, 16, 17, 18), false, domain.Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.AllowShort = tt.allowShort
			s, err := NewTrend(c, &MockLogger{})
			require.NoError(t, err)

			sig := s.Evaluate(context.Background(), tt.bars, last(tt.bars))
			assert.Equal(t, tt.enter, sig.ShouldEnter)
			assert.Equal(t, tt.direction, sig.Direction)
			if tt.enter {
				assert.Greater(t, sig.Confidence, 0.0)
				assert.LessOrEqual(t, sig.Confidence, 1.0)
				assert.Nil(t, sig.StopLoss)
				assert.Contains(t, sig.Indicators, "ema_fast")
			}
		})
	}
}

func TestTrend_Filters(t *testing.T) {
	bars := closes(10, 10, 10, 10, 10, 10, 10, 10, 12)

	// RSI is 100 after a single up move: the overbought filter blocks it
	s, err := NewTrend(TrendConfig{FastPeriod: 2, SlowPeriod: 4, RSIPeriod: 2, RSIOverbought: 70, RSIOversold: 30}, &MockLogger{})
	require.NoError(t, err)
	sig := s.Evaluate(context.Background(), bars, 12)
	assert.False(t, sig.ShouldEnter)
	assert.Equal(t, 100.0, sig.Indicators["rsi"])

	// price below the trend SMA blocks a long
	s, err = NewTrend(TrendConfig{FastPeriod: 2, SlowPeriod: 4, TrendPeriod: 3}, &MockLogger{})
	require.NoError(t, err)
	sig = s.Evaluate(context.Background(), bars, 9)
	assert.False(t, sig.ShouldEnter)
}

func TestTrend_DoesNotMutateWindow(t *testing.T) {
	bars := closes(10, 10, 10, 10, 10, 10, 10, 10, 12)
	snapshot := append([]domain.Bar(nil), bars...)

	s, err := NewTrend(TrendConfig{FastPeriod: 2, SlowPeriod: 4}, &MockLogger{})
	require.NoError(t, err)
	first := s.Evaluate(context.Background(), bars, 12)
	second := s.Evaluate(context.Background(), bars, 12)

	assert.Equal(t, snapshot, bars)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(s.Name(), "trend_ema_2_4"))
}

func TestOscillator_Evaluate(t *testing.T) {
	s, err := NewOscillator(OscillatorConfig{RSIPeriod: 2, Oversold: 30, Overbought: 70, AllowShort: true}, &MockLogger{})
	require.NoError(t, err)

	// RSI 0, 0, then 60 after the bounce
	sig := s.Evaluate(context.Background(), closes(10, 9, 8, 7, 8.5), 8.5)
	assert.True(t, sig.ShouldEnter)
	assert.Equal(t, domain.Long, sig.Direction)
	assert.InDelta(t, 60.0, sig.Indicators["rsi"], 1e-9)

	// RSI 100, 100, then 40 after the drop
	sig = s.Evaluate(context.Background(), closes(10, 11, 12, 13, 11.5), 11.5)
	assert.True(t, sig.ShouldEnter)
	assert.Equal(t, domain.Short, sig.Direction)
	assert.InDelta(t, 40.0, sig.Indicators["rsi"], 1e-9)

	sig = s.Evaluate(context.Background(), closes(10, 10, 10, 10, 10), 10)
	assert.False(t, sig.ShouldEnter)
	assert.Equal(t, 50.0, sig.Indicators["rsi"])

	sig = s.Evaluate(context.Background(), closes(10, 11), 11)
	assert.Equal(t, "warming up", sig.Reasoning)
}

func TestOscillator_ShortsDisabled(t *testing.T) {
	s, err := NewOscillator(OscillatorConfig{RSIPeriod: 2, Oversold: 30, Overbought: 70}, &MockLogger{})
	require.NoError(t, err)
	sig := s.Evaluate(context.Background(), closes(10, 11, 12, 13, 11.5), 11.5)
	assert.False(t, sig.ShouldEnter)

	_, err = NewOscillator(OscillatorConfig{RSIPeriod: 2, Oversold: 70, Overbought: 30}, &MockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

type fixedStrategy struct {
	name string
	sig  domain.Signal
}

func (f fixedStrategy) Name() string { return f.name }

func (f fixedStrategy) Evaluate(context.Context, []domain.Bar, float64) domain.Signal {
	return f.sig
}

func TestEnsemble_Vote(t *testing.T) {
	bull := fixedStrategy{"bull", domain.Signal{ShouldEnter: true, Direction: domain.Long, Confidence: 1, StopLoss: domain.Price(95), Reasoning: "up"}}
	bear := fixedStrategy{"bear", domain.Signal{ShouldEnter: true, Direction: domain.Short, Confidence: 0.5, Reasoning: "down"}}
	idle := fixedStrategy{"idle", domain.NeutralSignal("nothing")}
	bars := closes(100, 100)

	e, err := NewEnsemble([]Member{{bull, 2}, {bear, 1}, {idle, 1}}, 0.3, &MockLogger{})
	require.NoError(t, err)
	assert.Equal(t, "ensemble(bull+bear+idle)", e.Name())

	sig := e.Evaluate(context.Background(), bars, 100)
	require.True(t, sig.ShouldEnter)
	assert.Equal(t, domain.Long, sig.Direction)
	assert.InDelta(t, (2-0.5)/4.0, sig.Confidence, 1e-12)
	require.NotNil(t, sig.StopLoss)
	assert.Equal(t, 95.0, *sig.StopLoss)

	strict, err := NewEnsemble([]Member{{bull, 2}, {bear, 1}, {idle, 1}}, 0.5, &MockLogger{})
	require.NoError(t, err)
	assert.False(t, strict.Evaluate(context.Background(), bars, 100).ShouldEnter)

	bears, err := NewEnsemble([]Member{{bear, 1}}, 0.5, &MockLogger{})
	require.NoError(t, err)
	sig = bears.Evaluate(context.Background(), bars, 100)
	assert.Equal(t, domain.Short, sig.Direction)
}

func TestNewEnsemble_Validation(t *testing.T) {
	_, err := NewEnsemble(nil, 0.5, &MockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewEnsemble([]Member{{fixedStrategy{name: "a"}, 0}}, 0.5, &MockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewEnsemble([]Member{{fixedStrategy{name: "a"}, 1}}, 1.5, &MockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}
