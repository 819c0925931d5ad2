package domain

// Signal is a strategy's decision for the current bar.
type Signal struct {
	ShouldEnter bool
	Direction   Direction
	Confidence  float64 // 0.0 - 1.0
	EntryPrice  float64 // 0 means "enter at the bar close"
	StopLoss    *float64
	TakeProfit  *float64
	Reasoning   string
	Indicators  map[string]float64 // Optional snapshot of the values behind the decision
}

// NeutralSignal returns a signal that never enters.
func NeutralSignal(reason string) Signal {
	return Signal{Direction: Neutral, Reasoning: reason}
}

// Price returns a pointer to p, for the optional Signal fields.
func Price(p float64) *float64 {
	return &p
}
