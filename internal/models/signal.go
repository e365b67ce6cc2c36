package models

import "time"

// IndicatorSnapshot holds the per-symbol indicator values computed for one
// cycle. An indicator whose lookback exceeds the available bar window is
// absent from Values; consumers must treat absence as unknown, never as zero.
type IndicatorSnapshot struct {
	Symbol    string
	Timestamp time.Time
	Values    map[string]float64
}

// Get returns the named indicator value and whether it was computed.
func (s IndicatorSnapshot) Get(name string) (float64, bool) {
	v, ok := s.Values[name]
	return v, ok
}

// Factor is one boolean technical condition contributing to a confidence score.
type Factor struct {
	Name string
	Met  bool
}

// ConfidenceScore is a 0-100 measure of how many predefined technical
// conditions hold for a symbol and candidate direction. Recomputed every
// cycle, never mutated.
type ConfidenceScore struct {
	Symbol    string
	Direction Direction
	Value     float64
	Factors   []Factor
}

// MetCount returns how many factors were met.
func (c ConfidenceScore) MetCount() int {
	n := 0
	for _, f := range c.Factors {
		if f.Met {
			n++
		}
	}
	return n
}

// StrategySignal is a directional trade proposal from one strategy generator.
type StrategySignal struct {
	Strategy      string
	Symbol        string
	Direction     Direction
	Entry         float64
	Stop          float64
	Target        float64
	Confirmations int
	TotalFactors  int
	Rationale     string
}

// Ratio returns the confirmations-met ratio in [0, 1].
func (s StrategySignal) Ratio() float64 {
	if s.TotalFactors == 0 {
		return 0
	}
	return float64(s.Confirmations) / float64(s.TotalFactors)
}

// GateVerdict is the risk gate's outcome for an actionable signal.
type GateVerdict string

const (
	VerdictApproved GateVerdict = "APPROVED"
	VerdictRejected GateVerdict = "REJECTED"
	VerdictNoSignal GateVerdict = "NO_SIGNAL"
)

// DecisionRecord is one structured decision-log entry per cycle per symbol.
// The decision log is the only sanctioned channel for downstream analytics.
type DecisionRecord struct {
	Timestamp time.Time
	Symbol    string
	Snapshot  IndicatorSnapshot
	Scores    []ConfidenceScore
	Proposals []StrategySignal
	Selected  *StrategySignal
	Verdict   GateVerdict
	Reason    string
	Quantity  int
}
