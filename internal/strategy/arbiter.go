package strategy

import (
	"fmt"

	"intraday-trader/internal/models"
)

// priority is the fixed, documented strategy precedence used to break
// confirmation-ratio ties. Lower is higher priority.
var priority = map[string]int{
	NameMomentum:      0,
	NameMeanReversion: 1,
	NameVWAPBounce:    2,
}

// Arbiter merges strategy proposals with confidence scores and emits at
// most one actionable signal per symbol per cycle.
type Arbiter struct {
	minConfidence    float64
	minConfirmations int
}

// NewArbiter creates an arbiter with the given minimum confidence
// threshold and account-level confirmation floor. The floor applies on
// top of each strategy's own abstain minimum.
func NewArbiter(minConfidence float64, minConfirmations int) *Arbiter {
	return &Arbiter{minConfidence: minConfidence, minConfirmations: minConfirmations}
}

// Decide applies the arbitration rules in order: discard proposals whose
// direction's confidence is below threshold or whose confirmation count is
// below the floor; among agreeing survivors keep the highest confirmations
// ratio (ties by strategy precedence); opposing survivors cancel each
// other, emitting nothing. The returned reason explains the outcome for
// the decision log.
func (a *Arbiter) Decide(proposals []models.StrategySignal, scores map[models.Direction]models.ConfidenceScore) (*models.StrategySignal, string) {
	if len(proposals) == 0 {
		return nil, "no strategy proposals"
	}

	survivors := make([]models.StrategySignal, 0, len(proposals))
	for _, p := range proposals {
		score, ok := scores[p.Direction]
		if !ok || score.Value < a.minConfidence {
			continue
		}
		if p.Confirmations < a.minConfirmations {
			continue
		}
		survivors = append(survivors, p)
	}
	if len(survivors) == 0 {
		return nil, fmt.Sprintf("all %d proposals below confidence %.1f or confirmation floor %d", len(proposals), a.minConfidence, a.minConfirmations)
	}

	// Directional conflict means insufficient conviction, never a vote.
	dir := survivors[0].Direction
	for _, p := range survivors[1:] {
		if p.Direction != dir {
			return nil, "strategies disagree on direction"
		}
	}

	best := survivors[0]
	for _, p := range survivors[1:] {
		if p.Ratio() > best.Ratio() {
			best = p
			continue
		}
		if p.Ratio() == best.Ratio() && priority[p.Strategy] < priority[best.Strategy] {
			best = p
		}
	}

	return &best, fmt.Sprintf("selected %s %d/%d", best.Strategy, best.Confirmations, best.TotalFactors)
}
