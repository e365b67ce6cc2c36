package strategy

import (
	"strings"
	"testing"

	"intraday-trader/internal/models"
)

func proposal(name string, dir models.Direction, met, total int) models.StrategySignal {
	return models.StrategySignal{
		Strategy:      name,
		Symbol:        "AAPL",
		Direction:     dir,
		Entry:         100,
		Stop:          98,
		Target:        104,
		Confirmations: met,
		TotalFactors:  total,
	}
}

func scoreMap(long, short float64) map[models.Direction]models.ConfidenceScore {
	return map[models.Direction]models.ConfidenceScore{
		models.DirectionLong:  {Direction: models.DirectionLong, Value: long},
		models.DirectionShort: {Direction: models.DirectionShort, Value: short},
	}
}

func TestArbiterNoProposals(t *testing.T) {
	a := NewArbiter(62.5, 4)
	sig, reason := a.Decide(nil, scoreMap(80, 20))
	if sig != nil {
		t.Fatalf("expected no signal, got %+v", sig)
	}
	if reason == "" {
		t.Error("expected a reason for the decision log")
	}
}

func TestArbiterBelowThresholdDiscarded(t *testing.T) {
	a := NewArbiter(62.5, 4)
	proposals := []models.StrategySignal{
		proposal(NameMomentum, models.DirectionLong, 5, 6),
	}
	sig, _ := a.Decide(proposals, scoreMap(50, 25))
	if sig != nil {
		t.Fatalf("below-threshold proposal must be discarded, got %+v", sig)
	}
}

func TestArbiterEnforcesConfirmationFloor(t *testing.T) {
	a := NewArbiter(50, 5)
	proposals := []models.StrategySignal{
		proposal(NameMomentum, models.DirectionLong, 4, 6),
	}
	// Confidence clears the threshold but the confirmation count is below
	// the account-level floor.
	sig, reason := a.Decide(proposals, scoreMap(75, 25))
	if sig != nil {
		t.Fatalf("proposal below confirmation floor must be discarded, got %+v", sig)
	}
	if !strings.Contains(reason, "confirmation floor") {
		t.Errorf("unexpected reason %q", reason)
	}

	// The same proposal passes once it meets the floor.
	proposals[0].Confirmations = 5
	sig, _ = a.Decide(proposals, scoreMap(75, 25))
	if sig == nil {
		t.Fatal("proposal at the floor must survive")
	}
}

func TestArbiterOpposingDirectionsCancel(t *testing.T) {
	a := NewArbiter(50, 4)
	proposals := []models.StrategySignal{
		proposal(NameMomentum, models.DirectionLong, 5, 6),
		proposal(NameMeanReversion, models.DirectionShort, 5, 5),
	}
	// Both directions score above threshold; the conflict still cancels.
	sig, reason := a.Decide(proposals, scoreMap(75, 75))
	if sig != nil {
		t.Fatalf("opposing proposals must cancel, got %+v", sig)
	}
	if reason != "strategies disagree on direction" {
		t.Errorf("unexpected reason %q", reason)
	}
}

func TestArbiterHighestRatioWins(t *testing.T) {
	a := NewArbiter(62.5, 4)
	proposals := []models.StrategySignal{
		proposal(NameMomentum, models.DirectionLong, 4, 6),      // 0.67
		proposal(NameMeanReversion, models.DirectionLong, 5, 5), // 1.00
	}
	sig, _ := a.Decide(proposals, scoreMap(75, 12.5))
	if sig == nil {
		t.Fatal("expected a selected signal")
	}
	// Ratio beats strategy precedence.
	if sig.Strategy != NameMeanReversion {
		t.Errorf("selected %s, want %s", sig.Strategy, NameMeanReversion)
	}
}

func TestArbiterTieBrokenByPrecedence(t *testing.T) {
	a := NewArbiter(62.5, 4)
	proposals := []models.StrategySignal{
		proposal(NameVWAPBounce, models.DirectionLong, 4, 5), // 0.8
		proposal(NameMomentum, models.DirectionLong, 4, 5),   // 0.8
	}
	sig, _ := a.Decide(proposals, scoreMap(75, 12.5))
	if sig == nil {
		t.Fatal("expected a selected signal")
	}
	if sig.Strategy != NameMomentum {
		t.Errorf("tie must go to momentum, got %s", sig.Strategy)
	}
}

func TestArbiterSurvivorAfterFilterWins(t *testing.T) {
	a := NewArbiter(62.5, 4)
	proposals := []models.StrategySignal{
		proposal(NameMomentum, models.DirectionLong, 5, 6),
		proposal(NameMeanReversion, models.DirectionShort, 5, 5),
	}
	// Short confidence is below threshold, so only the long survives and
	// no conflict remains.
	sig, _ := a.Decide(proposals, scoreMap(75, 25))
	if sig == nil {
		t.Fatal("expected surviving long proposal to be selected")
	}
	if sig.Strategy != NameMomentum || sig.Direction != models.DirectionLong {
		t.Errorf("selected %s %s, want momentum LONG", sig.Strategy, sig.Direction)
	}
}
