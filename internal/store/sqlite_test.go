package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"intraday-trader/internal/models"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "decisions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndQueryDecisions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	selected := &models.StrategySignal{
		Strategy: "momentum", Symbol: "AAPL",
		Direction: models.DirectionLong,
		Entry:     105, Stop: 103, Target: 109,
		Confirmations: 6, TotalFactors: 6,
	}

	recs := []models.DecisionRecord{
		{
			Timestamp: base,
			Symbol:    "AAPL",
			Snapshot:  models.IndicatorSnapshot{Symbol: "AAPL", Values: map[string]float64{"close": 104}},
			Scores:    []models.ConfidenceScore{{Symbol: "AAPL", Direction: models.DirectionLong, Value: 50}},
			Verdict:   models.VerdictNoSignal,
			Reason:    "no strategy proposals",
		},
		{
			Timestamp: base.Add(10 * time.Second),
			Symbol:    "AAPL",
			Snapshot:  models.IndicatorSnapshot{Symbol: "AAPL", Values: map[string]float64{"close": 105}},
			Scores:    []models.ConfidenceScore{{Symbol: "AAPL", Direction: models.DirectionLong, Value: 87.5}},
			Proposals: []models.StrategySignal{*selected},
			Selected:  selected,
			Verdict:   models.VerdictApproved,
			Reason:    "approved 238 @ 105.00",
			Quantity:  238,
		},
		{
			Timestamp: base,
			Symbol:    "MSFT",
			Snapshot:  models.IndicatorSnapshot{Symbol: "MSFT", Values: map[string]float64{}},
			Verdict:   models.VerdictNoSignal,
			Reason:    "insufficient bars",
		},
	}
	for _, rec := range recs {
		if err := s.SaveDecision(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentDecisions(ctx, "AAPL", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d decisions, want 2", len(got))
	}

	// Newest first.
	if got[0].Verdict != models.VerdictApproved {
		t.Errorf("verdict = %s, want APPROVED", got[0].Verdict)
	}
	if got[0].Selected == nil || got[0].Selected.Strategy != "momentum" {
		t.Errorf("selected = %+v", got[0].Selected)
	}
	if got[0].Quantity != 238 {
		t.Errorf("quantity = %d, want 238", got[0].Quantity)
	}
	if got[1].Selected != nil {
		t.Errorf("no-signal record must round-trip a nil selection")
	}
	if v, ok := got[1].Snapshot.Get("close"); !ok || v != 104 {
		t.Errorf("snapshot close = %v ok=%v", v, ok)
	}
}

func TestRecentDecisionsRespectsLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := models.DecisionRecord{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Symbol:    "AAPL",
			Snapshot:  models.IndicatorSnapshot{Symbol: "AAPL", Values: map[string]float64{}},
			Verdict:   models.VerdictNoSignal,
		}
		if err := s.SaveDecision(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentDecisions(ctx, "AAPL", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d, want 3", len(got))
	}
	if !got[0].Timestamp.After(got[2].Timestamp) {
		t.Error("decisions must be ordered newest first")
	}
}
