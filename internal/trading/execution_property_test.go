package trading

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"intraday-trader/internal/broker"
	"intraday-trader/internal/config"
	"intraday-trader/internal/models"
)

// Property: an approved quantity never takes on more notional than the
// per-position cap or the account's buying power, and is always positive.
func TestProperty_ApprovedQuantityRespectsLimits(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("qty * entry <= min(cap, buying power)", prop.ForAll(
		func(entry, cap, equity float64) bool {
			pb := broker.NewPaperBroker(equity)
			limits := config.Default().Risk
			limits.MaxPositionNotional = cap
			gate := NewGate(limits, pb, NewBook())

			sig := longSignal("AAPL", entry)
			qty, verdict, _ := gate.Approve(context.Background(), sig)

			if verdict != models.VerdictApproved {
				// Rejection is the correct outcome when even one share
				// does not fit; quantity must then be zero.
				return qty == 0
			}
			notional := float64(qty) * entry
			return qty > 0 && notional <= cap && notional <= equity
		},
		gen.Float64Range(0.5, 2000.0),
		gen.Float64Range(100.0, 50000.0),
		gen.Float64Range(100.0, 200000.0),
	))

	properties.TestingRun(t)
}

// Property: whatever sequence of exits runs, the book never holds two
// positions for the same symbol and Len always matches Symbols.
func TestProperty_BookConsistency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"AAPL", "MSFT", "NVDA", "TSLA"}

	properties.Property("book holds at most one position per symbol", prop.ForAll(
		func(ops []int) bool {
			book := NewBook()
			expected := make(map[string]bool)
			for _, op := range ops {
				symbol := symbols[op%len(symbols)]
				if op%2 == 0 {
					added := book.Add(&ManagedPosition{pos: models.Position{
						Symbol: symbol, Quantity: 1, AvgEntryPrice: 100,
						State: models.PositionFilled,
					}})
					if added == expected[symbol] {
						return false // Add must succeed iff absent
					}
					expected[symbol] = true
				} else {
					book.Remove(symbol)
					expected[symbol] = false
				}
			}

			open := 0
			for _, present := range expected {
				if present {
					open++
				}
			}
			return book.Len() == open && len(book.Symbols()) == open
		},
		gen.SliceOf(gen.IntRange(0, 99)),
	))

	properties.TestingRun(t)
}
