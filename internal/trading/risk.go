package trading

import (
	"context"
	"fmt"
	"math"

	"intraday-trader/internal/broker"
	"intraday-trader/internal/config"
	"intraday-trader/internal/models"
)

// Gate validates an actionable signal against account-level risk
// constraints and computes the final order quantity. Any failed check
// rejects the signal with the specific reason recorded for audit.
type Gate struct {
	limits config.RiskLimits
	broker broker.Broker
	book   *Book
}

// NewGate creates a risk and sizing gate.
func NewGate(limits config.RiskLimits, b broker.Broker, book *Book) *Gate {
	return &Gate{limits: limits, broker: b, book: book}
}

// Approve checks the signal against every risk constraint. It returns the
// approved quantity, or zero with a rejection reason.
func (g *Gate) Approve(ctx context.Context, sig models.StrategySignal) (qty int, verdict models.GateVerdict, reason string) {
	if sig.Entry <= 0 {
		return 0, models.VerdictRejected, "non-positive entry price"
	}

	if _, open := g.book.Get(sig.Symbol); open {
		return 0, models.VerdictRejected, fmt.Sprintf("position already open for %s", sig.Symbol)
	}

	if g.book.Len() >= g.limits.MaxConcurrentPositions {
		return 0, models.VerdictRejected, fmt.Sprintf("max concurrent positions reached (%d)", g.limits.MaxConcurrentPositions)
	}

	acct, err := g.broker.GetAccount(ctx)
	if err != nil {
		return 0, models.VerdictRejected, fmt.Sprintf("account unavailable: %v", err)
	}

	if g.limits.MaxDayTrades > 0 && acct.DayTrades >= g.limits.MaxDayTrades {
		return 0, models.VerdictRejected, fmt.Sprintf("day-trade limit reached (%d)", g.limits.MaxDayTrades)
	}

	// Quantity: per-position notional cap divided by entry, never
	// exceeding available buying power.
	qty = int(math.Floor(g.limits.MaxPositionNotional / sig.Entry))
	if maxAffordable := int(math.Floor(acct.BuyingPower / sig.Entry)); qty > maxAffordable {
		qty = maxAffordable
	}
	if qty <= 0 {
		return 0, models.VerdictRejected, "sized quantity is zero"
	}

	notional := float64(qty) * sig.Entry
	if notional > g.limits.MaxPositionNotional {
		return 0, models.VerdictRejected, fmt.Sprintf("projected notional %.2f exceeds cap %.2f", notional, g.limits.MaxPositionNotional)
	}

	if g.limits.MaxConcentration > 0 {
		totalAfter := g.book.TotalNotional() + notional
		if totalAfter > 0 {
			concentration := notional / totalAfter
			if concentration > g.limits.MaxConcentration && g.book.Len() > 0 {
				return 0, models.VerdictRejected, fmt.Sprintf("concentration %.2f exceeds limit %.2f", concentration, g.limits.MaxConcentration)
			}
		}
	}

	return qty, models.VerdictApproved, fmt.Sprintf("approved %d @ %.2f", qty, sig.Entry)
}
