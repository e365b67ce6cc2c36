// Package strategy provides the trade signal generators and the arbiter
// that merges their proposals into at most one actionable signal per
// symbol per cycle.
package strategy

import (
	"intraday-trader/internal/models"
)

// Strategy names, also the fixed arbiter precedence order.
const (
	NameMomentum      = "momentum"
	NameMeanReversion = "mean_reversion"
	NameVWAPBounce    = "vwap_bounce"
)

// Input is the per-symbol, per-cycle data a strategy evaluates. Strategies
// are pure functions of this input.
type Input struct {
	Symbol   string
	Snapshot models.IndicatorSnapshot
	Bars     []models.Bar
}

// LastBar returns the most recent bar, or false when the window is empty.
func (in Input) LastBar() (models.Bar, bool) {
	if len(in.Bars) == 0 {
		return models.Bar{}, false
	}
	return in.Bars[len(in.Bars)-1], true
}

// Strategy generates directional trade proposals. Evaluate returns nil to
// abstain; a strategy must abstain rather than propose a signal below its
// own minimum confirmations count.
type Strategy interface {
	Name() string
	Evaluate(in Input) *models.StrategySignal
}

// levels derives stop and target from the entry using an ATR-scaled stop
// distance and a fixed reward multiple of that distance.
func levels(dir models.Direction, entry, atr, stopATRMult, rewardMult float64) (stop, target float64) {
	dist := atr * stopATRMult
	if dir == models.DirectionLong {
		return entry - dist, entry + dist*rewardMult
	}
	return entry + dist, entry - dist*rewardMult
}
