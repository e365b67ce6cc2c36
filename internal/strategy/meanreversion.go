package strategy

import (
	"fmt"
	"math"

	"intraday-trader/internal/analysis/indicators"
	"intraday-trader/internal/config"
	"intraday-trader/internal/models"
)

// MeanReversion fades an extended move away from the Bollinger band when
// the oscillator implies a reversal.
type MeanReversion struct {
	cfg     config.StrategyConfig
	scoring config.ScoringConfig
}

// NewMeanReversion creates the mean-reversion strategy.
func NewMeanReversion(cfg config.StrategyConfig, scoring config.ScoringConfig) *MeanReversion {
	return &MeanReversion{cfg: cfg, scoring: scoring}
}

func (m *MeanReversion) Name() string {
	return NameMeanReversion
}

func (m *MeanReversion) Evaluate(in Input) *models.StrategySignal {
	snap := in.Snapshot
	price, okPrice := snap.Get(indicators.KeyClose)
	upper, okUpper := snap.Get(indicators.KeyBBUpper)
	lower, okLower := snap.Get(indicators.KeyBBLower)
	middle, okMiddle := snap.Get(indicators.KeyBBMiddle)
	atr, okATR := snap.Get(indicators.KeyATR)
	if !okPrice || !okUpper || !okLower || !okMiddle || !okATR {
		return nil
	}

	// Candidate direction: fade the band the price has broken.
	var dir models.Direction
	switch {
	case price < lower:
		dir = models.DirectionLong
	case price > upper:
		dir = models.DirectionShort
	default:
		return nil
	}
	long := dir == models.DirectionLong

	const total = 5
	met := 1 // price beyond the band

	if rsi, ok := snap.Get(indicators.KeyRSI); ok {
		if (long && rsi <= m.scoring.RSIOversold) || (!long && rsi >= m.scoring.RSIOverbought) {
			met++
		}
	}

	// Reversal bar: the latest bar closes against the extension.
	if bar, ok := in.LastBar(); ok {
		if (long && bar.Close > bar.Open) || (!long && bar.Close < bar.Open) {
			met++
		}
	}

	// Participation has not dried up.
	if rv, ok := snap.Get(indicators.KeyRelVolume); ok && rv >= 1.0 {
		met++
	}

	// The move is genuinely extended relative to volatility.
	if atr > 0 && math.Abs(price-middle) >= 1.5*atr {
		met++
	}

	if met < m.cfg.MinConfirmations {
		return nil
	}

	stop, _ := levels(dir, price, atr, m.cfg.StopATRMultiple, m.cfg.RewardMultiple)
	// Target reverts toward the midline, capped by the reward multiple.
	dist := math.Abs(price - stop)
	target := middle
	if long && target > price+dist*m.cfg.RewardMultiple {
		target = price + dist*m.cfg.RewardMultiple
	} else if !long && target < price-dist*m.cfg.RewardMultiple {
		target = price - dist*m.cfg.RewardMultiple
	}

	return &models.StrategySignal{
		Strategy:      NameMeanReversion,
		Symbol:        in.Symbol,
		Direction:     dir,
		Entry:         price,
		Stop:          stop,
		Target:        target,
		Confirmations: met,
		TotalFactors:  total,
		Rationale:     fmt.Sprintf("band fade %s: %d/%d confirmations", dir, met, total),
	}
}
