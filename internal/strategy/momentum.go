package strategy

import (
	"fmt"

	"intraday-trader/internal/analysis/indicators"
	"intraday-trader/internal/config"
	"intraday-trader/internal/models"
)

// Momentum is the trend-continuation strategy: it confirms trend direction
// via moving-average ordering, MACD cross, and volume expansion.
type Momentum struct {
	cfg     config.StrategyConfig
	scoring config.ScoringConfig
}

// NewMomentum creates the momentum strategy.
func NewMomentum(cfg config.StrategyConfig, scoring config.ScoringConfig) *Momentum {
	return &Momentum{cfg: cfg, scoring: scoring}
}

func (m *Momentum) Name() string {
	return NameMomentum
}

func (m *Momentum) Evaluate(in Input) *models.StrategySignal {
	snap := in.Snapshot
	price, okPrice := snap.Get(indicators.KeyClose)
	fast, okFast := snap.Get(indicators.KeyEMAFast)
	slow, okSlow := snap.Get(indicators.KeyEMASlow)
	atr, okATR := snap.Get(indicators.KeyATR)
	if !okPrice || !okFast || !okSlow || !okATR || fast == slow {
		return nil
	}

	dir := models.DirectionLong
	if fast < slow {
		dir = models.DirectionShort
	}
	long := dir == models.DirectionLong

	const total = 6
	met := 0

	// Moving-average ordering defines the candidate; it also counts.
	met++

	if (long && price > fast) || (!long && price < fast) {
		met++
	}

	hist, okHist := snap.Get(indicators.KeyMACDHist)
	if okHist && ((long && hist > 0) || (!long && hist < 0)) {
		met++
	}

	if age, ok := snap.Get(indicators.KeyMACDCrossAge); ok && okHist {
		if int(age) <= m.scoring.FreshCrossBars && ((long && hist > 0) || (!long && hist < 0)) {
			met++
		}
	}

	if rv, ok := snap.Get(indicators.KeyRelVolume); ok && rv >= m.scoring.RelVolumeThreshold {
		met++
	}

	if vwap, ok := snap.Get(indicators.KeyVWAP); ok {
		if (long && price > vwap) || (!long && price < vwap) {
			met++
		}
	}

	if met < m.cfg.MinConfirmations {
		return nil
	}

	stop, target := levels(dir, price, atr, m.cfg.StopATRMultiple, m.cfg.RewardMultiple)
	return &models.StrategySignal{
		Strategy:      NameMomentum,
		Symbol:        in.Symbol,
		Direction:     dir,
		Entry:         price,
		Stop:          stop,
		Target:        target,
		Confirmations: met,
		TotalFactors:  total,
		Rationale:     fmt.Sprintf("trend continuation %s: %d/%d confirmations", dir, met, total),
	}
}
