package strategy

import (
	"fmt"
	"math"

	"intraday-trader/internal/analysis/indicators"
	"intraday-trader/internal/config"
	"intraday-trader/internal/models"
)

// VWAPBounce trades price reacting off the session volume-weighted average
// with volume confirmation.
type VWAPBounce struct {
	cfg     config.StrategyConfig
	scoring config.ScoringConfig
}

// NewVWAPBounce creates the VWAP-level bounce strategy.
func NewVWAPBounce(cfg config.StrategyConfig, scoring config.ScoringConfig) *VWAPBounce {
	return &VWAPBounce{cfg: cfg, scoring: scoring}
}

func (v *VWAPBounce) Name() string {
	return NameVWAPBounce
}

func (v *VWAPBounce) Evaluate(in Input) *models.StrategySignal {
	snap := in.Snapshot
	price, okPrice := snap.Get(indicators.KeyClose)
	vwap, okVWAP := snap.Get(indicators.KeyVWAP)
	atr, okATR := snap.Get(indicators.KeyATR)
	bar, okBar := in.LastBar()
	if !okPrice || !okVWAP || !okATR || !okBar || price == vwap {
		return nil
	}

	// Candidate direction: the side of the VWAP the close holds.
	dir := models.DirectionLong
	if price < vwap {
		dir = models.DirectionShort
	}
	long := dir == models.DirectionLong

	const total = 5
	met := 0

	// The bar actually touched the level.
	if (long && bar.Low <= vwap) || (!long && bar.High >= vwap) {
		met++
	}

	// The close rejected the level.
	if (long && price > vwap) || (!long && price < vwap) {
		met++
	}

	// Rejection bar closes in the bounce direction.
	if (long && bar.Close > bar.Open) || (!long && bar.Close < bar.Open) {
		met++
	}

	if rv, ok := snap.Get(indicators.KeyRelVolume); ok && rv >= v.scoring.RelVolumeThreshold {
		met++
	}

	// The reaction happened near the level, not far from it.
	if atr > 0 && math.Abs(price-vwap) <= atr {
		met++
	}

	if met < v.cfg.MinConfirmations {
		return nil
	}

	stop, target := levels(dir, price, atr, v.cfg.StopATRMultiple, v.cfg.RewardMultiple)
	return &models.StrategySignal{
		Strategy:      NameVWAPBounce,
		Symbol:        in.Symbol,
		Direction:     dir,
		Entry:         price,
		Stop:          stop,
		Target:        target,
		Confirmations: met,
		TotalFactors:  total,
		Rationale:     fmt.Sprintf("vwap bounce %s: %d/%d confirmations", dir, met, total),
	}
}
