// Package scoring combines indicator snapshots into bounded directional
// confidence scores.
package scoring

import (
	"intraday-trader/internal/analysis/indicators"
	"intraday-trader/internal/config"
	"intraday-trader/internal/models"
)

// Factor names, evaluated in this fixed order.
const (
	FactorPriceAboveFastEMA = "price_vs_fast_ema"
	FactorEMAAlignment      = "ema_alignment"
	FactorRSINotExtreme     = "rsi_not_extreme"
	FactorMACDAgrees        = "macd_agrees"
	FactorPriceVsVWAP       = "price_vs_vwap"
	FactorVolumeExpansion   = "volume_expansion"
	FactorFreshCross        = "fresh_macd_cross"
	FactorBollingerSide     = "bollinger_side"
)

// ConfidenceScorer evaluates a fixed ordered list of boolean factors
// against an indicator snapshot and a candidate direction. The score is
// 100 x (factors met / total factors). A factor whose underlying indicator
// is missing counts as not met; missing data never inflates confidence.
type ConfidenceScorer struct {
	cfg config.ScoringConfig
}

// NewConfidenceScorer creates a scorer with the given tunables.
func NewConfidenceScorer(cfg config.ScoringConfig) *ConfidenceScorer {
	return &ConfidenceScorer{cfg: cfg}
}

// Score computes the confidence score for one snapshot and direction.
func (s *ConfidenceScorer) Score(snap models.IndicatorSnapshot, dir models.Direction) models.ConfidenceScore {
	long := dir == models.DirectionLong
	price, hasPrice := snap.Get(indicators.KeyClose)

	factors := make([]models.Factor, 0, 8)
	add := func(name string, met bool) {
		factors = append(factors, models.Factor{Name: name, Met: met})
	}

	// 1. Price on the trend side of the fast EMA.
	if fast, ok := snap.Get(indicators.KeyEMAFast); ok && hasPrice {
		add(FactorPriceAboveFastEMA, (long && price > fast) || (!long && price < fast))
	} else {
		add(FactorPriceAboveFastEMA, false)
	}

	// 2. Fast EMA on the trend side of the slow EMA.
	fast, okFast := snap.Get(indicators.KeyEMAFast)
	slow, okSlow := snap.Get(indicators.KeyEMASlow)
	if okFast && okSlow {
		add(FactorEMAAlignment, (long && fast > slow) || (!long && fast < slow))
	} else {
		add(FactorEMAAlignment, false)
	}

	// 3. Oscillator not in exhaustion territory for the direction.
	if rsi, ok := snap.Get(indicators.KeyRSI); ok {
		add(FactorRSINotExtreme, (long && rsi < s.cfg.RSIOverbought) || (!long && rsi > s.cfg.RSIOversold))
	} else {
		add(FactorRSINotExtreme, false)
	}

	// 4. MACD histogram agrees with the direction.
	hist, okHist := snap.Get(indicators.KeyMACDHist)
	if okHist {
		add(FactorMACDAgrees, (long && hist > 0) || (!long && hist < 0))
	} else {
		add(FactorMACDAgrees, false)
	}

	// 5. Price on the correct side of the session VWAP.
	if vwap, ok := snap.Get(indicators.KeyVWAP); ok && hasPrice {
		add(FactorPriceVsVWAP, (long && price > vwap) || (!long && price < vwap))
	} else {
		add(FactorPriceVsVWAP, false)
	}

	// 6. Relative volume above the expansion threshold.
	if rv, ok := snap.Get(indicators.KeyRelVolume); ok {
		add(FactorVolumeExpansion, rv >= s.cfg.RelVolumeThreshold)
	} else {
		add(FactorVolumeExpansion, false)
	}

	// 7. Fresh MACD cross in the signal direction within the lookback.
	if age, ok := snap.Get(indicators.KeyMACDCrossAge); ok && okHist {
		agrees := (long && hist > 0) || (!long && hist < 0)
		add(FactorFreshCross, agrees && int(age) <= s.cfg.FreshCrossBars)
	} else {
		add(FactorFreshCross, false)
	}

	// 8. Price beyond the Bollinger midline in the direction.
	if mid, ok := snap.Get(indicators.KeyBBMiddle); ok && hasPrice {
		add(FactorBollingerSide, (long && price > mid) || (!long && price < mid))
	} else {
		add(FactorBollingerSide, false)
	}

	score := models.ConfidenceScore{
		Symbol:    snap.Symbol,
		Direction: dir,
		Factors:   factors,
	}
	score.Value = 100 * float64(score.MetCount()) / float64(len(factors))
	return score
}

// ScoreBoth computes confidence for both directions of one snapshot.
func (s *ConfidenceScorer) ScoreBoth(snap models.IndicatorSnapshot) (long, short models.ConfidenceScore) {
	return s.Score(snap, models.DirectionLong), s.Score(snap, models.DirectionShort)
}
