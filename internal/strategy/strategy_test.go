package strategy

import (
	"math"
	"testing"
	"time"

	"intraday-trader/internal/analysis/indicators"
	"intraday-trader/internal/config"
	"intraday-trader/internal/models"
)

func uptrendInput() Input {
	return Input{
		Symbol: "AAPL",
		Snapshot: models.IndicatorSnapshot{
			Symbol: "AAPL",
			Values: map[string]float64{
				indicators.KeyClose:        105.0,
				indicators.KeyEMAFast:      103.0,
				indicators.KeyEMASlow:      101.0,
				indicators.KeyATR:          1.0,
				indicators.KeyMACDHist:     0.4,
				indicators.KeyMACDCrossAge: 2,
				indicators.KeyRelVolume:    1.8,
				indicators.KeyVWAP:         102.0,
			},
		},
		Bars: []models.Bar{{
			Symbol:    "AAPL",
			Timestamp: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
			Open:      104.2, High: 105.1, Low: 104.0, Close: 105.0,
			Volume: 50000,
		}},
	}
}

func TestMomentumFullConfirmationLong(t *testing.T) {
	cfg := config.Default()
	m := NewMomentum(cfg.Strategies.Momentum, cfg.Scoring)

	sig := m.Evaluate(uptrendInput())
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Direction != models.DirectionLong {
		t.Errorf("direction = %s, want LONG", sig.Direction)
	}
	if sig.Confirmations != 6 || sig.TotalFactors != 6 {
		t.Errorf("confirmations = %d/%d, want 6/6", sig.Confirmations, sig.TotalFactors)
	}

	// Stop is 2 ATR below entry, target 2x the stop distance above.
	if math.Abs(sig.Stop-103.0) > 1e-9 {
		t.Errorf("stop = %v, want 103", sig.Stop)
	}
	if math.Abs(sig.Target-109.0) > 1e-9 {
		t.Errorf("target = %v, want 109", sig.Target)
	}
}

func TestMomentumAbstainsWithoutTrend(t *testing.T) {
	cfg := config.Default()
	m := NewMomentum(cfg.Strategies.Momentum, cfg.Scoring)

	in := uptrendInput()
	in.Snapshot.Values[indicators.KeyEMASlow] = in.Snapshot.Values[indicators.KeyEMAFast]
	if sig := m.Evaluate(in); sig != nil {
		t.Errorf("flat EMAs must abstain, got %+v", sig)
	}

	in = uptrendInput()
	delete(in.Snapshot.Values, indicators.KeyATR)
	if sig := m.Evaluate(in); sig != nil {
		t.Errorf("missing ATR must abstain, got %+v", sig)
	}
}

func TestMomentumAbstainsBelowMinimum(t *testing.T) {
	cfg := config.Default()
	m := NewMomentum(cfg.Strategies.Momentum, cfg.Scoring)

	in := uptrendInput()
	// Kill MACD, fresh cross, volume and VWAP confirmations: only the
	// EMA ordering and price-above-fast-EMA remain, 2/6 < minimum 4.
	in.Snapshot.Values[indicators.KeyMACDHist] = -0.1
	in.Snapshot.Values[indicators.KeyRelVolume] = 0.5
	in.Snapshot.Values[indicators.KeyVWAP] = 110.0
	if sig := m.Evaluate(in); sig != nil {
		t.Errorf("expected abstention at 2/6, got %+v", sig)
	}
}

func TestMeanReversionFadesLowerBand(t *testing.T) {
	cfg := config.Default()
	m := NewMeanReversion(cfg.Strategies.MeanReversion, cfg.Scoring)

	in := Input{
		Symbol: "MSFT",
		Snapshot: models.IndicatorSnapshot{
			Symbol: "MSFT",
			Values: map[string]float64{
				indicators.KeyClose:     94.0,
				indicators.KeyBBUpper:   106.0,
				indicators.KeyBBMiddle:  100.0,
				indicators.KeyBBLower:   95.0,
				indicators.KeyATR:       2.0,
				indicators.KeyRSI:       25.0,
				indicators.KeyRelVolume: 1.2,
			},
		},
		Bars: []models.Bar{{
			Symbol: "MSFT",
			Open:   93.5, High: 94.2, Low: 93.0, Close: 94.0,
			Volume: 80000,
		}},
	}

	sig := m.Evaluate(in)
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Direction != models.DirectionLong {
		t.Errorf("direction = %s, want LONG", sig.Direction)
	}
	if sig.Confirmations != 5 {
		t.Errorf("confirmations = %d, want 5", sig.Confirmations)
	}
	// Target reverts toward the midline but never past the reward cap:
	// stop distance is 3 (1.5 ATR), cap 94 + 3*1.5 = 98.5 < midline 100.
	if math.Abs(sig.Target-98.5) > 1e-9 {
		t.Errorf("target = %v, want 98.5", sig.Target)
	}
}

func TestMeanReversionAbstainsInsideBands(t *testing.T) {
	cfg := config.Default()
	m := NewMeanReversion(cfg.Strategies.MeanReversion, cfg.Scoring)

	in := Input{
		Symbol: "MSFT",
		Snapshot: models.IndicatorSnapshot{
			Symbol: "MSFT",
			Values: map[string]float64{
				indicators.KeyClose:    100.0,
				indicators.KeyBBUpper:  106.0,
				indicators.KeyBBMiddle: 100.0,
				indicators.KeyBBLower:  95.0,
				indicators.KeyATR:      2.0,
			},
		},
	}
	if sig := m.Evaluate(in); sig != nil {
		t.Errorf("price inside bands must abstain, got %+v", sig)
	}
}

func TestVWAPBounceLong(t *testing.T) {
	cfg := config.Default()
	v := NewVWAPBounce(cfg.Strategies.VWAPBounce, cfg.Scoring)

	in := Input{
		Symbol: "NVDA",
		Snapshot: models.IndicatorSnapshot{
			Symbol: "NVDA",
			Values: map[string]float64{
				indicators.KeyClose:     100.5,
				indicators.KeyVWAP:      100.0,
				indicators.KeyATR:       1.0,
				indicators.KeyRelVolume: 1.6,
			},
		},
		Bars: []models.Bar{{
			Symbol: "NVDA",
			Open:   100.1, High: 100.6, Low: 99.8, Close: 100.5,
			Volume: 120000,
		}},
	}

	sig := v.Evaluate(in)
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Direction != models.DirectionLong {
		t.Errorf("direction = %s, want LONG", sig.Direction)
	}
	// Touched the level, rejected it, bullish bar, volume, near level.
	if sig.Confirmations != 5 {
		t.Errorf("confirmations = %d, want 5", sig.Confirmations)
	}
}

func TestVWAPBounceAbstainsWithoutTouch(t *testing.T) {
	cfg := config.Default()
	v := NewVWAPBounce(cfg.Strategies.VWAPBounce, cfg.Scoring)

	in := Input{
		Symbol: "NVDA",
		Snapshot: models.IndicatorSnapshot{
			Symbol: "NVDA",
			Values: map[string]float64{
				indicators.KeyClose: 105.0,
				indicators.KeyVWAP:  100.0,
				indicators.KeyATR:   1.0,
			},
		},
		Bars: []models.Bar{{
			Symbol: "NVDA",
			Open:   104.0, High: 105.2, Low: 103.8, Close: 105.0,
			Volume: 120000,
		}},
	}
	// No touch, no volume, reaction 5 ATR away: 2/5 < minimum 3.
	if sig := v.Evaluate(in); sig != nil {
		t.Errorf("expected abstention, got %+v", sig)
	}
}
