package indicators

import (
	"context"

	"intraday-trader/internal/models"
)

// Well-known snapshot keys. Consumers look indicators up by these names and
// must treat a missing key as unknown, never as zero.
const (
	KeyEMAFast      = "ema_fast"
	KeyEMASlow      = "ema_slow"
	KeyMACD         = "macd"
	KeyMACDSignal   = "macd_signal"
	KeyMACDHist     = "macd_hist"
	KeyMACDCrossAge = "macd_cross_age" // bars since last MACD/signal cross
	KeyRSI          = "rsi"
	KeyATR          = "atr"
	KeyVWAP         = "vwap"
	KeyBBUpper      = "bb_upper"
	KeyBBMiddle     = "bb_middle"
	KeyBBLower      = "bb_lower"
	KeyRelVolume    = "rel_volume"
	KeyClose        = "close"
)

// SnapshotParams holds the periods used to build indicator snapshots.
type SnapshotParams struct {
	EMAFast    int
	EMASlow    int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	RSI        int
	ATR        int
	Bollinger  int
	BollingerK float64
	RelVolume  int
}

// DefaultSnapshotParams returns the conventional intraday periods.
func DefaultSnapshotParams() SnapshotParams {
	return SnapshotParams{
		EMAFast:    9,
		EMASlow:    21,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		RSI:        14,
		ATR:        14,
		Bollinger:  20,
		BollingerK: 2.0,
		RelVolume:  20,
	}
}

// SnapshotBuilder computes one IndicatorSnapshot per symbol per cycle from
// the symbol's bar window. Indicators whose lookback exceeds the window are
// omitted from the snapshot.
type SnapshotBuilder struct {
	engine *Engine
	params SnapshotParams

	emaFast string
	emaSlow string
	macd    string
	rsi     string
	atr     string
	bb      string
	relVol  string
}

// NewSnapshotBuilder creates a snapshot builder with the given parameters.
func NewSnapshotBuilder(params SnapshotParams, workers int) *SnapshotBuilder {
	engine := NewEngine(workers)

	emaFast := NewEMA(params.EMAFast)
	emaSlow := NewEMA(params.EMASlow)
	rsi := NewRSI(params.RSI)
	atr := NewATR(params.ATR)
	relVol := NewRelativeVolume(params.RelVolume)
	vwap := NewVWAP()
	macd := NewMACD(params.MACDFast, params.MACDSlow, params.MACDSignal)
	bb := NewBollingerBands(params.Bollinger, params.BollingerK)

	engine.RegisterIndicator(emaFast)
	engine.RegisterIndicator(emaSlow)
	engine.RegisterIndicator(rsi)
	engine.RegisterIndicator(atr)
	engine.RegisterIndicator(relVol)
	engine.RegisterIndicator(vwap)
	engine.RegisterMultiIndicator(macd)
	engine.RegisterMultiIndicator(bb)

	return &SnapshotBuilder{
		engine:  engine,
		params:  params,
		emaFast: emaFast.Name(),
		emaSlow: emaSlow.Name(),
		macd:    macd.Name(),
		rsi:     rsi.Name(),
		atr:     atr.Name(),
		bb:      bb.Name(),
		relVol:  relVol.Name(),
	}
}

// Build computes the indicator snapshot for one symbol's bar window.
func (b *SnapshotBuilder) Build(ctx context.Context, symbol string, bars []models.Bar) models.IndicatorSnapshot {
	snap := models.IndicatorSnapshot{
		Symbol: symbol,
		Values: make(map[string]float64),
	}
	if len(bars) == 0 {
		return snap
	}
	snap.Timestamp = bars[len(bars)-1].Timestamp
	snap.Values[KeyClose] = bars[len(bars)-1].Close

	single, multi := b.engine.CalculateAll(ctx, bars)

	last := func(values []float64) float64 {
		return values[len(values)-1]
	}

	if v, ok := single[b.emaFast]; ok {
		snap.Values[KeyEMAFast] = last(v)
	}
	if v, ok := single[b.emaSlow]; ok {
		snap.Values[KeyEMASlow] = last(v)
	}
	if v, ok := single[b.rsi]; ok {
		snap.Values[KeyRSI] = last(v)
	}
	if v, ok := single[b.atr]; ok {
		snap.Values[KeyATR] = last(v)
	}
	if v, ok := single["VWAP"]; ok {
		snap.Values[KeyVWAP] = last(v)
	}
	if v, ok := single[b.relVol]; ok {
		snap.Values[KeyRelVolume] = last(v)
	}

	if m, ok := multi[b.macd]; ok {
		snap.Values[KeyMACD] = last(m["macd"])
		snap.Values[KeyMACDSignal] = last(m["signal"])
		snap.Values[KeyMACDHist] = last(m["histogram"])
		if age, found := crossAge(m["histogram"], b.params.MACDSlow+b.params.MACDSignal-1); found {
			snap.Values[KeyMACDCrossAge] = float64(age)
		}
	}
	if m, ok := multi[b.bb]; ok {
		snap.Values[KeyBBUpper] = last(m["upper"])
		snap.Values[KeyBBMiddle] = last(m["middle"])
		snap.Values[KeyBBLower] = last(m["lower"])
	}

	return snap
}

// crossAge returns how many bars ago the histogram last changed sign,
// ignoring the warmup prefix before firstValid. Zero means the cross
// happened on the latest bar.
func crossAge(hist []float64, firstValid int) (int, bool) {
	if firstValid < 1 {
		firstValid = 1
	}
	for i := len(hist) - 1; i >= firstValid; i-- {
		if (hist[i] > 0) != (hist[i-1] > 0) {
			return len(hist) - 1 - i, true
		}
	}
	return 0, false
}
