package indicators

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"intraday-trader/internal/models"
)

// barSliceGen generates a slice of n valid bars with strictly increasing
// timestamps and OHLC constraints satisfied.
func barSliceGen(n int) gopter.Gen {
	return gen.SliceOfN(n, gen.Float64Range(50.0, 500.0)).Map(func(closes []float64) []models.Bar {
		base := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
		bars := make([]models.Bar, len(closes))
		for i, c := range closes {
			open := c * 0.995
			bars[i] = models.Bar{
				Symbol:    "TEST",
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				Open:      open,
				High:      math.Max(open, c) * 1.002,
				Low:       math.Min(open, c) * 0.998,
				Close:     c,
				Volume:    int64(1000 + i*10),
			}
		}
		return bars
	})
}

// Property: RSI values after the warmup prefix are always within [0, 100],
// regardless of the price path.
func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	rsi := NewRSI(14)
	properties.Property("RSI within [0, 100]", prop.ForAll(
		func(bars []models.Bar) bool {
			values, err := rsi.Calculate(bars)
			if err != nil {
				return false
			}
			for i := 14; i < len(values); i++ {
				if values[i] < 0 || values[i] > 100 {
					return false
				}
			}
			return true
		},
		barSliceGen(60),
	))

	properties.TestingRun(t)
}

// Property: Bollinger bands are always ordered lower <= middle <= upper
// wherever they are defined.
func TestProperty_BollingerBandOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	bb := NewBollingerBands(20, 2.0)
	properties.Property("lower <= middle <= upper", prop.ForAll(
		func(bars []models.Bar) bool {
			bands, err := bb.Calculate(bars)
			if err != nil {
				return false
			}
			upper, middle, lower := bands["upper"], bands["middle"], bands["lower"]
			for i := 19; i < len(middle); i++ {
				if lower[i] > middle[i] || middle[i] > upper[i] {
					return false
				}
			}
			return true
		},
		barSliceGen(60),
	))

	properties.TestingRun(t)
}

// Property: a snapshot built from a window shorter than an indicator's
// lookback omits that indicator's keys entirely instead of reporting zero.
func TestProperty_SnapshotOmitsUnderfilledIndicators(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	builder := NewSnapshotBuilder(DefaultSnapshotParams(), 2)

	properties.Property("short windows omit slow indicators", prop.ForAll(
		func(bars []models.Bar) bool {
			// 10 bars: enough for the 9-period EMA, not for the
			// 21-period EMA, MACD or Bollinger bands.
			snap := builder.Build(context.Background(), "TEST", bars[:10])

			if _, ok := snap.Get(KeyEMAFast); !ok {
				return false
			}
			for _, key := range []string{KeyEMASlow, KeyMACD, KeyMACDHist, KeyBBMiddle, KeyRSI, KeyATR} {
				if v, ok := snap.Get(key); ok || v != 0 {
					return false
				}
			}
			// Close is always present.
			_, ok := snap.Get(KeyClose)
			return ok
		},
		barSliceGen(10),
	))

	properties.TestingRun(t)
}
