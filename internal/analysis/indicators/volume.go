package indicators

import (
	"fmt"

	"intraday-trader/internal/models"
	"intraday-trader/pkg/utils"
)

// VWAP calculates the session Volume Weighted Average Price. Accumulation
// resets at each daily session boundary.
type VWAP struct{}

// NewVWAP creates a new VWAP indicator.
func NewVWAP() *VWAP {
	return &VWAP{}
}

func (v *VWAP) Name() string {
	return "VWAP"
}

func (v *VWAP) Period() int {
	return 1
}

func (v *VWAP) Calculate(bars []models.Bar) ([]float64, error) {
	if len(bars) == 0 {
		return nil, ErrInsufficientData
	}

	n := len(bars)
	result := make([]float64, n)

	var cumPV, cumVol float64
	sessionStart := utils.SessionStart(bars[0].Timestamp)

	for i, b := range bars {
		if !utils.SessionStart(b.Timestamp).Equal(sessionStart) {
			sessionStart = utils.SessionStart(b.Timestamp)
			cumPV = 0
			cumVol = 0
		}

		cumPV += typicalPrice(b) * float64(b.Volume)
		cumVol += float64(b.Volume)

		if cumVol > 0 {
			result[i] = cumPV / cumVol
		} else {
			result[i] = b.Close
		}
	}

	return result, nil
}

// RelativeVolume calculates current volume divided by the trailing average
// volume over the lookback period.
type RelativeVolume struct {
	period int
}

// NewRelativeVolume creates a new relative volume indicator.
func NewRelativeVolume(period int) *RelativeVolume {
	return &RelativeVolume{period: period}
}

func (r *RelativeVolume) Name() string {
	return fmt.Sprintf("RelVolume_%d", r.period)
}

func (r *RelativeVolume) Period() int {
	return r.period + 1
}

func (r *RelativeVolume) Calculate(bars []models.Bar) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(bars) < r.period+1 {
		return nil, ErrInsufficientData
	}

	n := len(bars)
	result := make([]float64, n)

	for i := r.period; i < n; i++ {
		var avg float64
		for j := i - r.period; j < i; j++ {
			avg += float64(bars[j].Volume)
		}
		avg /= float64(r.period)

		if avg > 0 {
			result[i] = float64(bars[i].Volume) / avg
		}
	}

	return result, nil
}
