package indicators

import (
	"errors"
	"math"

	"intraday-trader/internal/models"
)

var (
	// ErrInsufficientData is returned when the bar window is shorter than
	// the indicator's required lookback.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
)

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// trueRange calculates the true range for a bar given its predecessor.
func trueRange(current, previous models.Bar) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return maxf(highLow, maxf(highClose, lowClose))
}

// typicalPrice calculates the typical price (HLC/3) for a bar.
func typicalPrice(b models.Bar) float64 {
	return (b.High + b.Low + b.Close) / 3
}

func closePrices(bars []models.Bar) []float64 {
	prices := make([]float64, len(bars))
	for i, b := range bars {
		prices[i] = b.Close
	}
	return prices
}
