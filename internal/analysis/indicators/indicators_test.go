package indicators

import (
	"math"
	"testing"
	"time"

	"intraday-trader/internal/models"
)

func TestEMASeededBySMA(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14}
	result := CalculateEMA(values, 3)
	if result == nil {
		t.Fatal("expected EMA result")
	}

	// Seed is the simple average of the first three values.
	if got, want := result[2], 11.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("seed = %v, want %v", got, want)
	}

	// Next value applies the smoothing multiplier 2/(3+1) = 0.5.
	if got, want := result[3], (13.0-11.0)*0.5+11.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("result[3] = %v, want %v", got, want)
	}
}

func TestEMAInsufficientData(t *testing.T) {
	if result := CalculateEMA([]float64{1, 2}, 5); result != nil {
		t.Errorf("expected nil for short input, got %v", result)
	}
}

func TestVWAPResetsAtSessionBoundary(t *testing.T) {
	day1 := time.Date(2026, 3, 2, 15, 58, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)

	bar := func(ts time.Time, price float64, vol int64) models.Bar {
		return models.Bar{
			Symbol: "TEST", Timestamp: ts,
			Open: price, High: price, Low: price, Close: price,
			Volume: vol,
		}
	}

	bars := []models.Bar{
		bar(day1, 100, 1000),
		bar(day1.Add(time.Minute), 200, 1000),
		bar(day2, 50, 1000),
	}

	vwap := NewVWAP()
	values, err := vwap.Calculate(bars)
	if err != nil {
		t.Fatal(err)
	}

	// Within the first session VWAP accumulates both bars.
	if got, want := values[1], 150.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("day 1 vwap = %v, want %v", got, want)
	}
	// A new session starts from scratch; the prior day cannot leak in.
	if got, want := values[2], 50.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("day 2 vwap = %v, want %v", got, want)
	}
}

func TestCrossAge(t *testing.T) {
	tests := []struct {
		name  string
		hist  []float64
		want  int
		found bool
	}{
		{"cross on latest bar", []float64{0.1, 0.2, -0.1}, 0, true},
		{"cross two bars ago", []float64{-0.3, 0.2, 0.3, 0.4}, 2, true},
		{"no cross", []float64{0.1, 0.2, 0.3, 0.4}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			age, found := crossAge(tt.hist, 1)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if found && age != tt.want {
				t.Errorf("age = %d, want %d", age, tt.want)
			}
		})
	}
}
