// Package marketdata manages per-symbol bar windows and the market-data
// feed that fills them.
package marketdata

import (
	"sync"
	"time"

	apperrors "intraday-trader/internal/errors"
	"intraday-trader/internal/models"
)

// Window is a bounded, append-only bar sequence for one symbol. The oldest
// bar is dropped once the window exceeds the rolling lookback needed by the
// slowest indicator. Out-of-order or gapped arrivals mark the window dirty
// so the symbol's indicator computation is skipped for the cycle.
type Window struct {
	symbol   string
	capacity int
	interval time.Duration
	bars     []models.Bar
	dirty    bool
}

// NewWindow creates a bar window for one symbol.
func NewWindow(symbol string, capacity int, interval time.Duration) *Window {
	return &Window{
		symbol:   symbol,
		capacity: capacity,
		interval: interval,
		bars:     make([]models.Bar, 0, capacity),
	}
}

// Append adds a bar to the window. A bar whose timestamp does not advance
// past the previous bar is rejected and the window is marked dirty. A gap
// of more than twice the bar interval keeps the bar but marks the window
// dirty for this cycle.
func (w *Window) Append(bar models.Bar) error {
	if n := len(w.bars); n > 0 {
		last := w.bars[n-1].Timestamp
		if !bar.Timestamp.After(last) {
			w.dirty = true
			return apperrors.NewDataError(w.symbol, "out-of-order bar", apperrors.ErrStaleData)
		}
		if w.interval > 0 && bar.Timestamp.Sub(last) > 2*w.interval {
			w.dirty = true
		}
	}

	w.bars = append(w.bars, bar)
	if len(w.bars) > w.capacity {
		w.bars = w.bars[len(w.bars)-w.capacity:]
	}
	return nil
}

// Bars returns a copy of the current window.
func (w *Window) Bars() []models.Bar {
	out := make([]models.Bar, len(w.bars))
	copy(out, w.bars)
	return out
}

// Len returns the number of bars in the window.
func (w *Window) Len() int {
	return len(w.bars)
}

// ConsumeDirty returns the dirty flag and clears it for the next cycle.
func (w *Window) ConsumeDirty() bool {
	d := w.dirty
	w.dirty = false
	return d
}

// WindowSet holds the bar windows for all watched symbols.
type WindowSet struct {
	capacity int
	interval time.Duration
	windows  map[string]*Window
	mu       sync.Mutex
}

// NewWindowSet creates a window set with the given per-symbol capacity.
func NewWindowSet(capacity int, interval time.Duration) *WindowSet {
	return &WindowSet{
		capacity: capacity,
		interval: interval,
		windows:  make(map[string]*Window),
	}
}

// Append routes a bar to its symbol's window, creating it on first sight.
func (s *WindowSet) Append(bar models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[bar.Symbol]
	if !ok {
		w = NewWindow(bar.Symbol, s.capacity, s.interval)
		s.windows[bar.Symbol] = w
	}
	return w.Append(bar)
}

// Bars returns a copy of the bars for one symbol without touching the
// dirty flag, for price lookups outside the evaluation path.
func (s *WindowSet) Bars(symbol string) []models.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[symbol]
	if !ok {
		return nil
	}
	return w.Bars()
}

// Snapshot returns a copy of the bars for one symbol and whether the
// symbol's data is clean this cycle. The dirty flag is consumed.
func (s *WindowSet) Snapshot(symbol string) (bars []models.Bar, clean bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[symbol]
	if !ok {
		return nil, true
	}
	return w.Bars(), !w.ConsumeDirty()
}
