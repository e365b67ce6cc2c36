// Package trading implements the risk gate, order lifecycle state machine,
// trailing-stop monitor, and the scan-loop engine that drives them.
package trading

import (
	"sync"
	"time"

	"intraday-trader/internal/models"
)

// ManagedPosition is one open position plus its management state. All
// mutation happens under the per-position mutex: the signal loop and the
// exit monitor both touch open positions, and stop adjustment or state
// transition must be mutually exclusive per position.
type ManagedPosition struct {
	mu sync.Mutex

	pos            models.Position
	emergency      bool
	holdDeadline   time.Time
	stopDistance   float64 // trailing distance fixed at entry
	exitReason     ExitReason
	remainderTimer *time.Timer // pending remainder-cancel, nil once settled
}

// Snapshot returns a copy of the position.
func (m *ManagedPosition) Snapshot() models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// withLock runs fn while holding the position's mutex.
func (m *ManagedPosition) withLock(fn func(*models.Position)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.pos)
}

// setRemainderTimer records the scheduled remainder-cancel so it can be
// stopped once the entry order is settled.
func (m *ManagedPosition) setRemainderTimer(t *time.Timer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remainderTimer = t
}

// stopRemainderTimer stops any pending remainder-cancel timer.
func (m *ManagedPosition) stopRemainderTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remainderTimer != nil {
		m.remainderTimer.Stop()
		m.remainderTimer = nil
	}
}

// Book tracks the open positions, at most one per symbol.
type Book struct {
	mu        sync.RWMutex
	positions map[string]*ManagedPosition
}

// NewBook creates an empty position book.
func NewBook() *Book {
	return &Book{positions: make(map[string]*ManagedPosition)}
}

// Get returns the managed position for a symbol, if open.
func (b *Book) Get(symbol string) (*ManagedPosition, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	mp, ok := b.positions[symbol]
	return mp, ok
}

// Add inserts a managed position. It returns false when the symbol
// already has an open position; the caller must treat that as a bug in
// the risk gate.
func (b *Book) Add(mp *ManagedPosition) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	symbol := mp.pos.Symbol
	if _, exists := b.positions[symbol]; exists {
		return false
	}
	b.positions[symbol] = mp
	return true
}

// Remove deletes the position for a symbol, stopping any timer still
// scheduled against it.
func (b *Book) Remove(symbol string) {
	b.mu.Lock()
	mp, ok := b.positions[symbol]
	delete(b.positions, symbol)
	b.mu.Unlock()

	if ok {
		mp.stopRemainderTimer()
	}
}

// Len returns the number of open positions.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// Symbols returns the symbols with open positions.
func (b *Book) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.positions))
	for s := range b.positions {
		out = append(out, s)
	}
	return out
}

// OpenPositions returns read-only copies of all open positions.
func (b *Book) OpenPositions() []models.Position {
	b.mu.RLock()
	managed := make([]*ManagedPosition, 0, len(b.positions))
	for _, mp := range b.positions {
		managed = append(managed, mp)
	}
	b.mu.RUnlock()

	out := make([]models.Position, 0, len(managed))
	for _, mp := range managed {
		out = append(out, mp.Snapshot())
	}
	return out
}

// TotalNotional returns the summed notional of open positions at their
// entry prices.
func (b *Book) TotalNotional() float64 {
	var total float64
	for _, pos := range b.OpenPositions() {
		total += pos.Notional(pos.AvgEntryPrice)
	}
	return total
}
