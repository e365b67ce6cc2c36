package models

import "time"

// PositionState represents a position's place in its lifecycle.
type PositionState string

const (
	PositionPendingSubmit   PositionState = "PENDING_SUBMIT"
	PositionSubmitted       PositionState = "SUBMITTED"
	PositionPartiallyFilled PositionState = "PARTIALLY_FILLED"
	PositionFilled          PositionState = "FILLED"
	PositionExitPending     PositionState = "EXIT_PENDING"
	PositionClosed          PositionState = "CLOSED"
	PositionRejected        PositionState = "REJECTED"
	PositionCancelled       PositionState = "CANCELLED"
)

// Terminal reports whether the position lifecycle has ended.
func (s PositionState) Terminal() bool {
	return s == PositionClosed || s == PositionRejected || s == PositionCancelled
}

// Position represents an open position and its protective levels.
// At most one position is open per symbol at any time.
type Position struct {
	Symbol        string
	Direction     Direction
	Quantity      int
	AvgEntryPrice float64
	Stop          float64
	Target        float64
	OpenedAt      time.Time
	State         PositionState
	EntryOrderID  string
	ExitOrderID   string
}

// Notional returns the position's notional value at the given price.
func (p Position) Notional(price float64) float64 {
	return float64(p.Quantity) * price
}
