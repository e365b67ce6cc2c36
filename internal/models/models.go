// Package models provides domain models for the trading engine.
package models

import (
	"time"
)

// Direction represents the direction of a trade.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Opposite returns the opposite direction.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// EntrySide returns the order side that opens a position in the given direction.
func EntrySide(d Direction) OrderSide {
	if d == DirectionLong {
		return OrderSideBuy
	}
	return OrderSideSell
}

// ExitSide returns the order side that closes a position in the given direction.
func ExitSide(d Direction) OrderSide {
	if d == DirectionLong {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Bar represents OHLCV data for one symbol over a fixed interval.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Quote represents a point-in-time market quote.
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Timestamp time.Time
}

// Mid returns the mid price, falling back to the valid side when one side
// of the book is missing or reported as zero.
func (q Quote) Mid() float64 {
	switch {
	case q.Bid > 0 && q.Ask > 0:
		return (q.Bid + q.Ask) / 2
	case q.Bid > 0:
		return q.Bid
	case q.Ask > 0:
		return q.Ask
	default:
		return q.Last
	}
}

// Account represents account-level equity information.
type Account struct {
	Equity      float64
	BuyingPower float64
	DayTrades   int
}
