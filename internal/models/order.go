package models

import "time"

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderState represents the broker-side state of an order.
type OrderState string

const (
	OrderSubmitted       OrderState = "SUBMITTED"
	OrderPartiallyFilled OrderState = "PARTIALLY_FILLED"
	OrderFilled          OrderState = "FILLED"
	OrderCancelled       OrderState = "CANCELLED"
	OrderRejected        OrderState = "REJECTED"
)

// Terminal reports whether the order can no longer change state.
func (s OrderState) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderRejected
}

// Order represents an order submitted to the broker. An order is owned by
// the position it services and never outlives that position's lifecycle.
type Order struct {
	ID             string
	Symbol         string
	Side           OrderSide
	Quantity       int
	Type           OrderType
	LimitPrice     float64
	SubmittedAt    time.Time
	State          OrderState
	FilledQuantity int
	FilledAvgPrice float64
}

// Remaining returns the unfilled quantity.
func (o Order) Remaining() int {
	return o.Quantity - o.FilledQuantity
}
