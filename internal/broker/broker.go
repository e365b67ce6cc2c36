// Package broker provides the brokerage interface and implementations.
package broker

import (
	"context"

	"intraday-trader/internal/models"
)

// OrderRequest describes an order to submit.
type OrderRequest struct {
	Symbol     string
	Side       models.OrderSide
	Quantity   int
	Type       models.OrderType
	LimitPrice float64
}

// Broker defines the brokerage collaborator. The broker is a single shared
// resource per account; callers serialize order submission per symbol.
type Broker interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderStatus(ctx context.Context, orderID string) (*models.Order, error)
	ListPositions(ctx context.Context) ([]models.Position, error)
	GetAccount(ctx context.Context) (*models.Account, error)
}
