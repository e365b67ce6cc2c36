package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "intraday-trader/internal/errors"
	"intraday-trader/internal/models"
)

// PaperBroker simulates the brokerage for paper trading and tests. Market
// orders fill at the cached mark price; fill behavior (partial fills,
// rejections, timeouts) is injectable.
type PaperBroker struct {
	mu sync.Mutex

	orders    map[string]*models.Order
	positions map[string]*models.Position
	account   models.Account

	prices       map[string]float64
	orderCounter int

	// FillFraction controls how much of a submitted order fills
	// immediately: 1.0 fills fully, 0.5 leaves half resting.
	FillFraction float64
	// RejectNext makes the next SubmitOrder fail with a broker rejection.
	RejectNext bool
	// FailNext makes the next SubmitOrder fail with a transient
	// connection error (ambiguous outcome).
	FailNext bool
}

// NewPaperBroker creates a paper broker with the given starting equity.
func NewPaperBroker(equity float64) *PaperBroker {
	return &PaperBroker{
		orders:       make(map[string]*models.Order),
		positions:    make(map[string]*models.Position),
		prices:       make(map[string]float64),
		account:      models.Account{Equity: equity, BuyingPower: equity},
		FillFraction: 1.0,
	}
}

// SetPrice sets the simulated mark price for a symbol.
func (p *PaperBroker) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

// SubmitOrder simulates order placement.
func (p *PaperBroker) SubmitOrder(ctx context.Context, req OrderRequest) (*models.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailNext {
		p.FailNext = false
		return nil, apperrors.NewBrokerError("CONN", "simulated connection failure", apperrors.ErrConnectionFailed)
	}
	if p.RejectNext {
		p.RejectNext = false
		return nil, apperrors.NewBrokerError("REJECT", "simulated rejection", apperrors.ErrOrderRejected)
	}
	if req.Quantity <= 0 {
		return nil, apperrors.ErrInvalidOrder
	}

	price, ok := p.prices[req.Symbol]
	if !ok {
		return nil, apperrors.ErrSymbolNotFound
	}
	if req.Type == models.OrderTypeLimit && req.LimitPrice > 0 {
		price = req.LimitPrice
	}

	p.orderCounter++
	order := &models.Order{
		ID:          fmt.Sprintf("PAPER-%06d", p.orderCounter),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Quantity:    req.Quantity,
		Type:        req.Type,
		LimitPrice:  req.LimitPrice,
		SubmittedAt: time.Now(),
	}

	filled := int(float64(req.Quantity) * p.FillFraction)
	if filled >= req.Quantity {
		filled = req.Quantity
		order.State = models.OrderFilled
	} else if filled > 0 {
		order.State = models.OrderPartiallyFilled
	} else {
		order.State = models.OrderSubmitted
	}
	order.FilledQuantity = filled
	if filled > 0 {
		order.FilledAvgPrice = price
	}

	p.orders[order.ID] = order
	p.applyFill(order, filled, price)

	cp := *order
	return &cp, nil
}

// applyFill books the filled quantity into the simulated position set.
func (p *PaperBroker) applyFill(order *models.Order, qty int, price float64) {
	if qty == 0 {
		return
	}

	signed := qty
	if order.Side == models.OrderSideSell {
		signed = -qty
	}

	pos, ok := p.positions[order.Symbol]
	if !ok {
		dir := models.DirectionLong
		if signed < 0 {
			dir = models.DirectionShort
			signed = -signed
		}
		p.positions[order.Symbol] = &models.Position{
			Symbol:        order.Symbol,
			Direction:     dir,
			Quantity:      signed,
			AvgEntryPrice: price,
			OpenedAt:      time.Now(),
			State:         models.PositionFilled,
		}
		p.account.BuyingPower -= float64(signed) * price
		return
	}

	// Opposite-side fill reduces or closes the position.
	closing := (pos.Direction == models.DirectionLong && signed < 0) ||
		(pos.Direction == models.DirectionShort && signed > 0)
	if closing {
		abs := signed
		if abs < 0 {
			abs = -abs
		}
		pos.Quantity -= abs
		p.account.BuyingPower += float64(abs) * price
		if pos.Quantity <= 0 {
			delete(p.positions, order.Symbol)
		}
		return
	}

	abs := signed
	if abs < 0 {
		abs = -abs
	}
	total := pos.Quantity + abs
	pos.AvgEntryPrice = (pos.AvgEntryPrice*float64(pos.Quantity) + price*float64(abs)) / float64(total)
	pos.Quantity = total
	p.account.BuyingPower -= float64(abs) * price
}

// CancelOrder cancels the unfilled remainder of an order.
func (p *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	if order.State.Terminal() {
		return nil
	}
	order.State = models.OrderCancelled
	return nil
}

// GetOrderStatus returns the current state of an order.
func (p *PaperBroker) GetOrderStatus(ctx context.Context, orderID string) (*models.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

// ListPositions returns the simulated open positions.
func (p *PaperBroker) ListPositions(ctx context.Context) ([]models.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out, nil
}

// GetAccount returns the simulated account state.
func (p *PaperBroker) GetAccount(ctx context.Context) (*models.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct := p.account
	return &acct, nil
}
