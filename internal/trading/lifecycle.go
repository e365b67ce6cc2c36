package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"intraday-trader/internal/broker"
	apperrors "intraday-trader/internal/errors"
	"intraday-trader/internal/models"
	"intraday-trader/internal/notify"
	"intraday-trader/pkg/utils"
)

// ExitReason identifies why a position is being closed.
type ExitReason string

const (
	ExitReasonStop       ExitReason = "stop"
	ExitReasonTarget     ExitReason = "target"
	ExitReasonTimeLimit  ExitReason = "time_limit"
	ExitReasonEmergency  ExitReason = "emergency"
	ExitReasonRiskBreach ExitReason = "risk_breach"
	ExitReasonShutdown   ExitReason = "shutdown"
)

// Manager drives the per-position lifecycle state machine: submission,
// fill tracking, and exit execution. Order submission and position-state
// mutation are serialized per symbol through the per-position mutex.
type Manager struct {
	broker   broker.Broker
	book     *Book
	notifier notify.Notifier
	logger   zerolog.Logger

	retry              utils.RetryConfig
	partialFillTimeout time.Duration
}

// NewManager creates an order lifecycle manager.
func NewManager(b broker.Broker, book *Book, notifier notify.Notifier, retry utils.RetryConfig, partialFillTimeout time.Duration, logger zerolog.Logger) *Manager {
	retry.Retryable = func(err error) bool {
		var be *apperrors.BrokerError
		if apperrors.As(err, &be) {
			return be.Retryable()
		}
		return apperrors.Is(err, apperrors.ErrConnectionFailed) ||
			apperrors.Is(err, apperrors.ErrRateLimited) ||
			apperrors.Is(err, apperrors.ErrTimeout)
	}
	return &Manager{
		broker:             b,
		book:               book,
		notifier:           notifier,
		logger:             logger.With().Str("component", "lifecycle").Logger(),
		retry:              retry,
		partialFillTimeout: partialFillTimeout,
	}
}

// OpenPosition submits the entry order for an approved signal and books the
// resulting position. A submission failure drops the signal for this cycle:
// it is not retried, the next independent signal gets a fresh attempt. An
// ambiguous outcome (timeout or connection failure) triggers a
// reconciliation read instead of a blind retry.
func (m *Manager) OpenPosition(ctx context.Context, sig models.StrategySignal, qty int, holdDeadline time.Time) (*models.Position, error) {
	req := broker.OrderRequest{
		Symbol:   sig.Symbol,
		Side:     models.EntrySide(sig.Direction),
		Quantity: qty,
		Type:     models.OrderTypeMarket,
	}

	order, err := m.broker.SubmitOrder(ctx, req)
	if err != nil {
		if m.ambiguous(err) {
			return m.reconcileEntry(ctx, sig, qty, holdDeadline)
		}
		m.logger.Warn().Str("symbol", sig.Symbol).Err(err).Msg("entry submission rejected, dropping signal")
		return nil, apperrors.NewOrderError("", sig.Symbol, "submit", "entry rejected", err)
	}

	mp := &ManagedPosition{
		pos: models.Position{
			Symbol:        sig.Symbol,
			Direction:     sig.Direction,
			Quantity:      order.FilledQuantity,
			AvgEntryPrice: order.FilledAvgPrice,
			Stop:          sig.Stop,
			Target:        sig.Target,
			OpenedAt:      time.Now(),
			EntryOrderID:  order.ID,
		},
		holdDeadline: holdDeadline,
		stopDistance: stopDistance(sig),
	}

	switch order.State {
	case models.OrderFilled:
		mp.pos.State = models.PositionFilled
	case models.OrderPartiallyFilled:
		mp.pos.State = models.PositionPartiallyFilled
		m.scheduleRemainderCancel(mp, sig.Symbol, order.ID)
	case models.OrderRejected:
		return nil, apperrors.NewOrderError(order.ID, sig.Symbol, "submit", "entry rejected", apperrors.ErrOrderRejected)
	default:
		mp.pos.State = models.PositionSubmitted
		m.scheduleRemainderCancel(mp, sig.Symbol, order.ID)
	}

	if !m.book.Add(mp) {
		// The risk gate guarantees one position per symbol; reaching
		// here means the invariant was violated upstream.
		return nil, apperrors.ErrPositionOpen
	}

	m.logger.Info().
		Str("symbol", sig.Symbol).
		Str("direction", string(sig.Direction)).
		Int("qty", order.FilledQuantity).
		Float64("entry", order.FilledAvgPrice).
		Float64("stop", mp.pos.Stop).
		Float64("target", mp.pos.Target).
		Msg("position opened")

	snap := mp.Snapshot()
	return &snap, nil
}

// stopDistance fixes the trailing distance from the signal's own levels so
// the monitor trails with the same volatility scale the entry used.
func stopDistance(sig models.StrategySignal) float64 {
	d := sig.Entry - sig.Stop
	if d < 0 {
		d = -d
	}
	return d
}

// ambiguous reports whether the submission outcome is unknown rather than
// a definite rejection.
func (m *Manager) ambiguous(err error) bool {
	return apperrors.Is(err, apperrors.ErrTimeout) ||
		apperrors.Is(err, apperrors.ErrConnectionFailed) ||
		apperrors.Is(err, context.DeadlineExceeded)
}

// reconcileEntry resolves an ambiguous submission by reading broker-side
// state. If the position materialized, it is adopted; otherwise the signal
// is dropped.
func (m *Manager) reconcileEntry(ctx context.Context, sig models.StrategySignal, qty int, holdDeadline time.Time) (*models.Position, error) {
	positions, err := m.broker.ListPositions(ctx)
	if err != nil {
		return nil, apperrors.NewOrderError("", sig.Symbol, "reconcile", "broker state unavailable after ambiguous submit", err)
	}

	for _, pos := range positions {
		if pos.Symbol != sig.Symbol {
			continue
		}
		mp := &ManagedPosition{
			pos: models.Position{
				Symbol:        pos.Symbol,
				Direction:     pos.Direction,
				Quantity:      pos.Quantity,
				AvgEntryPrice: pos.AvgEntryPrice,
				Stop:          sig.Stop,
				Target:        sig.Target,
				OpenedAt:      time.Now(),
				State:         models.PositionFilled,
			},
			holdDeadline: holdDeadline,
			stopDistance: stopDistance(sig),
		}
		if !m.book.Add(mp) {
			return nil, apperrors.ErrPositionOpen
		}
		m.logger.Warn().Str("symbol", sig.Symbol).Msg("adopted position found during reconciliation")
		snap := mp.Snapshot()
		return &snap, nil
	}

	m.logger.Warn().Str("symbol", sig.Symbol).Int("qty", qty).Msg("ambiguous submit did not materialize, dropping signal")
	return nil, apperrors.NewOrderError("", sig.Symbol, "submit", "ambiguous outcome, no position found", apperrors.ErrTimeout)
}

// scheduleRemainderCancel arranges for the unfilled remainder of an entry
// order to be cancelled after the configured timeout instead of resting
// indefinitely. The timer handle lives on the position so settling the
// entry through any other path stops it.
func (m *Manager) scheduleRemainderCancel(mp *ManagedPosition, symbol, orderID string) {
	mp.setRemainderTimer(time.AfterFunc(m.partialFillTimeout, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.FinalizePartialFill(ctx, symbol, orderID); err != nil {
			m.logger.Error().Str("symbol", symbol).Err(err).Msg("finalizing partial fill failed")
		}
	}))
}

// settleEntryRemainder cancels whatever is left of the entry order and
// books the fills that actually landed onto the position. It returns the
// order's final state so callers can act on the settled quantity.
func (m *Manager) settleEntryRemainder(ctx context.Context, mp *ManagedPosition, orderID string) (*models.Order, error) {
	order, err := utils.RetryWithResult(ctx, m.retry, func() (*models.Order, error) {
		return m.broker.GetOrderStatus(ctx, orderID)
	})
	if err != nil {
		return nil, fmt.Errorf("reconciling entry order %s: %w", orderID, err)
	}

	if !order.State.Terminal() {
		if err := utils.Retry(ctx, m.retry, func() error {
			return m.broker.CancelOrder(ctx, orderID)
		}); err != nil {
			return nil, fmt.Errorf("cancelling remainder of %s: %w", orderID, err)
		}
		// Re-read for fills that landed while the cancel was in flight.
		if refreshed, rerr := m.broker.GetOrderStatus(ctx, orderID); rerr == nil {
			order = refreshed
		}
	}

	mp.withLock(func(p *models.Position) {
		p.Quantity = order.FilledQuantity
		if order.FilledQuantity > 0 {
			p.AvgEntryPrice = order.FilledAvgPrice
		}
	})
	mp.stopRemainderTimer()
	return order, nil
}

// FinalizePartialFill cancels the unfilled remainder of the entry order and
// settles the position on whatever quantity actually filled. A position
// with zero fills is cancelled outright.
func (m *Manager) FinalizePartialFill(ctx context.Context, symbol, orderID string) error {
	mp, ok := m.book.Get(symbol)
	if !ok {
		return nil
	}

	var pending bool
	mp.withLock(func(p *models.Position) {
		pending = p.State == models.PositionSubmitted || p.State == models.PositionPartiallyFilled
	})
	if !pending {
		return nil
	}

	order, err := m.settleEntryRemainder(ctx, mp, orderID)
	if err != nil {
		return err
	}

	if order.FilledQuantity == 0 {
		mp.withLock(func(p *models.Position) { p.State = models.PositionCancelled })
		m.book.Remove(symbol)
		m.logger.Info().Str("symbol", symbol).Msg("entry never filled, position cancelled")
		return nil
	}

	mp.withLock(func(p *models.Position) { p.State = models.PositionFilled })
	m.logger.Info().Str("symbol", symbol).Int("qty", order.FilledQuantity).Msg("remainder cancelled, managing filled quantity")
	return nil
}

// RequestExit transitions a position to ExitPending and submits the closing
// order. The transition is idempotent: a position already exiting is left
// alone, so two monitors can never race two closing orders. If the closing
// order cannot be placed after bounded retries the failure escalates to the
// operator channel; the position stays booked and monitored.
func (m *Manager) RequestExit(ctx context.Context, symbol string, reason ExitReason) error {
	mp, ok := m.book.Get(symbol)
	if !ok {
		return apperrors.ErrPositionNotFound
	}

	var qty int
	var dir models.Direction
	var entryOrderID string
	entryResting := false
	proceed := false
	mp.withLock(func(p *models.Position) {
		switch p.State {
		case models.PositionFilled:
		case models.PositionSubmitted, models.PositionPartiallyFilled:
			entryResting = true
		default:
			return
		}
		p.State = models.PositionExitPending
		mp.exitReason = reason
		qty = p.Quantity
		dir = p.Direction
		entryOrderID = p.EntryOrderID
		proceed = true
	})
	if !proceed {
		return nil
	}

	m.logger.Info().Str("symbol", symbol).Str("reason", string(reason)).Msg("exit requested")

	if entryResting {
		// The entry order may still have an unfilled remainder resting at
		// the broker. Cancel it and fold any late fills into the closing
		// quantity; an entry order must not outlive its position.
		order, serr := m.settleEntryRemainder(ctx, mp, entryOrderID)
		if serr != nil {
			m.notifier.Fatal(ctx, fmt.Sprintf("failed to settle entry remainder for %s", symbol), serr)
			return apperrors.NewOrderError(entryOrderID, symbol, "close", "entry remainder not settled", serr)
		}
		qty = order.FilledQuantity
	}

	if qty == 0 {
		// Nothing ever filled; lifecycle ends without a closing order.
		mp.withLock(func(p *models.Position) { p.State = models.PositionClosed })
		m.book.Remove(symbol)
		return nil
	}

	order, err := utils.RetryWithResult(ctx, m.retry, func() (*models.Order, error) {
		o, serr := m.broker.SubmitOrder(ctx, broker.OrderRequest{
			Symbol:   symbol,
			Side:     models.ExitSide(dir),
			Quantity: qty,
			Type:     models.OrderTypeMarket,
		})
		if serr != nil && m.ambiguous(serr) {
			// Unknown outcome: check whether the close already landed
			// before letting the retry loop submit a duplicate.
			if closed, cerr := m.positionGone(ctx, symbol); cerr == nil && closed {
				return &models.Order{Symbol: symbol, State: models.OrderFilled, FilledQuantity: qty}, nil
			}
		}
		return o, serr
	})
	if err != nil {
		m.notifier.Fatal(ctx, fmt.Sprintf("failed to close position %s after %d attempts", symbol, m.retry.MaxAttempts), err)
		return apperrors.NewOrderError("", symbol, "close", "closing order failed after bounded retries", err)
	}

	// Wait for fill confirmation before declaring the lifecycle over.
	if !order.State.Terminal() {
		confirmed, cerr := utils.RetryWithResult(ctx, m.retry, func() (*models.Order, error) {
			o, gerr := m.broker.GetOrderStatus(ctx, order.ID)
			if gerr != nil {
				return nil, gerr
			}
			if !o.State.Terminal() {
				return nil, apperrors.NewBrokerError("PENDING", "closing order not yet filled", apperrors.ErrTimeout)
			}
			return o, nil
		})
		if cerr != nil {
			m.notifier.Fatal(ctx, fmt.Sprintf("closing order for %s not confirmed", symbol), cerr)
			return apperrors.NewOrderError(order.ID, symbol, "close", "fill confirmation failed", cerr)
		}
		order = confirmed
	}

	mp.withLock(func(p *models.Position) {
		p.ExitOrderID = order.ID
		p.State = models.PositionClosed
	})
	m.book.Remove(symbol)

	m.logger.Info().
		Str("symbol", symbol).
		Str("reason", string(reason)).
		Float64("exit_price", order.FilledAvgPrice).
		Msg("position closed")
	return nil
}

// positionGone reports whether the broker no longer holds a position for
// the symbol.
func (m *Manager) positionGone(ctx context.Context, symbol string) (bool, error) {
	positions, err := m.broker.ListPositions(ctx)
	if err != nil {
		return false, err
	}
	for _, pos := range positions {
		if pos.Symbol == symbol {
			return false, nil
		}
	}
	return true, nil
}
