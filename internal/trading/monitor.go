package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"intraday-trader/internal/config"
	"intraday-trader/internal/models"
)

// Monitor recalculates protective stops and requests exits for open
// positions. It runs once per monitoring cycle per position; stop movement
// is monotonic, tightening only, never adverse.
type Monitor struct {
	cfg       config.ExitConfig
	book      *Book
	lifecycle *Manager
	logger    zerolog.Logger

	now func() time.Time
}

// NewMonitor creates a trailing-stop and exit monitor.
func NewMonitor(cfg config.ExitConfig, book *Book, lifecycle *Manager, logger zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:       cfg,
		book:      book,
		lifecycle: lifecycle,
		logger:    logger.With().Str("component", "monitor").Logger(),
		now:       time.Now,
	}
}

// trailingDistance returns the distance the stop trails the price: a fixed
// percentage of entry, or an ATR multiple when the symbol's current ATR is
// known. Falls back to the entry-time stop distance when ATR is unavailable.
func (mon *Monitor) trailingDistance(pos models.Position, atr float64, entryStopDist float64) float64 {
	if mon.cfg.TrailingMode == "percent" {
		return pos.AvgEntryPrice * mon.cfg.TrailingPercent / 100
	}
	if atr > 0 {
		return atr * mon.cfg.TrailingATRMult
	}
	return entryStopDist
}

// Check runs one monitoring pass for a symbol against the latest price and
// ATR. Exit conditions are evaluated in order, first match wins: protective
// stop crossed, target reached, hold time elapsed, emergency flag set.
func (mon *Monitor) Check(ctx context.Context, symbol string, price, atr float64) {
	mp, ok := mon.book.Get(symbol)
	if !ok || price <= 0 {
		return
	}

	var reason ExitReason
	trigger := false

	mp.withLock(func(p *models.Position) {
		if p.State != models.PositionFilled && p.State != models.PositionPartiallyFilled {
			return
		}

		dist := mon.trailingDistance(*p, atr, mp.stopDistance)
		long := p.Direction == models.DirectionLong

		// Tighten the stop; never move it in the adverse direction.
		if long {
			if candidate := price - dist; candidate > p.Stop {
				p.Stop = candidate
			}
		} else {
			if candidate := price + dist; p.Stop == 0 || candidate < p.Stop {
				p.Stop = candidate
			}
		}

		switch {
		case long && price <= p.Stop, !long && price >= p.Stop:
			reason, trigger = ExitReasonStop, true
		case long && p.Target > 0 && price >= p.Target,
			!long && p.Target > 0 && price <= p.Target:
			reason, trigger = ExitReasonTarget, true
		case !mp.holdDeadline.IsZero() && mon.now().After(mp.holdDeadline):
			reason, trigger = ExitReasonTimeLimit, true
		case mp.emergency:
			reason, trigger = ExitReasonEmergency, true
		}
	})

	if !trigger {
		return
	}

	mon.logger.Info().
		Str("symbol", symbol).
		Str("reason", string(reason)).
		Float64("price", price).
		Msg("exit condition met")

	if err := mon.lifecycle.RequestExit(ctx, symbol, reason); err != nil {
		mon.logger.Error().Str("symbol", symbol).Err(err).Msg("exit request failed")
	}
}

// FlagEmergency marks a position for emergency close on the next
// monitoring pass.
func (mon *Monitor) FlagEmergency(symbol string) {
	if mp, ok := mon.book.Get(symbol); ok {
		mp.withLock(func(*models.Position) { mp.emergency = true })
	}
}

// FlagEmergencyAll marks every open position for emergency close.
func (mon *Monitor) FlagEmergencyAll() {
	for _, symbol := range mon.book.Symbols() {
		mon.FlagEmergency(symbol)
	}
}
