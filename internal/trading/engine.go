package trading

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"intraday-trader/internal/analysis/indicators"
	"intraday-trader/internal/analysis/scoring"
	"intraday-trader/internal/broker"
	"intraday-trader/internal/config"
	apperrors "intraday-trader/internal/errors"
	"intraday-trader/internal/marketdata"
	"intraday-trader/internal/models"
	"intraday-trader/internal/notify"
	"intraday-trader/internal/store"
	"intraday-trader/internal/strategy"
	"intraday-trader/pkg/utils"
)

// Engine runs the scan loop: it consumes bars into per-symbol windows and,
// on each cycle, walks the watchlist through snapshot, scoring, strategy
// evaluation, arbitration, the risk gate and order placement. One engine
// goroutine owns all position transitions; the bar consumer only feeds
// windows and the exit monitor.
type Engine struct {
	cfg        *config.Config
	feed       marketdata.Feed
	windows    *marketdata.WindowSet
	builder    *indicators.SnapshotBuilder
	scorer     *scoring.ConfidenceScorer
	strategies []strategy.Strategy
	arbiter    *strategy.Arbiter
	gate       *Gate
	manager    *Manager
	monitor    *Monitor
	book       *Book
	store      store.DecisionStore
	notifier   notify.Notifier
	logger     zerolog.Logger

	mu         sync.RWMutex
	stopping   bool
	lastScores map[string][]models.ConfidenceScore
	lastATR    map[string]float64
}

// NewEngine wires the full decision pipeline from configuration.
func NewEngine(cfg *config.Config, feed marketdata.Feed, b broker.Broker, ds store.DecisionStore, notifier notify.Notifier, logger zerolog.Logger) *Engine {
	book := NewBook()
	retry := utils.RetryConfig{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		InitialDelay:  cfg.Retry.InitialDelay,
		MaxDelay:      cfg.Retry.MaxDelay,
		BackoffFactor: cfg.Retry.BackoffFactor,
	}
	manager := NewManager(b, book, notifier, retry, cfg.Exit.PartialFillTimeout, logger)

	var strategies []strategy.Strategy
	if cfg.Strategies.Momentum.Enabled {
		strategies = append(strategies, strategy.NewMomentum(cfg.Strategies.Momentum, cfg.Scoring))
	}
	if cfg.Strategies.MeanReversion.Enabled {
		strategies = append(strategies, strategy.NewMeanReversion(cfg.Strategies.MeanReversion, cfg.Scoring))
	}
	if cfg.Strategies.VWAPBounce.Enabled {
		strategies = append(strategies, strategy.NewVWAPBounce(cfg.Strategies.VWAPBounce, cfg.Scoring))
	}

	return &Engine{
		cfg:        cfg,
		feed:       feed,
		windows:    marketdata.NewWindowSet(cfg.Trading.WindowSize, cfg.Trading.BarInterval),
		builder:    indicators.NewSnapshotBuilder(indicators.DefaultSnapshotParams(), 4),
		scorer:     scoring.NewConfidenceScorer(cfg.Scoring),
		strategies: strategies,
		arbiter:    strategy.NewArbiter(cfg.Risk.MinConfidence, cfg.Risk.MinConfirmations),
		gate:       NewGate(cfg.Risk, b, book),
		manager:    manager,
		monitor:    NewMonitor(cfg.Exit, book, manager, logger),
		book:       book,
		store:      ds,
		notifier:   notifier,
		logger:     logger.With().Str("component", "engine").Logger(),
	}
}

// Book exposes the position book for read-only inspection.
func (e *Engine) Book() *Book { return e.book }

// OpenPositions returns a copy of all currently tracked positions.
func (e *Engine) OpenPositions() []models.Position {
	return e.book.OpenPositions()
}

// Scores returns the most recent confidence scores for a symbol.
func (e *Engine) Scores(symbol string) []models.ConfidenceScore {
	e.mu.RLock()
	defer e.mu.RUnlock()
	scores := e.lastScores[symbol]
	out := make([]models.ConfidenceScore, len(scores))
	copy(out, scores)
	return out
}

// Run starts the feed, the bar consumer and the scan loop, and blocks until
// ctx is cancelled. On cancellation it performs an orderly shutdown: signal
// generation stops immediately, every open position is asked to exit, and
// positions are drained within the configured deadline before escalating.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.feed.Subscribe(e.cfg.Trading.Watchlist); err != nil {
		return err
	}

	feedCtx, cancelFeed := context.WithCancel(context.Background())
	defer cancelFeed()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := e.feed.Run(feedCtx); err != nil && feedCtx.Err() == nil {
			// With the feed dead the windows stop advancing; the per-cycle
			// bar-age check keeps stale symbols out of evaluation, but the
			// operator has to know the engine is flying blind.
			e.logger.Error().Err(err).Msg("feed terminated")
			e.notifier.Alert(feedCtx, "market data feed terminated: "+err.Error())
		}
	}()
	go func() {
		defer wg.Done()
		e.consumeBars(feedCtx)
	}()

	e.logger.Info().
		Strs("watchlist", e.cfg.Trading.Watchlist).
		Dur("scan_interval", e.cfg.Trading.ScanInterval).
		Msg("engine started")

	ticker := time.NewTicker(e.cfg.Trading.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The feed stays up through the drain so the monitor keeps
			// seeing prices while positions close.
			err := e.shutdown()
			cancelFeed()
			wg.Wait()
			return err
		case <-ticker.C:
			e.scanCycle(feedCtx)
		}
	}
}

// consumeBars routes feed bars into windows and drives the exit monitor off
// every bar close and quote tick for symbols with an open position.
func (e *Engine) consumeBars(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-e.feed.Bars():
			if !ok {
				return
			}
			e.handleBar(ctx, bar)
		case quote, ok := <-e.feed.Quotes():
			if !ok {
				return
			}
			e.handleQuote(ctx, quote)
		}
	}
}

func (e *Engine) handleBar(ctx context.Context, bar models.Bar) {
	if err := e.windows.Append(bar); err != nil {
		e.logger.Warn().Err(err).Str("symbol", bar.Symbol).Time("bar", bar.Timestamp).Msg("bar rejected")
	}
	if _, open := e.book.Get(bar.Symbol); open {
		e.mu.RLock()
		atr := e.lastATR[bar.Symbol]
		e.mu.RUnlock()
		e.monitor.Check(ctx, bar.Symbol, bar.Close, atr)
	}
}

// handleQuote marks open positions between bar closes. Quote.Mid falls
// back to the valid side when one side of the book is reported as zero, so
// a half-formed quote never produces a zero mark price.
func (e *Engine) handleQuote(ctx context.Context, quote models.Quote) {
	if _, open := e.book.Get(quote.Symbol); !open {
		return
	}
	price := quote.Mid()
	if price <= 0 {
		return
	}
	e.mu.RLock()
	atr := e.lastATR[quote.Symbol]
	e.mu.RUnlock()
	e.monitor.Check(ctx, quote.Symbol, price, atr)
}

// scanCycle evaluates every watchlist symbol once and writes one decision
// record per symbol. Failures on one symbol never block the rest.
func (e *Engine) scanCycle(ctx context.Context) {
	now := time.Now()
	for _, symbol := range e.cfg.Trading.Watchlist {
		rec := e.evaluateSymbol(ctx, symbol, now)
		if err := e.store.SaveDecision(ctx, rec); err != nil {
			e.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to persist decision")
		}
	}
	e.checkRiskBreaches(ctx)
}

func (e *Engine) evaluateSymbol(ctx context.Context, symbol string, now time.Time) models.DecisionRecord {
	rec := models.DecisionRecord{
		Timestamp: now,
		Symbol:    symbol,
		Verdict:   models.VerdictNoSignal,
	}

	bars, clean := e.windows.Snapshot(symbol)
	if !clean {
		rec.Reason = "window dirty, skipping cycle"
		return rec
	}
	if len(bars) < 2 {
		rec.Reason = "insufficient bars"
		return rec
	}
	if interval := e.cfg.Trading.BarInterval; interval > 0 {
		if age := now.Sub(bars[len(bars)-1].Timestamp); age > 3*interval {
			rec.Reason = "stale window"
			return rec
		}
	}

	snap := e.builder.Build(ctx, symbol, bars)
	long, short := e.scorer.ScoreBoth(snap)
	rec.Snapshot = snap
	rec.Scores = []models.ConfidenceScore{long, short}

	e.mu.Lock()
	if e.lastScores == nil {
		e.lastScores = make(map[string][]models.ConfidenceScore)
	}
	if e.lastATR == nil {
		e.lastATR = make(map[string]float64)
	}
	e.lastScores[symbol] = rec.Scores
	if atr, ok := snap.Get(indicators.KeyATR); ok {
		e.lastATR[symbol] = atr
	}
	stopping := e.stopping
	e.mu.Unlock()

	in := strategy.Input{Symbol: symbol, Snapshot: snap, Bars: bars}
	for _, st := range e.strategies {
		if sig := st.Evaluate(in); sig != nil {
			rec.Proposals = append(rec.Proposals, *sig)
		}
	}

	scores := map[models.Direction]models.ConfidenceScore{
		models.DirectionLong:  long,
		models.DirectionShort: short,
	}
	selected, reason := e.arbiter.Decide(rec.Proposals, scores)
	rec.Reason = reason
	if selected == nil {
		return rec
	}
	rec.Selected = selected

	if stopping {
		rec.Verdict = models.VerdictRejected
		rec.Reason = "engine shutting down"
		return rec
	}

	qty, verdict, reason := e.gate.Approve(ctx, *selected)
	rec.Verdict = verdict
	rec.Reason = reason
	rec.Quantity = qty
	if verdict != models.VerdictApproved {
		return rec
	}

	holdDeadline := now.Add(e.cfg.Exit.MaxHoldTime)
	pos, err := e.manager.OpenPosition(ctx, *selected, qty, holdDeadline)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Msg("entry failed")
		rec.Reason = "entry failed: " + err.Error()
		return rec
	}
	if pos != nil {
		e.logger.Info().
			Str("symbol", symbol).
			Str("strategy", selected.Strategy).
			Str("direction", string(selected.Direction)).
			Int("quantity", qty).
			Float64("entry", selected.Entry).
			Float64("stop", selected.Stop).
			Float64("target", selected.Target).
			Msg("position opened")
	}
	return rec
}

// checkRiskBreaches exits any position whose notional at the latest price
// has grown past the configured per-position cap.
func (e *Engine) checkRiskBreaches(ctx context.Context) {
	for _, pos := range e.book.OpenPositions() {
		// Read-only lookup: the sweep must not consume a dirty flag the
		// next evaluation cycle relies on.
		bars := e.windows.Bars(pos.Symbol)
		if len(bars) == 0 {
			continue
		}
		price := bars[len(bars)-1].Close
		if pos.Notional(price) > e.cfg.Risk.MaxPositionNotional {
			e.logger.Warn().
				Str("symbol", pos.Symbol).
				Float64("notional", pos.Notional(price)).
				Float64("limit", e.cfg.Risk.MaxPositionNotional).
				Msg("position exceeds notional limit")
			if err := e.manager.RequestExit(ctx, pos.Symbol, ExitReasonRiskBreach); err != nil {
				e.logger.Error().Err(err).Str("symbol", pos.Symbol).Msg("risk-breach exit failed")
			}
		}
	}
}

// shutdown stops signal generation, requests an exit for every open
// position and waits for the book to drain. Positions still open past the
// drain deadline are flagged emergency and escalated to the operator.
func (e *Engine) shutdown() error {
	e.mu.Lock()
	e.stopping = true
	e.mu.Unlock()

	open := e.book.Symbols()
	e.logger.Info().Int("open_positions", len(open)).Msg("shutting down, draining positions")
	if len(open) == 0 {
		return nil
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Exit.DrainDeadline)
	defer cancel()

	for _, symbol := range open {
		if err := e.manager.RequestExit(drainCtx, symbol, ExitReasonShutdown); err != nil {
			e.logger.Error().Err(err).Str("symbol", symbol).Msg("shutdown exit failed")
		}
	}

	for e.book.Len() > 0 {
		select {
		case <-drainCtx.Done():
			remaining := e.book.Symbols()
			e.monitor.FlagEmergencyAll()
			err := apperrors.NewOrderError("", strings.Join(remaining, ","), "drain",
				"drain deadline exceeded with positions open", apperrors.ErrTimeout)
			e.notifier.Fatal(context.Background(), "shutdown drain deadline exceeded", err)
			return err
		case <-time.After(500 * time.Millisecond):
		}
	}
	e.logger.Info().Msg("all positions drained")
	return nil
}
