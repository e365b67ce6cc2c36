package trading

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"intraday-trader/internal/broker"
	"intraday-trader/internal/config"
	"intraday-trader/internal/models"
)

func newTestEngine(pb *broker.PaperBroker, cfg *config.Config) *Engine {
	return NewEngine(cfg, nil, pb, nil, &recordingNotifier{}, zerolog.Nop())
}

func engineConfig() *config.Config {
	cfg := config.Default()
	cfg.Trading.Watchlist = []string{"AAPL"}
	cfg.Trading.BarInterval = time.Minute
	cfg.Exit.DrainDeadline = 2 * time.Second
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	return cfg
}

var barBase = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// feedBars appends one-minute bars starting at barBase and returns the
// time just after the last bar, for use as the evaluation clock.
func feedBars(t *testing.T, e *Engine, symbol string, closes []float64) time.Time {
	t.Helper()
	for i, c := range closes {
		bar := models.Bar{
			Symbol:    symbol,
			Timestamp: barBase.Add(time.Duration(i) * time.Minute),
			Open:      c, High: c * 1.001, Low: c * 0.999, Close: c,
			Volume: 10000,
		}
		if err := e.windows.Append(bar); err != nil {
			t.Fatal(err)
		}
	}
	return barBase.Add(time.Duration(len(closes)) * time.Minute)
}

func TestEngineEvaluateSymbolInsufficientBars(t *testing.T) {
	pb := broker.NewPaperBroker(100000)
	e := newTestEngine(pb, engineConfig())

	rec := e.evaluateSymbol(context.Background(), "AAPL", time.Now())
	if rec.Verdict != models.VerdictNoSignal {
		t.Errorf("verdict = %s, want NO_SIGNAL", rec.Verdict)
	}
	if rec.Reason != "insufficient bars" {
		t.Errorf("reason = %q", rec.Reason)
	}
}

func TestEngineEvaluateSymbolSkipsDirtyWindow(t *testing.T) {
	pb := broker.NewPaperBroker(100000)
	e := newTestEngine(pb, engineConfig())

	now := feedBars(t, e, "AAPL", []float64{100, 101, 102})
	// An out-of-order bar taints the window for this cycle.
	outOfOrder := models.Bar{
		Symbol:    "AAPL",
		Timestamp: barBase,
		Open:      100, High: 100, Low: 100, Close: 100, Volume: 1,
	}
	if err := e.windows.Append(outOfOrder); err == nil {
		t.Fatal("expected out-of-order rejection")
	}

	rec := e.evaluateSymbol(context.Background(), "AAPL", now)
	if !strings.Contains(rec.Reason, "dirty") {
		t.Errorf("reason = %q, want dirty-window skip", rec.Reason)
	}

	// The dirty flag is consumed; the next cycle evaluates normally.
	rec = e.evaluateSymbol(context.Background(), "AAPL", now)
	if strings.Contains(rec.Reason, "dirty") {
		t.Errorf("dirty flag must clear after one skipped cycle, got %q", rec.Reason)
	}
}

func TestEngineEvaluateSymbolSkipsStaleWindow(t *testing.T) {
	pb := broker.NewPaperBroker(100000)
	e := newTestEngine(pb, engineConfig())

	now := feedBars(t, e, "AAPL", []float64{100, 101, 102})

	// Fresh enough: three one-minute bars evaluated right after the last.
	rec := e.evaluateSymbol(context.Background(), "AAPL", now)
	if rec.Reason == "stale window" {
		t.Fatalf("fresh window evaluated as stale")
	}

	// The feed has been silent well past the bar interval; the window must
	// not be evaluated on frozen data.
	rec = e.evaluateSymbol(context.Background(), "AAPL", now.Add(30*time.Minute))
	if rec.Reason != "stale window" {
		t.Errorf("reason = %q, want stale-window skip", rec.Reason)
	}
	if rec.Verdict != models.VerdictNoSignal {
		t.Errorf("verdict = %s, want NO_SIGNAL", rec.Verdict)
	}
}

func TestEngineRiskSweepPreservesDirtyFlag(t *testing.T) {
	pb := broker.NewPaperBroker(100000)
	e := newTestEngine(pb, engineConfig())

	pb.SetPrice("AAPL", 100)
	if _, err := e.manager.OpenPosition(context.Background(), longSignal("AAPL", 100), 10, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	feedBars(t, e, "AAPL", []float64{100, 101, 102})
	// A gapped bar taints the window between evaluation and the sweep.
	gapped := models.Bar{
		Symbol:    "AAPL",
		Timestamp: barBase.Add(10 * time.Minute),
		Open:      102, High: 102, Low: 102, Close: 102, Volume: 1,
	}
	if err := e.windows.Append(gapped); err != nil {
		t.Fatal(err)
	}

	e.checkRiskBreaches(context.Background())

	// The sweep's price lookup must not have consumed the dirty flag.
	rec := e.evaluateSymbol(context.Background(), "AAPL", barBase.Add(11*time.Minute))
	if !strings.Contains(rec.Reason, "dirty") {
		t.Errorf("reason = %q, want dirty-window skip after risk sweep", rec.Reason)
	}
}

func TestEngineQuoteWithZeroAskMarksFromBid(t *testing.T) {
	pb := broker.NewPaperBroker(100000)
	e := newTestEngine(pb, engineConfig())

	pb.SetPrice("AAPL", 100)
	if _, err := e.manager.OpenPosition(context.Background(), longSignal("AAPL", 100), 10, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	// The ask side is reported as zero; the mark price falls back to the
	// bid, which is through the stop.
	pb.SetPrice("AAPL", 97.5)
	e.handleQuote(context.Background(), models.Quote{
		Symbol: "AAPL",
		Bid:    97.5,
		Ask:    0,
	})
	if e.book.Len() != 0 {
		t.Error("quote through the stop must trigger the exit")
	}
}

func TestEngineShutdownDrainsOpenPositions(t *testing.T) {
	pb := broker.NewPaperBroker(100000)
	e := newTestEngine(pb, engineConfig())

	pb.SetPrice("AAPL", 100)
	if _, err := e.manager.OpenPosition(context.Background(), longSignal("AAPL", 100), 10, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if err := e.shutdown(); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if e.book.Len() != 0 {
		t.Error("shutdown must drain the book")
	}
	positions, _ := pb.ListPositions(context.Background())
	if len(positions) != 0 {
		t.Error("broker-side position survived shutdown")
	}
}

func TestEngineRiskBreachForcesExit(t *testing.T) {
	pb := broker.NewPaperBroker(1000000)
	cfg := engineConfig()
	cfg.Risk.MaxPositionNotional = 25000
	e := newTestEngine(pb, cfg)

	pb.SetPrice("AAPL", 100)
	if _, err := e.manager.OpenPosition(context.Background(), longSignal("AAPL", 100), 200, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	// Price appreciation pushes the notional past the cap.
	feedBars(t, e, "AAPL", []float64{100, 120, 140})
	pb.SetPrice("AAPL", 140)

	e.checkRiskBreaches(context.Background())
	if e.book.Len() != 0 {
		t.Error("notional breach must force the position closed")
	}
}
