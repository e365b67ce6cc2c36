package marketdata

import (
	"context"

	"intraday-trader/internal/models"
)

// Feed delivers bar updates per symbol with monotonically increasing
// timestamps, plus point-in-time quotes for marking open positions between
// bar closes. The engine treats the transport as an external collaborator;
// ordering violations are caught downstream by the bar windows.
type Feed interface {
	Subscribe(symbols []string) error
	Bars() <-chan models.Bar
	Quotes() <-chan models.Quote
	Run(ctx context.Context) error
	Close() error
}
