// Package notify provides operator-visible notification channels.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier delivers operator-visible messages. Fatal is the escalation
// channel for failures that must never be silently dropped, such as a
// position that could not be closed after bounded retries.
type Notifier interface {
	Alert(ctx context.Context, message string)
	Fatal(ctx context.Context, message string, err error)
}

// TerminalNotifier writes notifications through the structured logger.
type TerminalNotifier struct {
	logger zerolog.Logger
}

// NewTerminalNotifier creates a terminal notifier.
func NewTerminalNotifier(logger zerolog.Logger) *TerminalNotifier {
	return &TerminalNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

// Alert logs an operator alert.
func (n *TerminalNotifier) Alert(ctx context.Context, message string) {
	n.logger.Warn().Msg(message)
}

// Fatal logs an operator-visible fatal condition. The process keeps
// running; fatal here means "requires immediate operator attention",
// not os.Exit.
func (n *TerminalNotifier) Fatal(ctx context.Context, message string, err error) {
	n.logger.Error().Err(err).Str("severity", "FATAL").Msg(message)
}
