package notifications

// Notifier receives trading lifecycle events. Send failures are reported
// to the caller, which logs and moves on; a dead notifier never blocks a
// trade.
type Notifier interface {
	// NotifySessionStart announces a new trading session.
	NotifySessionStart(mode string, pairs []string) error

	// NotifyTradeClosed reports one realized trade, P&L net of fees.
	NotifyTradeClosed(pair, direction string, pnl float64, reason string) error

	// NotifyHalt announces an emergency stop trip.
	NotifyHalt(reason string) error
}
