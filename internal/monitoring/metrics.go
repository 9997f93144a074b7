package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stonkers_trades_total",
			Help: "Closed trades by pair and outcome",
		},
		[]string{"pair", "outcome"},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stonkers_open_positions",
			Help: "Number of currently open positions",
		},
	)

	accountEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stonkers_account_equity",
			Help: "Current account equity including unrealized P&L",
		},
	)

	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stonkers_current_price",
			Help: "Latest observed close price per pair",
		},
		[]string{"pair"},
	)

	signalStrength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stonkers_signal_strength",
			Help: "Strength of the last signal per strategy",
		},
		[]string{"strategy"},
	)

	reconcileActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stonkers_reconcile_actions_total",
			Help: "Reconciliation actions by type",
		},
		[]string{"action"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stonkers_errors_total",
			Help: "Errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(accountEquity)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(signalStrength)
	prometheus.MustRegister(reconcileActions)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade records a closed trade.
func RecordTrade(pair string, pnl float64) {
	outcome := "win"
	if pnl < 0 {
		outcome = "loss"
	}
	tradesTotal.WithLabelValues(pair, outcome).Inc()
}

// SetOpenPositions updates the open position gauge.
func SetOpenPositions(n int) {
	openPositions.Set(float64(n))
}

// SetEquity updates the account equity gauge.
func SetEquity(equity float64) {
	accountEquity.Set(equity)
}

// UpdatePrice updates the latest price per pair.
func UpdatePrice(pair string, price float64) {
	currentPrice.WithLabelValues(pair).Set(price)
}

// RecordSignal records the strength of a strategy's last signal.
func RecordSignal(strategy string, strength float64) {
	signalStrength.WithLabelValues(strategy).Set(strength)
}

// RecordReconcileAction counts one reconciliation action ("ADOPT",
// "STALE_CLOSE", ...).
func RecordReconcileAction(action string) {
	reconcileActions.WithLabelValues(action).Inc()
}

// RecordError counts one error by category.
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
