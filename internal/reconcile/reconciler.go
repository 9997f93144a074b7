package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stonkers/stonkers-bot/internal/errors"
	"github.com/stonkers/stonkers-bot/internal/exchange"
	"github.com/stonkers/stonkers-bot/internal/logger"
	"github.com/stonkers/stonkers-bot/internal/monitoring"
	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/registry"
	"github.com/stonkers/stonkers-bot/internal/storage"
)

// ExternalStrategyName marks positions adopted from the broker so risk rules
// apply to them like any locally-opened position.
const ExternalStrategyName = "EXTERNAL"

// staleCloseReason marks a reconciliation-driven close; it is distinguishable
// from market-priced closes by the "not found on exchange" text.
const staleCloseReason = "Reconciliation: position not found on exchange"

// Result summarizes one reconciliation pass.
type Result struct {
	Adopted     []string
	StaleClosed []string
	Matched     []string
	Failed      []string
}

// Reconciler diffs broker-reported open positions against the local registry
// and resolves drift in both directions. Every action is written to the
// append-only audit log.
type Reconciler struct {
	broker exchange.Broker
	book   *registry.Registry
	store  storage.Store
	log    *logger.Logger
}

// New creates a reconciler over the given broker and registry.
func New(broker exchange.Broker, book *registry.Registry, store storage.Store, log *logger.Logger) *Reconciler {
	return &Reconciler{broker: broker, book: book, store: store, log: log}
}

// Run performs one reconciliation pass. A failure on one pair never aborts
// the pass: it is logged, recorded in the result, and the remaining pairs
// are still processed. Only a failure to read the broker's position list
// returns an error.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	brokerPositions, err := r.broker.GetOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: failed to fetch broker positions: %w", err)
	}

	remote := make(map[string]exchange.BrokerPosition, len(brokerPositions))
	for _, bp := range brokerPositions {
		remote[bp.Pair] = bp
	}
	local := r.book.AllOpen()

	res := &Result{}

	for pair, bp := range remote {
		if _, ok := local[pair]; ok {
			res.Matched = append(res.Matched, pair)
			continue
		}
		if err := r.adopt(bp); err != nil {
			r.fail(res, pair, "ADOPT", err)
			continue
		}
		monitoring.RecordReconcileAction("ADOPT")
		res.Adopted = append(res.Adopted, pair)
	}

	for pair, p := range local {
		if _, ok := remote[pair]; ok {
			continue // already counted as matched
		}
		if err := r.staleClose(pair, p); err != nil {
			r.fail(res, pair, "STALE_CLOSE", err)
			continue
		}
		monitoring.RecordReconcileAction("STALE_CLOSE")
		res.StaleClosed = append(res.StaleClosed, pair)
	}

	if r.log != nil {
		r.log.Info("reconciliation complete: %d adopted, %d stale-closed, %d matched, %d failed",
			len(res.Adopted), len(res.StaleClosed), len(res.Matched), len(res.Failed))
	}
	return res, nil
}

// adopt inserts a broker-only position into the registry as an OPEN position
// attributed to the external strategy.
func (r *Reconciler) adopt(bp exchange.BrokerPosition) error {
	direction := position.Long
	if bp.Side == "short" {
		direction = position.Short
	}

	p := &position.Position{
		ID:           position.ExternalID(),
		Pair:         bp.Pair,
		Direction:    direction,
		EntryPrice:   bp.EntryPrice,
		Quantity:     bp.Quantity,
		EntryTime:    time.Now().UTC(),
		StrategyName: ExternalStrategyName,
		Status:       position.StatusOpen,
	}
	if err := r.book.Open(p); err != nil {
		return err
	}

	r.audit("ADOPT", bp.Pair, fmt.Sprintf("adopted broker position: %s %.6f @ $%.2f",
		bp.Side, bp.Quantity, bp.EntryPrice))
	return nil
}

// staleClose closes a registry-only position at its entry price. No market
// data is assumed available on this path.
func (r *Reconciler) staleClose(pair string, p *position.Position) error {
	closed, err := r.book.Close(pair, p.EntryPrice, staleCloseReason, 0)
	if err != nil {
		return err
	}

	r.audit("STALE_CLOSE", pair, fmt.Sprintf("closed local position %s at entry price $%.2f: %s",
		closed.ID, closed.ExitPrice, staleCloseReason))
	return nil
}

func (r *Reconciler) fail(res *Result, pair, action string, err error) {
	res.Failed = append(res.Failed, pair)
	monitoring.RecordReconcileAction("FAILED_" + action)
	wrapped := errors.NewReconcile(strings.ToLower(action), pair, err)
	if r.log != nil {
		r.log.LogError("reconcile "+pair, wrapped)
	}
	r.audit("FAILED_"+action, pair, wrapped.Error())
}

// audit writes to the append-only reconciliation log. Audit failures are
// logged but never propagated; the action itself already happened.
func (r *Reconciler) audit(action, pair, details string) {
	if err := r.store.InsertAuditEntry(action, pair, details); err != nil && r.log != nil {
		r.log.LogError("audit log write for "+pair, err)
	}
}
