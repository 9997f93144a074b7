package registry

import (
	"sync"
	"time"

	"github.com/stonkers/stonkers-bot/internal/errors"
	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/storage"
)

// Registry is the single source of truth for open positions: a durable store
// plus an in-memory map keyed by pair. Writes always hit the store before
// the cache, so the cache is reconstructable from the store after a crash
// and is never authoritative on its own.
type Registry struct {
	store storage.Store

	mu    sync.RWMutex
	cache map[string]*position.Position

	// onClose, when set, runs after every successful close with the closed
	// position's ID, whichever component initiated the close.
	onClose func(positionID string)
}

// New builds a registry and warms the cache from the durable store.
func New(store storage.Store) (*Registry, error) {
	r := &Registry{
		store: store,
		cache: make(map[string]*position.Position),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload rebuilds the cache from the durable store.
func (r *Registry) Reload() error {
	open, err := r.store.GetOpenPositions()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*position.Position, len(open))
	for _, p := range open {
		r.cache[p.Pair] = p
	}
	return nil
}

// OnClose registers the post-close hook. The engine points this at the
// risk policy so per-position state (trailing watermarks) is dropped on
// every close path, including reconciliation and emergency liquidation.
func (r *Registry) OnClose(fn func(positionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClose = fn
}

// HasPosition reports whether the pair has an open position.
func (r *Registry) HasPosition(pair string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cache[pair]
	return ok
}

// Get returns a copy of the open position for pair, or nil. Callers never
// receive a mutable alias into the cache.
func (r *Registry) Get(pair string) *position.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.cache[pair]
	if !ok {
		return nil
	}
	copied := *p
	return &copied
}

// AllOpen returns a snapshot of all open positions keyed by pair.
func (r *Registry) AllOpen() map[string]*position.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]*position.Position, len(r.cache))
	for pair, p := range r.cache {
		copied := *p
		snapshot[pair] = &copied
	}
	return snapshot
}

// CountOpen returns the number of open positions.
func (r *Registry) CountOpen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Open registers a new position. Fails when the pair already has an open
// position or the position's own status is not OPEN. The durable write
// happens first; the cache is only updated once the store accepted the row.
func (r *Registry) Open(p *position.Position) error {
	if p.Status != position.StatusOpen {
		return errors.NewInvariant("registry", "open", "can only open positions with OPEN status")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cache[p.Pair]; ok {
		return errors.NewInvariant("registry", "open", "already have open position for "+p.Pair)
	}

	if err := r.store.InsertPosition(p); err != nil {
		return err
	}

	copied := *p
	r.cache[p.Pair] = &copied
	return nil
}

// Close transitions the pair's open position to CLOSED, persists the updated
// row together with its derived trade row, and evicts the pair from the
// cache. fees is the commission charged across both legs, subtracted from
// the trade's recorded P&L.
func (r *Registry) Close(pair string, exitPrice float64, reason string, fees float64) (*position.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	open, ok := r.cache[pair]
	if !ok {
		return nil, errors.NewInvariant("registry", "close", "no open position for "+pair)
	}

	closed, err := open.Close(exitPrice, reason, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	trade, err := position.TradeFromClosed(closed, fees)
	if err != nil {
		return nil, err
	}

	// Store first. On failure the cache still holds the open position and
	// the close can be retried.
	if err := r.store.CloseAndRecord(closed, trade); err != nil {
		return nil, err
	}

	delete(r.cache, pair)
	if r.onClose != nil {
		r.onClose(closed.ID)
	}
	return closed, nil
}

// TotalExposure sums entry notional across open positions that have a price
// in the given map. No network calls happen here; callers supply prices.
func (r *Registry) TotalExposure(currentPrices map[string]float64) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exposure := 0.0
	for pair, p := range r.cache {
		if _, ok := currentPrices[pair]; ok {
			exposure += p.Notional()
		}
	}
	return exposure
}

// TotalUnrealizedPnL sums mark-to-market P&L across open positions that have
// a price in the given map.
func (r *Registry) TotalUnrealizedPnL(currentPrices map[string]float64) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0.0
	for pair, p := range r.cache {
		price, ok := currentPrices[pair]
		if !ok {
			continue
		}
		if pnl, err := p.UnrealizedPnL(price); err == nil {
			total += pnl
		}
	}
	return total
}
