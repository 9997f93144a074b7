package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/stonkers/stonkers-bot/internal/errors"
	"github.com/stonkers/stonkers-bot/internal/position"
)

// MemoryStore is the in-process Store used by backtests. It keeps the same
// write discipline as the SQL store, including the atomic close-and-record.
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[string]*position.Position
	trades    []*position.Trade
	account   *AccountState
	equity    []EquitySnapshot
	audit     []AuditEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[string]*position.Position),
	}
}

func (s *MemoryStore) InsertPosition(p *position.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[p.ID]; exists {
		return errors.New(errors.CategoryStorage, "memory", "insert_position", "duplicate position id "+p.ID)
	}
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdatePosition(p *position.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[p.ID]; !exists {
		return errors.New(errors.CategoryStorage, "memory", "update_position", "unknown position id "+p.ID)
	}
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetOpenPositions() ([]*position.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*position.Position
	for _, p := range s.positions {
		if p.Status == position.StatusOpen {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CloseAndRecord applies the position update and the trade insert as one
// step, mirroring the SQL store's transaction.
func (s *MemoryStore) CloseAndRecord(closed *position.Position, trade *position.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[closed.ID]; !exists {
		return errors.New(errors.CategoryStorage, "memory", "close_and_record", "unknown position id "+closed.ID)
	}
	cp := *closed
	s.positions[closed.ID] = &cp
	ct := *trade
	s.trades = append(s.trades, &ct)
	return nil
}

func (s *MemoryStore) InsertTrade(t *position.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ct := *t
	s.trades = append(s.trades, &ct)
	return nil
}

func (s *MemoryStore) TradesClosedSince(since time.Time) ([]*position.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*position.Trade
	for _, t := range s.trades {
		if !t.ExitTime.Before(since) {
			ct := *t
			out = append(out, &ct)
		}
	}
	return out, nil
}

func (s *MemoryStore) RecentTrades(limit int) ([]*position.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := make([]*position.Trade, len(s.trades))
	copy(sorted, s.trades)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ExitTime.After(sorted[j].ExitTime)
	})

	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	out := make([]*position.Trade, len(sorted))
	for i, t := range sorted {
		ct := *t
		out[i] = &ct
	}
	return out, nil
}

func (s *MemoryStore) GetAccountState() (*AccountState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.account == nil {
		return nil, ErrNoAccountState
	}
	cp := *s.account
	return &cp, nil
}

func (s *MemoryStore) SaveAccountState(cash, equity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.account = &AccountState{Cash: cash, Equity: equity, LastUpdated: time.Now().UTC()}
	return nil
}

func (s *MemoryStore) InsertEquitySnapshot(snap EquitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.equity = append(s.equity, snap)
	return nil
}

func (s *MemoryStore) InsertAuditEntry(action, pair, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, AuditEntry{
		Action:    action,
		Pair:      pair,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// EquityCurve returns the recorded snapshots in insertion order.
func (s *MemoryStore) EquityCurve() []EquitySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EquitySnapshot, len(s.equity))
	copy(out, s.equity)
	return out
}

// AuditLog returns the recorded audit entries in insertion order.
func (s *MemoryStore) AuditLog() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// AllTrades returns every recorded trade in insertion order.
func (s *MemoryStore) AllTrades() []*position.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*position.Trade, len(s.trades))
	for i, t := range s.trades {
		ct := *t
		out[i] = &ct
	}
	return out
}
