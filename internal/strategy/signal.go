package strategy

import (
	"strings"
	"time"

	"github.com/stonkers/stonkers-bot/internal/errors"
)

// SignalType is the kind of entry a strategy proposes. Strategies only
// generate entries; exits are owned by the risk policy and by optional
// per-strategy ShouldExit hooks.
type SignalType string

const (
	EntryLong  SignalType = "entry_long"
	EntryShort SignalType = "entry_short"
)

// Signal is a strategy's proposal to open a position. Treated as immutable
// once produced.
type Signal struct {
	ID           string
	Pair         string
	Type         SignalType
	Strength     float64 // 0.0 to 1.0
	StrategyName string
	Reasoning    string
	Timestamp    time.Time
	Indicators   map[string]float64

	// Optional per-signal overrides for the generic risk rules. Zero means
	// no override.
	StopLossPrice   float64
	TakeProfitPrice float64
}

// Validate checks signal well-formedness before it reaches the risk policy.
func (s *Signal) Validate() error {
	if s.Strength < 0 || s.Strength > 1 {
		return errors.New(errors.CategoryValidation, "signal", "validate", "strength must be in [0,1]")
	}
	if !strings.Contains(s.Pair, "/") {
		return errors.New(errors.CategoryValidation, "signal", "validate", "pair must be BASE/QUOTE")
	}
	if strings.TrimSpace(s.Reasoning) == "" {
		return errors.New(errors.CategoryValidation, "signal", "validate", "reasoning is required")
	}
	if s.Type != EntryLong && s.Type != EntryShort {
		return errors.New(errors.CategoryValidation, "signal", "validate", "invalid signal type")
	}
	return nil
}

// IsLong reports whether the signal proposes a LONG entry.
func (s *Signal) IsLong() bool {
	return s.Type == EntryLong
}

// ExitSignal is a strategy-specific request to close a position ahead of the
// generic risk rules.
type ExitSignal struct {
	Reason       string
	StrategyName string
}
