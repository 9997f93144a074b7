package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory classifies engine failures so callers can decide between
// propagating, retrying, and skipping the current tick.
type ErrorCategory string

const (
	// Invariant violations are always fatal to the call that hit them and
	// are never swallowed (duplicate open, double close, bad transition).
	CategoryInvariant ErrorCategory = "INVARIANT"

	// Funds errors reject an entry; callers treat them exactly like a risk
	// rejection (no position is created).
	CategoryFunds ErrorCategory = "FUNDS"

	// Broker errors cover any failed broker communication. Read paths may
	// retry with backoff; execution paths must not.
	CategoryBroker ErrorCategory = "BROKER"

	// Reconcile errors mark adopt/stale-close conflicts that could not be
	// resolved for a single instrument.
	CategoryReconcile ErrorCategory = "RECONCILE"

	// Emergency marks the one-way kill-switch trip.
	CategoryEmergency ErrorCategory = "EMERGENCY"

	CategoryStorage    ErrorCategory = "STORAGE"
	CategoryValidation ErrorCategory = "VALIDATION"
	CategoryConfig     ErrorCategory = "CONFIG"
)

// EngineError is a categorized error with the component and operation that
// produced it.
type EngineError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsRetryable reports whether the failed call may be repeated. Execution
// paths are never retryable: a retried market order risks a double fill.
func (e *EngineError) IsRetryable() bool {
	return e.Category == CategoryBroker || e.Category == CategoryStorage
}

// IsFatal reports whether the error should stop trading entirely.
func (e *EngineError) IsFatal() bool {
	return e.Category == CategoryEmergency || e.Category == CategoryConfig
}

// New creates a categorized engine error.
func New(category ErrorCategory, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Wrap attaches category and component context to an existing error.
func Wrap(err error, category ErrorCategory, component, operation string) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
	}
}

// NewInvariant reports a broken engine invariant.
func NewInvariant(component, operation, message string) *EngineError {
	return New(CategoryInvariant, component, operation, message)
}

// NewInsufficientFunds reports an entry whose notional exceeds available cash.
func NewInsufficientFunds(component string, have, need float64) *EngineError {
	return New(CategoryFunds, component, "entry",
		fmt.Sprintf("insufficient cash: have $%.2f, need $%.2f", have, need))
}

// NewBroker wraps a failed broker call.
func NewBroker(component, operation string, err error) *EngineError {
	return Wrap(err, CategoryBroker, component, operation)
}

// NewReconcile reports a per-instrument reconciliation conflict.
func NewReconcile(operation, pair string, err error) *EngineError {
	return &EngineError{
		Category:   CategoryReconcile,
		Component:  "reconciler",
		Operation:  operation,
		Message:    fmt.Sprintf("conflict on %s", pair),
		Underlying: err,
	}
}

// IsCategory reports whether err (or anything it wraps) carries the given
// category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}

// IsInvariant is a shorthand for the most commonly checked category.
func IsInvariant(err error) bool {
	return IsCategory(err, CategoryInvariant)
}

// IsInsufficientFunds reports whether err is a funds rejection.
func IsInsufficientFunds(err error) bool {
	return IsCategory(err, CategoryFunds)
}
