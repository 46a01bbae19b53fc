package dice

import (
	"errors"
	"fmt"
)

// ErrEmptyPool is returned when a pick is requested from a pool with no entries.
var ErrEmptyPool = errors.New("dice: empty pool")

// ErrEmptyCatalog is returned when a roll is requested against a catalog with no items.
var ErrEmptyCatalog = errors.New("dice: empty catalog")

// ErrRandomSourceDegraded marks rolls drawn after the cryptographic source
// failed and the weaker fallback took over. It is advisory and never aborts a roll.
var ErrRandomSourceDegraded = errors.New("dice: random source degraded")

// ValidationError describes why a candidate outcome item was rejected.
type ValidationError struct {
	// Field is the offending field: "label", "category", "emoji" or "weight".
	Field string
	// Reason is a human-readable explanation suitable for a settings form.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dice: invalid %s: %s", e.Field, e.Reason)
}

// CategoryError reports which category could not be resolved during a roll.
type CategoryError struct {
	Category Category
	Err      error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("dice: category %s: %v", e.Category, e.Err)
}

func (e *CategoryError) Unwrap() error { return e.Err }
