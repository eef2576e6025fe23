package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the store, ledger and prescription engine.
var (
	ErrNotFound         = errors.New("record not found")
	ErrInvalidState     = errors.New("prescription is not active")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError reports malformed input, such as an empty item list.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Shortage describes one prescription line whose requested quantity exceeds
// the stock available at fill time.
type Shortage struct {
	MedicationID string `json:"medication_id"`
	Name         string `json:"name"`
	Available    int64  `json:"available"`
	Needed       int64  `json:"needed"`
}

// InsufficientStockError carries every deficient line item, not just the
// first one found.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	lines := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		lines[i] = fmt.Sprintf("%s (available: %d, needed: %d)", s.Name, s.Available, s.Needed)
	}
	return "insufficient stock: " + strings.Join(lines, ", ")
}
