// Package inventory owns medication stock reads and the only sanctioned
// stock mutation path used during prescription fulfillment.
package inventory

import (
	"context"
	"time"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/store"
)

// LowStockThreshold is the fixed stock level below which a medication is
// flagged on the dashboard and the inventory report.
const LowStockThreshold = 10

// ExpiryWindowDays bounds the "expiring soon" alert.
const ExpiryWindowDays = 30

// Ledger mutates stock through the record store. Run it against the
// transaction-scoped store when the adjustment is part of a larger write.
type Ledger struct {
	store store.Store
}

func NewLedger(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// Stock returns the current stock level for a medication.
func (l *Ledger) Stock(ctx context.Context, medicationID string) (int64, error) {
	m, err := l.store.GetMedication(ctx, medicationID)
	if err != nil {
		return 0, err
	}
	return m.Stock, nil
}

// Adjust applies a signed delta to a medication's stock and persists the new
// level. A delta that would take stock negative is rejected with
// InsufficientStockError and nothing is written.
func (l *Ledger) Adjust(ctx context.Context, medicationID string, delta int64) (int64, error) {
	var newStock int64
	err := l.store.Transact(ctx, func(tx store.Store) error {
		m, err := tx.GetMedication(ctx, medicationID)
		if err != nil {
			return err
		}
		newStock = m.Stock + delta
		if newStock < 0 {
			return &domain.InsufficientStockError{Shortages: []domain.Shortage{{
				MedicationID: m.ID,
				Name:         m.Name,
				Available:    m.Stock,
				Needed:       -delta,
			}}}
		}
		_, err = tx.UpdateMedication(ctx, medicationID, domain.MedicationPatch{Stock: &newStock})
		return err
	})
	if err != nil {
		return 0, err
	}
	return newStock, nil
}

// LowStock reports whether a medication is below the reorder threshold.
// A stock of exactly 10 is not low.
func LowStock(m domain.Medication) bool {
	return m.Stock < LowStockThreshold
}

// ExpiringSoon reports whether a medication expires within the next 30 days.
// Medications that are already past their expiration date are not flagged.
func ExpiringSoon(m domain.Medication, now time.Time) bool {
	days := m.Expiration.Sub(now).Hours() / 24
	return days > 0 && days <= ExpiryWindowDays
}
