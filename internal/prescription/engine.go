// Package prescription implements the prescription lifecycle: creation,
// edits, deletion and the fill operation that reconciles medication stock.
package prescription

import (
	"context"
	"fmt"
	"time"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/inventory"
	"pharmadesk/m/internal/store"
)

// Engine drives prescription state. Fill is the only operation constrained
// by the state machine; Edit performs an unconstrained field merge.
type Engine struct {
	store store.Store
	now   func() time.Time
}

func New(s store.Store) *Engine {
	return &Engine{store: s, now: time.Now}
}

// NewAt builds an Engine with a fixed clock, for tests.
func NewAt(s store.Store, now func() time.Time) *Engine {
	return &Engine{store: s, now: now}
}

// CreateInput is the prescriber's request for a new prescription.
type CreateInput struct {
	PatientID    string        `json:"patient_id"`
	Items        []domain.Item `json:"items"`
	Instructions string        `json:"instructions"`
}

func validateItems(items []domain.Item) error {
	if len(items) == 0 {
		return &domain.ValidationError{Msg: "at least one item is required"}
	}
	for _, it := range items {
		if it.MedicationID == "" {
			return &domain.ValidationError{Msg: "medication_id is required for each item"}
		}
		if it.Quantity < 1 {
			return &domain.ValidationError{Msg: "item quantity must be at least 1"}
		}
	}
	return nil
}

// Create stores a new active prescription dated now.
func (e *Engine) Create(ctx context.Context, in CreateInput) (domain.Prescription, error) {
	if in.PatientID == "" {
		return domain.Prescription{}, &domain.ValidationError{Msg: "patient_id is required"}
	}
	if err := validateItems(in.Items); err != nil {
		return domain.Prescription{}, err
	}
	return e.store.CreatePrescription(ctx, domain.Prescription{
		PatientID:    in.PatientID,
		Items:        in.Items,
		Instructions: in.Instructions,
		Date:         e.now(),
		Status:       domain.StatusActive,
	})
}

// Edit merges the patch into an existing prescription. The patch wins field
// by field; omitted fields are retained. Status may be set directly here,
// bypassing the fill state machine (cancellation has no other path). Item
// replacements are validated the same way Create validates them.
func (e *Engine) Edit(ctx context.Context, id string, patch domain.PrescriptionPatch) (domain.Prescription, error) {
	if patch.Items != nil {
		if err := validateItems(patch.Items); err != nil {
			return domain.Prescription{}, err
		}
	}
	if patch.Status != nil && !domain.ValidStatus(*patch.Status) {
		return domain.Prescription{}, &domain.ValidationError{Msg: fmt.Sprintf("unknown status %q", *patch.Status)}
	}
	return e.store.UpdatePrescription(ctx, id, patch)
}

// Fill dispenses a prescription: it validates stock for every line item,
// decrements each medication and marks the prescription filled, all inside
// one store transaction. Either every write lands or none do.
func (e *Engine) Fill(ctx context.Context, id string) (domain.Prescription, error) {
	var out domain.Prescription
	err := e.store.Transact(ctx, func(tx store.Store) error {
		p, err := tx.GetPrescription(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != domain.StatusActive {
			return domain.ErrInvalidState
		}

		// Read-only validation pass first: collect every shortage, not just
		// the first, so the caller gets a complete report.
		var shortages []domain.Shortage
		for _, item := range p.Items {
			med, err := tx.GetMedication(ctx, item.MedicationID)
			if err != nil {
				return fmt.Errorf("resolve medication %s: %w", item.MedicationID, err)
			}
			if med.Stock < item.Quantity {
				shortages = append(shortages, domain.Shortage{
					MedicationID: med.ID,
					Name:         med.Name,
					Available:    med.Stock,
					Needed:       item.Quantity,
				})
			}
		}
		if len(shortages) > 0 {
			return &domain.InsufficientStockError{Shortages: shortages}
		}

		ledger := inventory.NewLedger(tx)
		for _, item := range p.Items {
			if _, err := ledger.Adjust(ctx, item.MedicationID, -item.Quantity); err != nil {
				return err
			}
		}

		status := domain.StatusFilled
		out, err = tx.UpdatePrescription(ctx, id, domain.PrescriptionPatch{Status: &status})
		return err
	})
	if err != nil {
		return domain.Prescription{}, err
	}
	return out, nil
}

// Delete removes a prescription. Medications and patients are untouched.
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.store.DeletePrescription(ctx, id)
}
