// Package report derives the dashboard counters and the two summary reports
// from a point-in-time snapshot of the collections. All derivations are pure
// functions over the snapshot; nothing here writes.
package report

import (
	"context"
	"sort"
	"time"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/inventory"
	"pharmadesk/m/internal/store"
)

// Snapshot is one consistent read of the three collections.
type Snapshot struct {
	Medications   []domain.Medication
	Patients      []domain.Patient
	Prescriptions []domain.Prescription
	TakenAt       time.Time
}

// Service captures snapshots from the record store.
type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// NewServiceAt builds a Service with a fixed clock, for tests.
func NewServiceAt(s store.Store, now func() time.Time) *Service {
	return &Service{store: s, now: now}
}

// Snapshot reads all three collections inside one transaction so the derived
// reports never mix states from interleaved writes.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{TakenAt: s.now()}
	err := s.store.Transact(ctx, func(tx store.Store) error {
		var err error
		if snap.Medications, err = tx.ListMedications(ctx); err != nil {
			return err
		}
		if snap.Patients, err = tx.ListPatients(ctx); err != nil {
			return err
		}
		snap.Prescriptions, err = tx.ListPrescriptions(ctx)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// DashboardCounters are the four headline numbers on the main view.
type DashboardCounters struct {
	TotalMedications    int `json:"total_medications"`
	ActivePrescriptions int `json:"active_prescriptions"`
	LowStock            int `json:"low_stock"`
	TotalPatients       int `json:"total_patients"`
}

func Counters(snap Snapshot) DashboardCounters {
	c := DashboardCounters{
		TotalMedications: len(snap.Medications),
		TotalPatients:    len(snap.Patients),
	}
	for _, m := range snap.Medications {
		if inventory.LowStock(m) {
			c.LowStock++
		}
	}
	for _, p := range snap.Prescriptions {
		if p.Status == domain.StatusActive {
			c.ActivePrescriptions++
		}
	}
	return c
}

type StockLine struct {
	Name  string `json:"name"`
	Stock int64  `json:"stock"`
}

type ExpiryLine struct {
	Name       string    `json:"name"`
	Expiration time.Time `json:"expiration"`
}

// InventoryReport summarizes the medication collection.
type InventoryReport struct {
	TotalMedications int          `json:"total_medications"`
	TotalStockUnits  int64        `json:"total_stock_units"`
	LowStock         []StockLine  `json:"low_stock"`
	ExpiringSoon     []ExpiryLine `json:"expiring_soon"`
	Categories       []string     `json:"categories"`
}

func Inventory(snap Snapshot) InventoryReport {
	r := InventoryReport{
		TotalMedications: len(snap.Medications),
		LowStock:         []StockLine{},
		ExpiringSoon:     []ExpiryLine{},
		Categories:       []string{},
	}
	seen := map[string]bool{}
	for _, m := range snap.Medications {
		r.TotalStockUnits += m.Stock
		if inventory.LowStock(m) {
			r.LowStock = append(r.LowStock, StockLine{Name: m.Name, Stock: m.Stock})
		}
		if inventory.ExpiringSoon(m, snap.TakenAt) {
			r.ExpiringSoon = append(r.ExpiringSoon, ExpiryLine{Name: m.Name, Expiration: m.Expiration})
		}
		if !seen[m.Category] {
			seen[m.Category] = true
			r.Categories = append(r.Categories, m.Category)
		}
	}
	return r
}

type RankedMedication struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// PrescriptionReport summarizes the prescription collection.
type PrescriptionReport struct {
	Total          int                `json:"total"`
	Active         int                `json:"active"`
	Filled         int                `json:"filled"`
	TopMedications []RankedMedication `json:"top_medications"`
	FilledLastWeek int                `json:"filled_last_week"`
}

const topMedicationLimit = 5

// Prescriptions ranks medications by cumulative prescribed quantity across
// prescriptions of every status. Line items whose medication no longer
// resolves are skipped. Ties break by medication name ascending.
func Prescriptions(snap Snapshot) PrescriptionReport {
	r := PrescriptionReport{Total: len(snap.Prescriptions), TopMedications: []RankedMedication{}}

	medsByID := make(map[string]domain.Medication, len(snap.Medications))
	for _, m := range snap.Medications {
		medsByID[m.ID] = m
	}

	counts := map[string]int64{}
	for _, p := range snap.Prescriptions {
		switch p.Status {
		case domain.StatusActive:
			r.Active++
		case domain.StatusFilled:
			r.Filled++
			if snap.TakenAt.Sub(p.Date).Hours()/24 <= 7 {
				r.FilledLastWeek++
			}
		}
		for _, item := range p.Items {
			med, ok := medsByID[item.MedicationID]
			if !ok {
				continue
			}
			counts[med.Name] += item.Quantity
		}
	}

	ranked := make([]RankedMedication, 0, len(counts))
	for name, qty := range counts {
		ranked = append(ranked, RankedMedication{Name: name, Quantity: qty})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Quantity != ranked[j].Quantity {
			return ranked[i].Quantity > ranked[j].Quantity
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > topMedicationLimit {
		ranked = ranked[:topMedicationLimit]
	}
	r.TopMedications = ranked
	return r
}
