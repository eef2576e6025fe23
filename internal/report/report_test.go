package report

import (
	"context"
	"reflect"
	"testing"
	"time"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/store"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func med(t *testing.T, s store.Store, name, category string, stock int64, expiration time.Time) domain.Medication {
	t.Helper()
	m, err := s.CreateMedication(context.Background(), domain.Medication{
		Name:       name,
		Category:   category,
		Stock:      stock,
		Expiration: expiration,
	})
	if err != nil {
		t.Fatalf("create medication: %v", err)
	}
	return m
}

func rx(t *testing.T, s store.Store, patientID, status string, date time.Time, items ...domain.Item) domain.Prescription {
	t.Helper()
	p, err := s.CreatePrescription(context.Background(), domain.Prescription{
		PatientID: patientID,
		Items:     items,
		Date:      date,
		Status:    status,
	})
	if err != nil {
		t.Fatalf("create prescription: %v", err)
	}
	return p
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	far := testNow.AddDate(1, 0, 0)

	lisinopril := med(t, s, "Lisinopril 10mg", "Cardiovascular", 75, far)
	med(t, s, "Ibuprofen 200mg", "Pain Relief", 8, far)
	med(t, s, "Omeprazole 20mg", "Gastrointestinal", 10, far)

	patient, err := s.CreatePatient(ctx, domain.Patient{Name: "Sarah Johnson", DOB: "1985-03-15"})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	rx(t, s, patient.ID, domain.StatusActive, testNow, domain.Item{MedicationID: lisinopril.ID, Quantity: 1})
	rx(t, s, patient.ID, domain.StatusFilled, testNow, domain.Item{MedicationID: lisinopril.ID, Quantity: 1})
	rx(t, s, patient.ID, domain.StatusCancelled, testNow, domain.Item{MedicationID: lisinopril.ID, Quantity: 1})

	svc := NewServiceAt(s, func() time.Time { return testNow })
	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	got := Counters(snap)
	want := DashboardCounters{
		TotalMedications:    3,
		ActivePrescriptions: 1,
		LowStock:            1, // stock 8; a stock of exactly 10 is not low
		TotalPatients:       1,
	}
	if got != want {
		t.Fatalf("Counters() = %+v, want %+v", got, want)
	}

	// No intervening writes: a second snapshot derives identical counters.
	snap2, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if again := Counters(snap2); again != got {
		t.Fatalf("Counters() not idempotent: %+v then %+v", got, again)
	}
}

func TestInventory(t *testing.T) {
	s := store.NewMemory()
	far := testNow.AddDate(1, 0, 0)

	med(t, s, "Amoxicillin 500mg", "Antibiotics", 150, testNow.Add(14*24*time.Hour))
	med(t, s, "Ibuprofen 200mg", "Pain Relief", 8, testNow.Add(30*24*time.Hour))
	med(t, s, "Lisinopril 10mg", "Cardiovascular", 75, testNow.Add(31*24*time.Hour))
	med(t, s, "Atorvastatin 20mg", "Cardiovascular", 60, testNow.AddDate(0, 0, -2))
	med(t, s, "Metformin 500mg", "Endocrine", 200, far)

	svc := NewServiceAt(s, func() time.Time { return testNow })
	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	got := Inventory(snap)
	if got.TotalMedications != 5 {
		t.Errorf("TotalMedications = %d, want 5", got.TotalMedications)
	}
	if got.TotalStockUnits != 493 {
		t.Errorf("TotalStockUnits = %d, want 493", got.TotalStockUnits)
	}
	if len(got.LowStock) != 1 || got.LowStock[0] != (StockLine{Name: "Ibuprofen 200mg", Stock: 8}) {
		t.Errorf("LowStock = %+v, want only Ibuprofen", got.LowStock)
	}
	// 14 days and exactly 30 days are in the window; 31 days and the expired
	// medication are not.
	wantExpiring := []string{"Amoxicillin 500mg", "Ibuprofen 200mg"}
	names := make([]string, len(got.ExpiringSoon))
	for i, line := range got.ExpiringSoon {
		names[i] = line.Name
	}
	if !reflect.DeepEqual(names, wantExpiring) {
		t.Errorf("ExpiringSoon = %v, want %v", names, wantExpiring)
	}
	wantCategories := []string{"Antibiotics", "Pain Relief", "Cardiovascular", "Endocrine"}
	if !reflect.DeepEqual(got.Categories, wantCategories) {
		t.Errorf("Categories = %v, want %v", got.Categories, wantCategories)
	}
}

func TestPrescriptionsRanking(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	far := testNow.AddDate(1, 0, 0)

	metformin := med(t, s, "Metformin 500mg", "Endocrine", 200, far)
	amox := med(t, s, "Amoxicillin 500mg", "Antibiotics", 150, far)

	patient, err := s.CreatePatient(ctx, domain.Patient{Name: "Michael Chen", DOB: "1992-07-22"})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}

	// Quantities accumulate across every status, not just filled.
	rx(t, s, patient.ID, domain.StatusActive, testNow, domain.Item{MedicationID: metformin.ID, Quantity: 10})
	rx(t, s, patient.ID, domain.StatusFilled, testNow, domain.Item{MedicationID: metformin.ID, Quantity: 20})
	rx(t, s, patient.ID, domain.StatusCancelled, testNow, domain.Item{MedicationID: metformin.ID, Quantity: 5})
	rx(t, s, patient.ID, domain.StatusActive, testNow,
		domain.Item{MedicationID: amox.ID, Quantity: 35},
		domain.Item{MedicationID: "dangling", Quantity: 99})

	svc := NewServiceAt(s, func() time.Time { return testNow })
	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	got := Prescriptions(snap)
	if got.Total != 4 || got.Active != 2 || got.Filled != 1 {
		t.Errorf("totals = %d/%d/%d, want 4/2/1", got.Total, got.Active, got.Filled)
	}
	// Both sit at 35; the tie breaks by name ascending. The dangling
	// medication reference contributes nothing.
	want := []RankedMedication{
		{Name: "Amoxicillin 500mg", Quantity: 35},
		{Name: "Metformin 500mg", Quantity: 35},
	}
	if !reflect.DeepEqual(got.TopMedications, want) {
		t.Errorf("TopMedications = %+v, want %+v", got.TopMedications, want)
	}
}

func TestPrescriptionsTopFiveTruncation(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	far := testNow.AddDate(1, 0, 0)

	names := []string{"A", "B", "C", "D", "E", "F", "G"}
	patient, err := s.CreatePatient(ctx, domain.Patient{Name: "Emily Davis", DOB: "1978-11-08"})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	for i, name := range names {
		m := med(t, s, name, "Test", 100, far)
		rx(t, s, patient.ID, domain.StatusActive, testNow, domain.Item{MedicationID: m.ID, Quantity: int64(10 * (i + 1))})
	}

	svc := NewServiceAt(s, func() time.Time { return testNow })
	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	got := Prescriptions(snap)
	if len(got.TopMedications) != 5 {
		t.Fatalf("len(TopMedications) = %d, want 5", len(got.TopMedications))
	}
	if got.TopMedications[0] != (RankedMedication{Name: "G", Quantity: 70}) {
		t.Errorf("top entry = %+v, want G/70", got.TopMedications[0])
	}
	if got.TopMedications[4] != (RankedMedication{Name: "C", Quantity: 30}) {
		t.Errorf("fifth entry = %+v, want C/30", got.TopMedications[4])
	}
}

func TestPrescriptionsFilledLastWeek(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	far := testNow.AddDate(1, 0, 0)
	m := med(t, s, "Omeprazole 20mg", "Gastrointestinal", 45, far)

	patient, err := s.CreatePatient(ctx, domain.Patient{Name: "Sarah Johnson", DOB: "1985-03-15"})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	item := domain.Item{MedicationID: m.ID, Quantity: 1}

	rx(t, s, patient.ID, domain.StatusFilled, testNow.AddDate(0, 0, -2), item)
	rx(t, s, patient.ID, domain.StatusFilled, testNow.Add(-7*24*time.Hour), item) // exactly a week: counted
	rx(t, s, patient.ID, domain.StatusFilled, testNow.AddDate(0, 0, -8), item)    // too old
	rx(t, s, patient.ID, domain.StatusActive, testNow, item)                      // active: not counted

	svc := NewServiceAt(s, func() time.Time { return testNow })
	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	got := Prescriptions(snap)
	if got.FilledLastWeek != 2 {
		t.Fatalf("FilledLastWeek = %d, want 2", got.FilledLastWeek)
	}
}
