package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"pharmadesk/m/domain"
)

var testExpiry = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMedicationCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	created, err := s.CreateMedication(ctx, domain.Medication{
		Name:        "Amoxicillin 500mg",
		Description: "Antibiotic for bacterial infections",
		Category:    "Antibiotics",
		Stock:       150,
		Expiration:  testExpiry,
	})
	if err != nil {
		t.Fatalf("CreateMedication() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected store-assigned id")
	}

	got, err := s.GetMedication(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMedication() error = %v", err)
	}
	if got != created {
		t.Fatalf("GetMedication() = %+v, want %+v", got, created)
	}

	stock := int64(140)
	updated, err := s.UpdateMedication(ctx, created.ID, domain.MedicationPatch{Stock: &stock})
	if err != nil {
		t.Fatalf("UpdateMedication() error = %v", err)
	}
	if updated.Stock != 140 || updated.Name != created.Name {
		t.Fatalf("patch result = %+v", updated)
	}

	if err := s.DeleteMedication(ctx, created.ID); err != nil {
		t.Fatalf("DeleteMedication() error = %v", err)
	}
	if _, err := s.GetMedication(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetMedication() after delete: error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteMedication(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("DeleteMedication() twice: error = %v, want ErrNotFound", err)
	}
}

func TestPrescriptionItemsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	items := []domain.Item{{MedicationID: "m1", Quantity: 2}}
	created, err := s.CreatePrescription(ctx, domain.Prescription{
		PatientID: "p1",
		Items:     items,
		Date:      time.Now(),
		Status:    domain.StatusActive,
	})
	if err != nil {
		t.Fatalf("CreatePrescription() error = %v", err)
	}

	// Mutating the caller's slice must not reach the stored record.
	items[0].Quantity = 99
	got, err := s.GetPrescription(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetPrescription() error = %v", err)
	}
	if got.Items[0].Quantity != 2 {
		t.Fatalf("stored quantity = %d, want 2", got.Items[0].Quantity)
	}
}

func TestListPrescriptionsForPatient(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	for _, patientID := range []string{"p1", "p2", "p1"} {
		_, err := s.CreatePrescription(ctx, domain.Prescription{
			PatientID: patientID,
			Items:     []domain.Item{{MedicationID: "m1", Quantity: 1}},
			Date:      time.Now(),
			Status:    domain.StatusActive,
		})
		if err != nil {
			t.Fatalf("CreatePrescription() error = %v", err)
		}
	}

	mine, err := s.ListPrescriptionsForPatient(ctx, "p1")
	if err != nil {
		t.Fatalf("ListPrescriptionsForPatient() error = %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("len = %d, want 2", len(mine))
	}
	for _, p := range mine {
		if p.PatientID != "p1" {
			t.Fatalf("got prescription for %s", p.PatientID)
		}
	}
}

func TestTransactRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	med, err := s.CreateMedication(ctx, domain.Medication{Name: "Metformin 500mg", Stock: 200, Expiration: testExpiry})
	if err != nil {
		t.Fatalf("CreateMedication() error = %v", err)
	}

	boom := errors.New("boom")
	err = s.Transact(ctx, func(tx Store) error {
		stock := int64(50)
		if _, err := tx.UpdateMedication(ctx, med.ID, domain.MedicationPatch{Stock: &stock}); err != nil {
			return err
		}
		if _, err := tx.CreatePatient(ctx, domain.Patient{Name: "Ghost", DOB: "2000-01-01"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transact() error = %v, want boom", err)
	}

	got, err := s.GetMedication(ctx, med.ID)
	if err != nil {
		t.Fatalf("GetMedication() error = %v", err)
	}
	if got.Stock != 200 {
		t.Fatalf("stock = %d, want rollback to 200", got.Stock)
	}
	patients, err := s.ListPatients(ctx)
	if err != nil {
		t.Fatalf("ListPatients() error = %v", err)
	}
	if len(patients) != 0 {
		t.Fatalf("patients = %+v, want rollback to none", patients)
	}
}

func TestTransactCommits(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	med, err := s.CreateMedication(ctx, domain.Medication{Name: "Lisinopril 10mg", Stock: 75, Expiration: testExpiry})
	if err != nil {
		t.Fatalf("CreateMedication() error = %v", err)
	}

	err = s.Transact(ctx, func(tx Store) error {
		stock := int64(70)
		_, err := tx.UpdateMedication(ctx, med.ID, domain.MedicationPatch{Stock: &stock})
		return err
	})
	if err != nil {
		t.Fatalf("Transact() error = %v", err)
	}
	got, err := s.GetMedication(ctx, med.ID)
	if err != nil {
		t.Fatalf("GetMedication() error = %v", err)
	}
	if got.Stock != 70 {
		t.Fatalf("stock = %d, want 70", got.Stock)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	patientID := "p1"
	created, err := s.CreateUser(ctx, domain.User{
		Email:     "sarah.j@email.com",
		Name:      "Sarah Johnson",
		Password:  "hash",
		Role:      domain.RolePatient,
		PatientID: &patientID,
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "sarah.j@email.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != created.ID || got.PatientID == nil || *got.PatientID != patientID {
		t.Fatalf("GetUserByEmail() = %+v", got)
	}

	if err := s.UpdateUserPassword(ctx, created.ID, "newhash"); err != nil {
		t.Fatalf("UpdateUserPassword() error = %v", err)
	}
	got, _ = s.GetUserByEmail(ctx, "sarah.j@email.com")
	if got.Password != "newhash" {
		t.Fatalf("password = %q, want updated hash", got.Password)
	}

	if _, err := s.GetUserByEmail(ctx, "nobody@email.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
}
