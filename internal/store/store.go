// Package store implements the record store backing the pharmacy collections:
// medications, patients, prescriptions and users. Two interchangeable
// backends exist, one on SQLite and one in memory.
package store

import (
	"context"

	"pharmadesk/m/domain"
)

// Store is the record-store contract the ledger, prescription engine and
// reporting service depend on. Create assigns the record id. Update applies
// a partial patch and returns the merged record. All methods surface
// domain.ErrNotFound for ids that do not resolve and wrap backend failures
// in domain.ErrStoreUnavailable.
type Store interface {
	ListMedications(ctx context.Context) ([]domain.Medication, error)
	GetMedication(ctx context.Context, id string) (domain.Medication, error)
	CreateMedication(ctx context.Context, m domain.Medication) (domain.Medication, error)
	UpdateMedication(ctx context.Context, id string, patch domain.MedicationPatch) (domain.Medication, error)
	DeleteMedication(ctx context.Context, id string) error

	ListPatients(ctx context.Context) ([]domain.Patient, error)
	GetPatient(ctx context.Context, id string) (domain.Patient, error)
	CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error)
	UpdatePatient(ctx context.Context, id string, patch domain.PatientPatch) (domain.Patient, error)
	DeletePatient(ctx context.Context, id string) error

	ListPrescriptions(ctx context.Context) ([]domain.Prescription, error)
	ListPrescriptionsForPatient(ctx context.Context, patientID string) ([]domain.Prescription, error)
	GetPrescription(ctx context.Context, id string) (domain.Prescription, error)
	CreatePrescription(ctx context.Context, p domain.Prescription) (domain.Prescription, error)
	UpdatePrescription(ctx context.Context, id string, patch domain.PrescriptionPatch) (domain.Prescription, error)
	DeletePrescription(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error

	// Transact runs fn against a view of the store whose writes take effect
	// atomically: either fn returns nil and every write is applied, or the
	// store is left untouched. The view passed to fn must not be retained.
	Transact(ctx context.Context, fn func(Store) error) error
}

func applyMedicationPatch(m domain.Medication, p domain.MedicationPatch) domain.Medication {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Category != nil {
		m.Category = *p.Category
	}
	if p.Stock != nil {
		m.Stock = *p.Stock
	}
	if p.Expiration != nil {
		m.Expiration = *p.Expiration
	}
	return m
}

func applyPatientPatch(pt domain.Patient, p domain.PatientPatch) domain.Patient {
	if p.Name != nil {
		pt.Name = *p.Name
	}
	if p.DOB != nil {
		pt.DOB = *p.DOB
	}
	if p.Address != nil {
		pt.Address = *p.Address
	}
	if p.Phone != nil {
		pt.Phone = *p.Phone
	}
	if p.Email != nil {
		pt.Email = *p.Email
	}
	return pt
}

func applyPrescriptionPatch(pr domain.Prescription, p domain.PrescriptionPatch) domain.Prescription {
	if p.PatientID != nil {
		pr.PatientID = *p.PatientID
	}
	if p.Items != nil {
		pr.Items = append([]domain.Item(nil), p.Items...)
	}
	if p.Instructions != nil {
		pr.Instructions = *p.Instructions
	}
	if p.Status != nil {
		pr.Status = *p.Status
	}
	return pr
}
