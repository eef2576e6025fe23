package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pharmadesk/m/domain"
)

// Memory keeps every collection in process memory. It serves the
// STORAGE=memory mode and the test suites. Records are kept in insertion
// order so listings are deterministic.
type Memory struct {
	mu            sync.Mutex
	medications   []domain.Medication
	patients      []domain.Patient
	prescriptions []domain.Prescription
	users         []domain.User
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// memView runs operations against a Memory whose lock is already held by an
// enclosing Transact.
type memView struct {
	m *Memory
}

func copyPrescription(p domain.Prescription) domain.Prescription {
	p.Items = append([]domain.Item(nil), p.Items...)
	return p
}

// Medications

func (s *Memory) ListMedications(ctx context.Context) ([]domain.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMedications()
}

func (s *Memory) listMedications() ([]domain.Medication, error) {
	return append([]domain.Medication{}, s.medications...), nil
}

func (s *Memory) GetMedication(ctx context.Context, id string) (domain.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMedication(id)
}

func (s *Memory) getMedication(id string) (domain.Medication, error) {
	for _, m := range s.medications {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Medication{}, domain.ErrNotFound
}

func (s *Memory) CreateMedication(ctx context.Context, m domain.Medication) (domain.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createMedication(m)
}

func (s *Memory) createMedication(m domain.Medication) (domain.Medication, error) {
	m.ID = uuid.NewString()
	s.medications = append(s.medications, m)
	return m, nil
}

func (s *Memory) UpdateMedication(ctx context.Context, id string, patch domain.MedicationPatch) (domain.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateMedication(id, patch)
}

func (s *Memory) updateMedication(id string, patch domain.MedicationPatch) (domain.Medication, error) {
	for i, m := range s.medications {
		if m.ID == id {
			s.medications[i] = applyMedicationPatch(m, patch)
			return s.medications[i], nil
		}
	}
	return domain.Medication{}, domain.ErrNotFound
}

func (s *Memory) DeleteMedication(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteMedication(id)
}

func (s *Memory) deleteMedication(id string) error {
	for i, m := range s.medications {
		if m.ID == id {
			s.medications = append(s.medications[:i], s.medications[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// Patients

func (s *Memory) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Patient{}, s.patients...), nil
}

func (s *Memory) GetPatient(ctx context.Context, id string) (domain.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPatient(id)
}

func (s *Memory) getPatient(id string) (domain.Patient, error) {
	for _, p := range s.patients {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Patient{}, domain.ErrNotFound
}

func (s *Memory) CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.NewString()
	s.patients = append(s.patients, p)
	return p, nil
}

func (s *Memory) UpdatePatient(ctx context.Context, id string, patch domain.PatientPatch) (domain.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.patients {
		if p.ID == id {
			s.patients[i] = applyPatientPatch(p, patch)
			return s.patients[i], nil
		}
	}
	return domain.Patient{}, domain.ErrNotFound
}

func (s *Memory) DeletePatient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.patients {
		if p.ID == id {
			s.patients = append(s.patients[:i], s.patients[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// Prescriptions

func (s *Memory) ListPrescriptions(ctx context.Context) ([]domain.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listPrescriptions("")
}

func (s *Memory) ListPrescriptionsForPatient(ctx context.Context, patientID string) ([]domain.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listPrescriptions(patientID)
}

func (s *Memory) listPrescriptions(patientID string) ([]domain.Prescription, error) {
	out := []domain.Prescription{}
	for _, p := range s.prescriptions {
		if patientID == "" || p.PatientID == patientID {
			out = append(out, copyPrescription(p))
		}
	}
	return out, nil
}

func (s *Memory) GetPrescription(ctx context.Context, id string) (domain.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPrescription(id)
}

func (s *Memory) getPrescription(id string) (domain.Prescription, error) {
	for _, p := range s.prescriptions {
		if p.ID == id {
			return copyPrescription(p), nil
		}
	}
	return domain.Prescription{}, domain.ErrNotFound
}

func (s *Memory) CreatePrescription(ctx context.Context, p domain.Prescription) (domain.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPrescription(p)
}

func (s *Memory) createPrescription(p domain.Prescription) (domain.Prescription, error) {
	p.ID = uuid.NewString()
	s.prescriptions = append(s.prescriptions, copyPrescription(p))
	return p, nil
}

func (s *Memory) UpdatePrescription(ctx context.Context, id string, patch domain.PrescriptionPatch) (domain.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePrescription(id, patch)
}

func (s *Memory) updatePrescription(id string, patch domain.PrescriptionPatch) (domain.Prescription, error) {
	for i, p := range s.prescriptions {
		if p.ID == id {
			s.prescriptions[i] = applyPrescriptionPatch(copyPrescription(p), patch)
			return copyPrescription(s.prescriptions[i]), nil
		}
	}
	return domain.Prescription{}, domain.ErrNotFound
}

func (s *Memory) DeletePrescription(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletePrescription(id)
}

func (s *Memory) deletePrescription(id string) error {
	for i, p := range s.prescriptions {
		if p.ID == id {
			s.prescriptions = append(s.prescriptions[:i], s.prescriptions[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// Users

func (s *Memory) ListUsers(ctx context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.User{}, s.users...), nil
}

func (s *Memory) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getUserByEmail(email)
}

func (s *Memory) getUserByEmail(email string) (domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *Memory) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = uuid.NewString()
	s.users = append(s.users, u)
	return u, nil
}

func (s *Memory) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.users {
		if u.ID == id {
			s.users[i].Password = passwordHash
			return nil
		}
	}
	return domain.ErrNotFound
}

// Transact holds the store lock for the duration of fn and restores a
// snapshot of every collection if fn fails, so partial writes never become
// visible.
func (s *Memory) Transact(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meds := append([]domain.Medication(nil), s.medications...)
	patients := append([]domain.Patient(nil), s.patients...)
	prescriptions := make([]domain.Prescription, len(s.prescriptions))
	for i, p := range s.prescriptions {
		prescriptions[i] = copyPrescription(p)
	}
	users := append([]domain.User(nil), s.users...)

	if err := fn(&memView{m: s}); err != nil {
		s.medications = meds
		s.patients = patients
		s.prescriptions = prescriptions
		s.users = users
		return err
	}
	return nil
}

// memView delegates to the unlocked operations; the enclosing Transact holds
// the lock.

func (v *memView) ListMedications(ctx context.Context) ([]domain.Medication, error) {
	return v.m.listMedications()
}

func (v *memView) GetMedication(ctx context.Context, id string) (domain.Medication, error) {
	return v.m.getMedication(id)
}

func (v *memView) CreateMedication(ctx context.Context, m domain.Medication) (domain.Medication, error) {
	return v.m.createMedication(m)
}

func (v *memView) UpdateMedication(ctx context.Context, id string, patch domain.MedicationPatch) (domain.Medication, error) {
	return v.m.updateMedication(id, patch)
}

func (v *memView) DeleteMedication(ctx context.Context, id string) error {
	return v.m.deleteMedication(id)
}

func (v *memView) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	return append([]domain.Patient{}, v.m.patients...), nil
}

func (v *memView) GetPatient(ctx context.Context, id string) (domain.Patient, error) {
	return v.m.getPatient(id)
}

func (v *memView) CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	p.ID = uuid.NewString()
	v.m.patients = append(v.m.patients, p)
	return p, nil
}

func (v *memView) UpdatePatient(ctx context.Context, id string, patch domain.PatientPatch) (domain.Patient, error) {
	for i, p := range v.m.patients {
		if p.ID == id {
			v.m.patients[i] = applyPatientPatch(p, patch)
			return v.m.patients[i], nil
		}
	}
	return domain.Patient{}, domain.ErrNotFound
}

func (v *memView) DeletePatient(ctx context.Context, id string) error {
	for i, p := range v.m.patients {
		if p.ID == id {
			v.m.patients = append(v.m.patients[:i], v.m.patients[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (v *memView) ListPrescriptions(ctx context.Context) ([]domain.Prescription, error) {
	return v.m.listPrescriptions("")
}

func (v *memView) ListPrescriptionsForPatient(ctx context.Context, patientID string) ([]domain.Prescription, error) {
	return v.m.listPrescriptions(patientID)
}

func (v *memView) GetPrescription(ctx context.Context, id string) (domain.Prescription, error) {
	return v.m.getPrescription(id)
}

func (v *memView) CreatePrescription(ctx context.Context, p domain.Prescription) (domain.Prescription, error) {
	return v.m.createPrescription(p)
}

func (v *memView) UpdatePrescription(ctx context.Context, id string, patch domain.PrescriptionPatch) (domain.Prescription, error) {
	return v.m.updatePrescription(id, patch)
}

func (v *memView) DeletePrescription(ctx context.Context, id string) error {
	return v.m.deletePrescription(id)
}

func (v *memView) ListUsers(ctx context.Context) ([]domain.User, error) {
	return append([]domain.User{}, v.m.users...), nil
}

func (v *memView) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return v.m.getUserByEmail(email)
}

func (v *memView) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	u.ID = uuid.NewString()
	v.m.users = append(v.m.users, u)
	return u, nil
}

func (v *memView) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	for i, u := range v.m.users {
		if u.ID == id {
			v.m.users[i].Password = passwordHash
			return nil
		}
	}
	return domain.ErrNotFound
}

func (v *memView) Transact(ctx context.Context, fn func(Store) error) error {
	return fn(v)
}
