package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pharmadesk/m/domain"
)

// SQLite persists the collections in a SQLite database. Prescription line
// items live in a child table and are read and written with their
// prescription. The pool is limited to a single connection, so a Transact
// serializes against every other caller.
type SQLite struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

// NewSQLite wraps an open sqlx handle.
func NewSQLite(db *sqlx.DB) *SQLite {
	return &SQLite{db: db, ext: db}
}

func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

// Medications

func (s *SQLite) ListMedications(ctx context.Context) ([]domain.Medication, error) {
	meds := []domain.Medication{}
	err := sqlx.SelectContext(ctx, s.ext, &meds,
		`SELECT id, name, description, category, stock, expiration FROM medications ORDER BY rowid`)
	if err != nil {
		return nil, storeErr("list medications", err)
	}
	return meds, nil
}

func (s *SQLite) GetMedication(ctx context.Context, id string) (domain.Medication, error) {
	var m domain.Medication
	err := sqlx.GetContext(ctx, s.ext, &m,
		`SELECT id, name, description, category, stock, expiration FROM medications WHERE id = ?`, id)
	if err != nil {
		return domain.Medication{}, storeErr("get medication", err)
	}
	return m, nil
}

func (s *SQLite) CreateMedication(ctx context.Context, m domain.Medication) (domain.Medication, error) {
	m.ID = uuid.NewString()
	_, err := s.ext.ExecContext(ctx,
		`INSERT INTO medications (id, name, description, category, stock, expiration) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Description, m.Category, m.Stock, m.Expiration)
	if err != nil {
		return domain.Medication{}, storeErr("create medication", err)
	}
	return m, nil
}

func (s *SQLite) UpdateMedication(ctx context.Context, id string, patch domain.MedicationPatch) (domain.Medication, error) {
	var out domain.Medication
	err := s.Transact(ctx, func(tx Store) error {
		m, err := tx.GetMedication(ctx, id)
		if err != nil {
			return err
		}
		m = applyMedicationPatch(m, patch)
		st := tx.(*SQLite)
		_, err = st.ext.ExecContext(ctx,
			`UPDATE medications SET name = ?, description = ?, category = ?, stock = ?, expiration = ? WHERE id = ?`,
			m.Name, m.Description, m.Category, m.Stock, m.Expiration, m.ID)
		if err != nil {
			return storeErr("update medication", err)
		}
		out = m
		return nil
	})
	return out, err
}

func (s *SQLite) DeleteMedication(ctx context.Context, id string) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM medications WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete medication", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Patients

func (s *SQLite) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	patients := []domain.Patient{}
	err := sqlx.SelectContext(ctx, s.ext, &patients,
		`SELECT id, name, dob, address, phone, email FROM patients ORDER BY rowid`)
	if err != nil {
		return nil, storeErr("list patients", err)
	}
	return patients, nil
}

func (s *SQLite) GetPatient(ctx context.Context, id string) (domain.Patient, error) {
	var p domain.Patient
	err := sqlx.GetContext(ctx, s.ext, &p,
		`SELECT id, name, dob, address, phone, email FROM patients WHERE id = ?`, id)
	if err != nil {
		return domain.Patient{}, storeErr("get patient", err)
	}
	return p, nil
}

func (s *SQLite) CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	p.ID = uuid.NewString()
	_, err := s.ext.ExecContext(ctx,
		`INSERT INTO patients (id, name, dob, address, phone, email) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.DOB, p.Address, p.Phone, p.Email)
	if err != nil {
		return domain.Patient{}, storeErr("create patient", err)
	}
	return p, nil
}

func (s *SQLite) UpdatePatient(ctx context.Context, id string, patch domain.PatientPatch) (domain.Patient, error) {
	var out domain.Patient
	err := s.Transact(ctx, func(tx Store) error {
		p, err := tx.GetPatient(ctx, id)
		if err != nil {
			return err
		}
		p = applyPatientPatch(p, patch)
		st := tx.(*SQLite)
		_, err = st.ext.ExecContext(ctx,
			`UPDATE patients SET name = ?, dob = ?, address = ?, phone = ?, email = ? WHERE id = ?`,
			p.Name, p.DOB, p.Address, p.Phone, p.Email, p.ID)
		if err != nil {
			return storeErr("update patient", err)
		}
		out = p
		return nil
	})
	return out, err
}

func (s *SQLite) DeletePatient(ctx context.Context, id string) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete patient", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Prescriptions

type itemRow struct {
	PrescriptionID string `db:"prescription_id"`
	MedicationID   string `db:"medication_id"`
	Quantity       int64  `db:"quantity"`
}

func (s *SQLite) ListPrescriptions(ctx context.Context) ([]domain.Prescription, error) {
	return s.listPrescriptions(ctx, ``, nil)
}

func (s *SQLite) ListPrescriptionsForPatient(ctx context.Context, patientID string) ([]domain.Prescription, error) {
	return s.listPrescriptions(ctx, ` WHERE patient_id = ?`, []any{patientID})
}

func (s *SQLite) listPrescriptions(ctx context.Context, where string, args []any) ([]domain.Prescription, error) {
	var rows []domain.Prescription
	err := sqlx.SelectContext(ctx, s.ext, &rows,
		`SELECT id, patient_id, instructions, date, status FROM prescriptions`+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, storeErr("list prescriptions", err)
	}
	if len(rows) == 0 {
		return []domain.Prescription{}, nil
	}
	ids := make([]string, len(rows))
	for i, p := range rows {
		ids[i] = p.ID
	}
	query, qargs, err := sqlx.In(
		`SELECT prescription_id, medication_id, quantity FROM prescription_items WHERE prescription_id IN (?) ORDER BY rowid`, ids)
	if err != nil {
		return nil, storeErr("prepare prescription items", err)
	}
	var items []itemRow
	if err := sqlx.SelectContext(ctx, s.ext, &items, s.ext.Rebind(query), qargs...); err != nil {
		return nil, storeErr("list prescription items", err)
	}
	byID := make(map[string][]domain.Item)
	for _, it := range items {
		byID[it.PrescriptionID] = append(byID[it.PrescriptionID], domain.Item{MedicationID: it.MedicationID, Quantity: it.Quantity})
	}
	for i := range rows {
		rows[i].Items = byID[rows[i].ID]
	}
	return rows, nil
}

func (s *SQLite) GetPrescription(ctx context.Context, id string) (domain.Prescription, error) {
	var p domain.Prescription
	err := sqlx.GetContext(ctx, s.ext, &p,
		`SELECT id, patient_id, instructions, date, status FROM prescriptions WHERE id = ?`, id)
	if err != nil {
		return domain.Prescription{}, storeErr("get prescription", err)
	}
	var items []itemRow
	err = sqlx.SelectContext(ctx, s.ext, &items,
		`SELECT prescription_id, medication_id, quantity FROM prescription_items WHERE prescription_id = ? ORDER BY rowid`, id)
	if err != nil {
		return domain.Prescription{}, storeErr("get prescription items", err)
	}
	for _, it := range items {
		p.Items = append(p.Items, domain.Item{MedicationID: it.MedicationID, Quantity: it.Quantity})
	}
	return p, nil
}

func (s *SQLite) CreatePrescription(ctx context.Context, p domain.Prescription) (domain.Prescription, error) {
	p.ID = uuid.NewString()
	err := s.Transact(ctx, func(tx Store) error {
		st := tx.(*SQLite)
		_, err := st.ext.ExecContext(ctx,
			`INSERT INTO prescriptions (id, patient_id, instructions, date, status) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.PatientID, p.Instructions, p.Date, p.Status)
		if err != nil {
			return storeErr("create prescription", err)
		}
		return st.insertItems(ctx, p.ID, p.Items)
	})
	if err != nil {
		return domain.Prescription{}, err
	}
	return p, nil
}

func (s *SQLite) UpdatePrescription(ctx context.Context, id string, patch domain.PrescriptionPatch) (domain.Prescription, error) {
	var out domain.Prescription
	err := s.Transact(ctx, func(tx Store) error {
		p, err := tx.GetPrescription(ctx, id)
		if err != nil {
			return err
		}
		p = applyPrescriptionPatch(p, patch)
		st := tx.(*SQLite)
		_, err = st.ext.ExecContext(ctx,
			`UPDATE prescriptions SET patient_id = ?, instructions = ?, date = ?, status = ? WHERE id = ?`,
			p.PatientID, p.Instructions, p.Date, p.Status, p.ID)
		if err != nil {
			return storeErr("update prescription", err)
		}
		if patch.Items != nil {
			if _, err := st.ext.ExecContext(ctx, `DELETE FROM prescription_items WHERE prescription_id = ?`, p.ID); err != nil {
				return storeErr("replace prescription items", err)
			}
			if err := st.insertItems(ctx, p.ID, p.Items); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	return out, err
}

func (s *SQLite) DeletePrescription(ctx context.Context, id string) error {
	return s.Transact(ctx, func(tx Store) error {
		st := tx.(*SQLite)
		res, err := st.ext.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = ?`, id)
		if err != nil {
			return storeErr("delete prescription", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		_, err = st.ext.ExecContext(ctx, `DELETE FROM prescription_items WHERE prescription_id = ?`, id)
		if err != nil {
			return storeErr("delete prescription items", err)
		}
		return nil
	})
}

func (s *SQLite) insertItems(ctx context.Context, prescriptionID string, items []domain.Item) error {
	for _, it := range items {
		_, err := s.ext.ExecContext(ctx,
			`INSERT INTO prescription_items (prescription_id, medication_id, quantity) VALUES (?, ?, ?)`,
			prescriptionID, it.MedicationID, it.Quantity)
		if err != nil {
			return storeErr("insert prescription item", err)
		}
	}
	return nil
}

// Users

func (s *SQLite) ListUsers(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	err := sqlx.SelectContext(ctx, s.ext, &users,
		`SELECT id, email, name, password, role, patient_id FROM users ORDER BY rowid`)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	return users, nil
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, s.ext, &u,
		`SELECT id, email, name, password, role, patient_id FROM users WHERE email = ?`, email)
	if err != nil {
		return domain.User{}, storeErr("get user", err)
	}
	return u, nil
}

func (s *SQLite) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	u.ID = uuid.NewString()
	_, err := s.ext.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password, role, patient_id) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.Password, u.Role, u.PatientID)
	if err != nil {
		return domain.User{}, storeErr("create user", err)
	}
	return u, nil
}

func (s *SQLite) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.ext.ExecContext(ctx, `UPDATE users SET password = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return storeErr("update password", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Transact begins a transaction and runs fn against a transaction-scoped
// store. Calls made while already inside a transaction reuse it.
func (s *SQLite) Transact(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	scoped := &SQLite{ext: tx}
	if err := fn(scoped); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}
