// Package seed loads the demo dataset into an empty store so the dashboard
// is usable out of the box.
package seed

import (
	"context"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/store"
)

// DemoPassword is the password every demo account is created with.
const DemoPassword = "pharmadesk"

func date(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		log.Fatalf("bad seed date %q: %v", value, err)
	}
	return t
}

func demoMedications() []domain.Medication {
	return []domain.Medication{
		{Name: "Amoxicillin 500mg", Description: "Antibiotic for bacterial infections", Category: "Antibiotics", Stock: 150, Expiration: date("2025-06-15")},
		{Name: "Lisinopril 10mg", Description: "ACE inhibitor for hypertension", Category: "Cardiovascular", Stock: 75, Expiration: date("2025-08-20")},
		{Name: "Metformin 500mg", Description: "Oral diabetes medicine", Category: "Endocrine", Stock: 200, Expiration: date("2025-12-01")},
		{Name: "Ibuprofen 200mg", Description: "NSAID for pain and inflammation", Category: "Pain Relief", Stock: 8, Expiration: date("2025-03-10")},
		{Name: "Omeprazole 20mg", Description: "Proton pump inhibitor for acid reflux", Category: "Gastrointestinal", Stock: 45, Expiration: date("2025-09-15")},
		{Name: "Atorvastatin 20mg", Description: "Statin for cholesterol management", Category: "Cardiovascular", Stock: 60, Expiration: date("2025-11-30")},
	}
}

func demoPatients() []domain.Patient {
	return []domain.Patient{
		{Name: "Sarah Johnson", DOB: "1985-03-15", Address: "32 Aberdeen Road, Freetown", Phone: "+232 76 123 456", Email: "sarah.j@email.com"},
		{Name: "Michael Chen", DOB: "1992-07-22", Address: "15 Kissy Street, Freetown", Phone: "+232 77 234 567", Email: "m.chen@email.com"},
		{Name: "Emily Davis", DOB: "1978-11-08", Address: "8 Wilkinson Road, Freetown", Phone: "+232 78 345 678", Email: "emily.davis@email.com"},
	}
}

func loadCollections(ctx context.Context, s store.Store) error {
	for _, m := range demoMedications() {
		if _, err := s.CreateMedication(ctx, m); err != nil {
			return err
		}
	}
	for _, p := range demoPatients() {
		if _, err := s.CreatePatient(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Run populates demo users, medications and patients. It is a no-op when the
// store already holds users, so restarts do not duplicate data.
func Run(ctx context.Context, s store.Store) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		log.Printf("seed: unable to inspect users: %v", err)
		return
	}
	if len(users) > 0 {
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("seed: unable to hash demo password: %v", err)
		return
	}

	demoUsers := []domain.User{
		{Email: "admin@nawe.com", Name: "Site Admin", Role: domain.RoleAdmin},
		{Email: "pharmacist@nawe.com", Name: "John Pharmacist", Role: domain.RolePharmacist},
		{Email: "charles@nawe.com", Name: "Charles User", Role: domain.RolePharmacist},
	}
	for _, u := range demoUsers {
		u.Password = string(hashed)
		if _, err := s.CreateUser(ctx, u); err != nil {
			log.Printf("seed: unable to create user %s: %v", u.Email, err)
			return
		}
	}

	if err := loadCollections(ctx, s); err != nil {
		log.Printf("seed: unable to load demo collections: %v", err)
		return
	}
	log.Printf("seeded demo data: %d users, %d medications, %d patients",
		len(demoUsers), len(demoMedications()), len(demoPatients()))
}

// Reset clears the medication, patient and prescription collections and
// reloads the demo dataset, all in one transaction. Users are kept so
// sessions stay valid.
func Reset(ctx context.Context, s store.Store) error {
	return s.Transact(ctx, func(tx store.Store) error {
		meds, err := tx.ListMedications(ctx)
		if err != nil {
			return err
		}
		for _, m := range meds {
			if err := tx.DeleteMedication(ctx, m.ID); err != nil {
				return err
			}
		}
		patients, err := tx.ListPatients(ctx)
		if err != nil {
			return err
		}
		for _, p := range patients {
			if err := tx.DeletePatient(ctx, p.ID); err != nil {
				return err
			}
		}
		prescriptions, err := tx.ListPrescriptions(ctx)
		if err != nil {
			return err
		}
		for _, p := range prescriptions {
			if err := tx.DeletePrescription(ctx, p.ID); err != nil {
				return err
			}
		}
		return loadCollections(ctx, tx)
	})
}
