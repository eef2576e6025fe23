package domain

const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
	RolePatient    = "patient"
)

type User struct {
	ID        string  `db:"id" json:"id"`
	Email     string  `db:"email" json:"email"`
	Name      string  `db:"name" json:"name"`
	Password  string  `db:"password" json:"password,omitempty"`
	Role      string  `db:"role" json:"role"`
	PatientID *string `db:"patient_id" json:"patient_id,omitempty"`
}

func ValidRole(r string) bool {
	return r == RoleAdmin || r == RolePharmacist || r == RolePatient
}
