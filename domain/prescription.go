package domain

import "time"

// Prescription statuses. A prescription is created active; fill moves it to
// filled. Both filled and cancelled are terminal for the fill operation.
const (
	StatusActive    = "active"
	StatusFilled    = "filled"
	StatusCancelled = "cancelled"
)

type Item struct {
	MedicationID string `db:"medication_id" json:"medication_id"`
	Quantity     int64  `db:"quantity" json:"quantity"`
}

type Prescription struct {
	ID           string    `db:"id" json:"id"`
	PatientID    string    `db:"patient_id" json:"patient_id"`
	Items        []Item    `json:"items"`
	Instructions string    `db:"instructions" json:"instructions,omitempty"`
	Date         time.Time `db:"date" json:"date"`
	Status       string    `db:"status" json:"status"`
}

// PrescriptionPatch carries a partial update; nil fields are retained.
// Status may be set directly here; only Fill enforces the state machine.
type PrescriptionPatch struct {
	PatientID    *string `json:"patient_id,omitempty"`
	Items        []Item  `json:"items,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
	Status       *string `json:"status,omitempty"`
}

func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusFilled || s == StatusCancelled
}
