package domain

import "time"

type Medication struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	Stock       int64     `db:"stock" json:"stock"`
	Expiration  time.Time `db:"expiration" json:"expiration"`
}

// MedicationPatch carries a partial update; nil fields are retained.
type MedicationPatch struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Stock       *int64     `json:"stock,omitempty"`
	Expiration  *time.Time `json:"expiration,omitempty"`
}
