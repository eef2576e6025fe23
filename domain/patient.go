package domain

type Patient struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	DOB     string `db:"dob" json:"dob"`
	Address string `db:"address" json:"address"`
	Phone   string `db:"phone" json:"phone"`
	Email   string `db:"email" json:"email,omitempty"`
}

type PatientPatch struct {
	Name    *string `json:"name,omitempty"`
	DOB     *string `json:"dob,omitempty"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
}
