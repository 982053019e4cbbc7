// Package history implements the central longitudinal record: one aggregate
// per national ID, built from visit entries contributed by independently
// authenticated facilities.
package history

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the central identity aggregate, keyed by national ID. At most
// one row exists per national ID; demographics are set on first contact and
// the blood group is last-write-wins across facilities.
type Patient struct {
	ID          uuid.UUID `db:"id" json:"id"`
	NationalID  string    `db:"national_id" json:"national_id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	DateOfBirth time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender      string    `db:"gender" json:"gender"`
	BloodGroup  *string   `db:"blood_group" json:"blood_group,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the stored name parts.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// DoctorNotes is the clinical payload of a visit entry.
type DoctorNotes struct {
	Diagnosis     string      `json:"diagnosis"`
	TreatmentPlan string      `json:"treatment_plan,omitempty"`
	Prescriptions []uuid.UUID `json:"prescriptions,omitempty"`
}

// LabResult is one completed test carried on a visit entry.
type LabResult struct {
	TestName string    `json:"test_name"`
	Result   string    `json:"result"`
	Date     time.Time `json:"date"`
}

// MedicineSnapshot is one free-form prescription line captured at
// submission time. Snapshots are denormalized on purpose: the central plane
// never reaches back into a facility's prescription store.
type MedicineSnapshot struct {
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Duration       string `json:"duration"`
}

// Visit is one immutable contribution to a patient's central history,
// stamped with the facility that submitted it. Appends never clobber prior
// appends; visits are never deleted.
type Visit struct {
	ID            uuid.UUID          `db:"id" json:"id"`
	PatientID     uuid.UUID          `db:"patient_id" json:"patient_id"`
	FacilityID    uuid.UUID          `db:"facility_id" json:"facility_id"`
	DoctorNotes   DoctorNotes        `db:"doctor_notes" json:"doctor_notes"`
	LabResults    []LabResult        `db:"lab_results" json:"lab_results,omitempty"`
	Prescriptions []MedicineSnapshot `db:"prescriptions" json:"prescriptions,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}

var validGenders = map[string]bool{
	"Male":   true,
	"Female": true,
	"Other":  true,
}

var validBloodGroups = map[string]bool{
	"A+": true, "A-": true,
	"B+": true, "B-": true,
	"AB+": true, "AB-": true,
	"O+": true, "O-": true,
}
