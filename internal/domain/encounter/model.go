// Package encounter owns the per-facility medical record: one clinical
// episode per patient, governed by an explicit lifecycle, with all access
// scoped to the assigned doctor.
package encounter

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediconnet/mediconnet/internal/platform/apperr"
)

// Status is the lifecycle state of a medical record.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusAssigned    Status = "Assigned"
	StatusInTreatment Status = "InTreatment"
	StatusCompleted   Status = "Completed"
)

// Action is a lifecycle command.
type Action string

const (
	ActionAssign         Action = "assign"
	ActionStartTreatment Action = "start-treatment"
	ActionComplete       Action = "complete"
)

// transitions is the full lifecycle table. Anything not listed is rejected;
// in particular nothing leads out of Completed.
var transitions = map[Status]map[Action]Status{
	StatusPending:     {ActionAssign: StatusAssigned},
	StatusAssigned:    {ActionStartTreatment: StatusInTreatment},
	StatusInTreatment: {ActionComplete: StatusCompleted},
}

// NextStatus resolves an action against the transition table.
func NextStatus(from Status, action Action) (Status, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	return "", apperr.InvalidTransition("no transition for action " + string(action) + " from status " + string(from))
}

// Terminal reports whether no further transitions exist from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// workingStatuses are the states in which a record appears on its doctor's
// patient list.
var workingStatuses = []Status{StatusAssigned, StatusInTreatment}

// Vitals is the triage vital-signs snapshot. Values stay free text; the
// facilities feeding this system do not agree on units.
type Vitals struct {
	Temperature      string `json:"temperature,omitempty"`
	BloodPressure    string `json:"blood_pressure,omitempty"`
	HeartRate        string `json:"heart_rate,omitempty"`
	RespiratoryRate  string `json:"respiratory_rate,omitempty"`
	OxygenSaturation string `json:"oxygen_saturation,omitempty"`
}

// Triage is the intake sub-record completed before assignment.
type Triage struct {
	Vitals         Vitals     `json:"vitals"`
	ChiefComplaint string     `json:"chief_complaint"`
	Urgency        string     `json:"urgency"`
	StaffID        uuid.UUID  `json:"staff_id"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

const (
	UrgencyLow      = "Low"
	UrgencyNormal   = "Normal"
	UrgencyHigh     = "High"
	UrgencyCritical = "Critical"
)

var validUrgencies = map[string]bool{
	UrgencyLow: true, UrgencyNormal: true, UrgencyHigh: true, UrgencyCritical: true,
}

// Notes is the clinical documentation stamped when treatment concludes.
type Notes struct {
	Diagnosis       *string     `json:"diagnosis,omitempty"`
	TreatmentPlan   *string     `json:"treatment_plan,omitempty"`
	PrescriptionIDs []uuid.UUID `json:"prescription_ids,omitempty"`
}

// Record is one medical record (encounter).
type Record struct {
	ID            uuid.UUID   `json:"id"`
	PatientID     uuid.UUID   `json:"patient_id"`
	DoctorID      *uuid.UUID  `json:"doctor_id,omitempty"`
	Status        Status      `json:"status"`
	Triage        *Triage     `json:"triage,omitempty"`
	Notes         Notes       `json:"notes"`
	LabRequestIDs []uuid.UUID `json:"lab_request_ids,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// PatientSummary is the patient slice carried on list rows.
type PatientSummary struct {
	ID          uuid.UUID `json:"id"`
	NationalID  string    `json:"national_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Gender      string    `json:"gender"`
	DateOfBirth time.Time `json:"date_of_birth"`
	BloodGroup  *string   `json:"blood_group,omitempty"`
}

// AssignedPatient is one row of a doctor's patient list.
type AssignedPatient struct {
	RecordID uuid.UUID      `json:"record_id"`
	Status   Status         `json:"status"`
	Patient  PatientSummary `json:"patient"`
}
