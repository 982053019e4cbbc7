package orders

import (
	"time"

	"github.com/google/uuid"
)

const (
	LabStatusPending   = "Pending"
	LabStatusCompleted = "Completed"
)

const (
	UrgencyNormal = "Normal"
	UrgencyUrgent = "Urgent"
	UrgencySTAT   = "STAT"
)

var validLabUrgencies = map[string]bool{
	UrgencyNormal: true, UrgencyUrgent: true, UrgencySTAT: true,
}

// LabRequest is a diagnostic order placed during treatment.
type LabRequest struct {
	ID           uuid.UUID `json:"id"`
	RecordID     uuid.UUID `json:"record_id"`
	PatientID    uuid.UUID `json:"patient_id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	TestType     string    `json:"test_type"`
	Urgency      string    `json:"urgency"`
	Status       string    `json:"status"`
	Instructions *string   `json:"instructions,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MedicineLine is one prescribed medicine. All four fields are mandatory for
// a line to be accepted.
type MedicineLine struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

func (l MedicineLine) complete() bool {
	return l.Name != "" && l.Dosage != "" && l.Frequency != "" && l.Duration != ""
}

// Prescription is the medicine list issued during treatment.
type Prescription struct {
	ID           uuid.UUID      `json:"id"`
	RecordID     uuid.UUID      `json:"record_id"`
	PatientID    uuid.UUID      `json:"patient_id"`
	DoctorID     uuid.UUID      `json:"doctor_id"`
	Medicines    []MedicineLine `json:"medicines"`
	Instructions *string        `json:"instructions,omitempty"`
	IsFilled     bool           `json:"is_filled"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
