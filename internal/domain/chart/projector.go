// Package chart builds the read-side patient views served to facility staff.
// It composes the patient registry, encounter records and clinical orders
// into one response and performs no authorization of its own; handlers must
// run the access guard before calling into it.
package chart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnet/mediconnet/internal/domain/encounter"
	"github.com/mediconnet/mediconnet/internal/domain/orders"
	"github.com/mediconnet/mediconnet/internal/domain/patientreg"
	"github.com/mediconnet/mediconnet/internal/platform/apperr"
)

const notDocumented = "Not documented"

type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patientreg.Patient, error)
}

type RecordSource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*encounter.Record, error)
}

type OrderSource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*orders.LabRequest, []*orders.Prescription, error)
}

type Projector struct {
	patients PatientSource
	records  RecordSource
	orders   OrderSource
	now      func() time.Time
}

func NewProjector(patients PatientSource, records RecordSource, orderSrc OrderSource) *Projector {
	return &Projector{patients: patients, records: records, orders: orderSrc, now: time.Now}
}

type BasicInfo struct {
	ID            uuid.UUID `json:"id"`
	NationalID    string    `json:"national_id"`
	FullName      string    `json:"full_name"`
	Gender        string    `json:"gender"`
	DateOfBirth   time.Time `json:"date_of_birth"`
	Age           int       `json:"age"`
	BloodGroup    *string   `json:"blood_group,omitempty"`
	ContactNumber *string   `json:"contact_number,omitempty"`
	Address       *string   `json:"address,omitempty"`
}

// CurrentVisit is the one active encounter, if any.
type CurrentVisit struct {
	RecordID uuid.UUID         `json:"record_id"`
	Status   encounter.Status  `json:"status"`
	DoctorID *uuid.UUID        `json:"doctor_id,omitempty"`
	Triage   *encounter.Triage `json:"triage,omitempty"`
	Since    time.Time         `json:"since"`
}

// HistoryEntry is one past or present encounter reduced for display.
type HistoryEntry struct {
	RecordID      uuid.UUID              `json:"record_id"`
	Status        encounter.Status       `json:"status"`
	Date          time.Time              `json:"date"`
	DoctorID      *uuid.UUID             `json:"doctor_id,omitempty"`
	Triage        *encounter.Triage      `json:"triage,omitempty"`
	Diagnosis     string                 `json:"diagnosis"`
	TreatmentPlan string                 `json:"treatment_plan"`
	Prescriptions []*orders.Prescription `json:"prescriptions"`
	LabRequests   []*orders.LabRequest   `json:"lab_requests"`
}

type Profile struct {
	BasicInfo      BasicInfo      `json:"basic_info"`
	CurrentVisit   *CurrentVisit  `json:"current_visit,omitempty"`
	MedicalHistory []HistoryEntry `json:"medical_history"`
}

type History struct {
	PatientID      uuid.UUID      `json:"patient_id"`
	FullName       string         `json:"full_name"`
	MedicalHistory []HistoryEntry `json:"medical_history"`
}

// Profile assembles the full chart: demographics with derived age, the
// current visit when one is assigned or under treatment, and every encounter
// most recent first.
func (p *Projector) Profile(ctx context.Context, patientID uuid.UUID) (*Profile, error) {
	patient, err := p.patients.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, patientreg.ErrNotFound) {
			return nil, apperr.NotFound("patient not found")
		}
		return nil, apperr.Internal(err)
	}

	entries, current, err := p.assemble(ctx, patientID)
	if err != nil {
		return nil, err
	}

	return &Profile{
		BasicInfo: BasicInfo{
			ID:            patient.ID,
			NationalID:    patient.NationalID,
			FullName:      patient.FullName(),
			Gender:        patient.Gender,
			DateOfBirth:   patient.DateOfBirth,
			Age:           patient.Age(p.now()),
			BloodGroup:    patient.BloodGroup,
			ContactNumber: patient.ContactNumber,
			Address:       patient.Address,
		},
		CurrentVisit:   current,
		MedicalHistory: entries,
	}, nil
}

// History assembles the encounter list without the demographic block.
func (p *Projector) History(ctx context.Context, patientID uuid.UUID) (*History, error) {
	patient, err := p.patients.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, patientreg.ErrNotFound) {
			return nil, apperr.NotFound("patient not found")
		}
		return nil, apperr.Internal(err)
	}

	entries, _, err := p.assemble(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &History{
		PatientID:      patient.ID,
		FullName:       patient.FullName(),
		MedicalHistory: entries,
	}, nil
}

func (p *Projector) assemble(ctx context.Context, patientID uuid.UUID) ([]HistoryEntry, *CurrentVisit, error) {
	records, err := p.records.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	labs, scripts, err := p.orders.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}

	labsByRecord := map[uuid.UUID][]*orders.LabRequest{}
	for _, lr := range labs {
		labsByRecord[lr.RecordID] = append(labsByRecord[lr.RecordID], lr)
	}
	scriptsByRecord := map[uuid.UUID][]*orders.Prescription{}
	for _, s := range scripts {
		scriptsByRecord[s.RecordID] = append(scriptsByRecord[s.RecordID], s)
	}

	entries := make([]HistoryEntry, 0, len(records))
	var current *CurrentVisit
	for _, rec := range records {
		entry := HistoryEntry{
			RecordID:      rec.ID,
			Status:        rec.Status,
			Date:          rec.CreatedAt,
			DoctorID:      rec.DoctorID,
			Triage:        rec.Triage,
			Diagnosis:     notDocumented,
			TreatmentPlan: notDocumented,
			Prescriptions: scriptsByRecord[rec.ID],
			LabRequests:   labsByRecord[rec.ID],
		}
		// Records without orders still serialize as empty arrays, not null.
		if entry.Prescriptions == nil {
			entry.Prescriptions = []*orders.Prescription{}
		}
		if entry.LabRequests == nil {
			entry.LabRequests = []*orders.LabRequest{}
		}
		if rec.Notes.Diagnosis != nil && *rec.Notes.Diagnosis != "" {
			entry.Diagnosis = *rec.Notes.Diagnosis
		}
		if rec.Notes.TreatmentPlan != nil && *rec.Notes.TreatmentPlan != "" {
			entry.TreatmentPlan = *rec.Notes.TreatmentPlan
		}
		entries = append(entries, entry)

		if current == nil && (rec.Status == encounter.StatusAssigned || rec.Status == encounter.StatusInTreatment) {
			current = &CurrentVisit{
				RecordID: rec.ID,
				Status:   rec.Status,
				DoctorID: rec.DoctorID,
				Triage:   rec.Triage,
				Since:    rec.CreatedAt,
			}
		}
	}
	return entries, current, nil
}
