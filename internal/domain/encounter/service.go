package encounter

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mediconnet/mediconnet/internal/domain/patientreg"
	"github.com/mediconnet/mediconnet/internal/platform/apperr"
	"github.com/mediconnet/mediconnet/internal/platform/db"
)

// PatientDirectory is the slice of the patient registry the service needs.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patientreg.Patient, error)
}

type Service struct {
	repo     Repository
	patients PatientDirectory
}

func NewService(repo Repository, patients PatientDirectory) *Service {
	return &Service{repo: repo, patients: patients}
}

type OpenInput struct {
	PatientID uuid.UUID
	Triage    *TriageInput
}

// Open starts a new encounter for a patient, optionally capturing triage in
// the same call. A patient can hold at most one record that has not yet been
// completed.
func (s *Service) Open(ctx context.Context, staffID uuid.UUID, in OpenInput) (*Record, error) {
	if in.Triage != nil {
		if err := in.Triage.validate(); err != nil {
			return nil, err
		}
	}
	if _, err := s.patients.GetByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, patientreg.ErrNotFound) {
			return nil, apperr.NotFound("patient not found")
		}
		return nil, apperr.Internal(err)
	}

	rec := &Record{PatientID: in.PatientID}
	if err := s.repo.Create(ctx, rec); err != nil {
		if db.UniqueViolation(err, "uq_medical_record_active") {
			return nil, apperr.Validation("patient already has an active medical record")
		}
		return nil, apperr.Internal(err)
	}
	if in.Triage == nil {
		return rec, nil
	}
	return s.RecordTriage(ctx, rec.ID, staffID, *in.Triage)
}

type TriageInput struct {
	Vitals         Vitals `json:"vitals"`
	ChiefComplaint string `json:"chiefComplaint"`
	Urgency        string `json:"urgency"`
}

func (in *TriageInput) validate() error {
	if in.ChiefComplaint == "" {
		return apperr.Validation("chief complaint is required", "chiefComplaint")
	}
	if in.Urgency == "" {
		in.Urgency = UrgencyNormal
	}
	if !validUrgencies[in.Urgency] {
		return apperr.Validation(fmt.Sprintf("invalid urgency %q", in.Urgency), "urgency")
	}
	return nil
}

// RecordTriage captures nurse observations on a record that has not entered
// treatment yet. Repeated triage overwrites the previous capture.
func (s *Service) RecordTriage(ctx context.Context, recordID, staffID uuid.UUID, in TriageInput) (*Record, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	t := &Triage{
		Vitals:         in.Vitals,
		ChiefComplaint: in.ChiefComplaint,
		Urgency:        in.Urgency,
		StaffID:        staffID,
	}
	ok, err := s.repo.SetTriage(ctx, recordID, t, []Status{StatusPending, StatusAssigned})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		if _, err := s.repo.GetByID(ctx, recordID); errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("record not found")
		} else if err != nil {
			return nil, apperr.Internal(err)
		}
		return nil, apperr.InvalidTransition("triage can only be recorded before treatment starts")
	}
	return s.get(ctx, recordID)
}

// Assign claims a pending record for a doctor.
func (s *Service) Assign(ctx context.Context, recordID, doctorID uuid.UUID) (*Record, error) {
	to, err := NextStatus(StatusPending, ActionAssign)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.AssignDoctor(ctx, recordID, doctorID, StatusPending, to)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		if _, err := s.repo.GetByID(ctx, recordID); errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("record not found")
		} else if err != nil {
			return nil, apperr.Internal(err)
		}
		return nil, apperr.InvalidTransition("record is not in 'Pending' status")
	}
	return s.get(ctx, recordID)
}

// StartTreatment moves an assigned record into treatment. The denial does not
// distinguish a missing record, someone else's record, or a wrong status.
func (s *Service) StartTreatment(ctx context.Context, recordID, doctorID uuid.UUID) (*Record, error) {
	to, err := NextStatus(StatusAssigned, ActionStartTreatment)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.AdvanceForDoctor(ctx, recordID, doctorID, StatusAssigned, to)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.InvalidTransition("record not found, not assigned to you, or not in 'Assigned' status")
	}
	return s.get(ctx, recordID)
}

type CompleteInput struct {
	Diagnosis     string  `json:"diagnosis"`
	TreatmentPlan string  `json:"treatmentPlan"`
	Vitals        *Vitals `json:"vitals"`
}

// Complete closes a record under treatment with the doctor's final notes.
func (s *Service) Complete(ctx context.Context, recordID, doctorID uuid.UUID, in CompleteInput) (*Record, error) {
	var missing []string
	if in.Diagnosis == "" {
		missing = append(missing, "diagnosis")
	}
	if in.TreatmentPlan == "" {
		missing = append(missing, "treatmentPlan")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("diagnosis and treatment plan are required", missing...)
	}

	to, err := NextStatus(StatusInTreatment, ActionComplete)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.CompleteForDoctor(ctx, recordID, doctorID, StatusInTreatment, to, in.Diagnosis, in.TreatmentPlan, in.Vitals)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.Forbidden("record not found, not assigned to you, or not in 'InTreatment' status")
	}
	return s.get(ctx, recordID)
}

// GetRecord returns a record only to the doctor it is assigned to. The denial
// is the same whether the record is missing or owned by someone else.
func (s *Service) GetRecord(ctx context.Context, recordID, doctorID uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetForDoctor(ctx, recordID, doctorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("record not found")
		}
		return nil, apperr.Internal(err)
	}
	return rec, nil
}

// RequireInTreatment verifies the record belongs to the doctor and is under
// treatment. Clinical orders may only be placed while this holds. Missing
// record, wrong doctor, and wrong status all collapse to the same denial.
func (s *Service) RequireInTreatment(ctx context.Context, recordID, doctorID uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetForDoctor(ctx, recordID, doctorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.Forbidden("record not found or not in treatment status")
		}
		return nil, apperr.Internal(err)
	}
	if rec.Status != StatusInTreatment {
		return nil, apperr.Forbidden("record not found or not in treatment status")
	}
	return rec, nil
}

// AttachLabRequest links a lab request to a record. Re-attaching the same
// request is a no-op.
func (s *Service) AttachLabRequest(ctx context.Context, recordID, labRequestID uuid.UUID) error {
	if err := s.repo.AddLabRequestRef(ctx, recordID, labRequestID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *Service) AttachPrescription(ctx context.Context, recordID, prescriptionID uuid.UUID) error {
	if err := s.repo.AddPrescriptionRef(ctx, recordID, prescriptionID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

type ListInput struct {
	Statuses []Status
	Search   string
	Limit    int
	Offset   int
}

// ListAssignedPatients returns the doctor's current caseload: records that
// are assigned or under treatment. The status filter can only narrow within
// that scope; completed and pending records are never listable here.
func (s *Service) ListAssignedPatients(ctx context.Context, doctorID uuid.UUID, in ListInput) ([]*AssignedPatient, int, error) {
	statuses := in.Statuses
	if len(statuses) == 0 {
		statuses = workingStatuses
	}
	for _, st := range statuses {
		switch st {
		case StatusAssigned, StatusInTreatment:
		default:
			return nil, 0, apperr.Validation(fmt.Sprintf("invalid status %q", st), "status")
		}
	}
	patients, total, err := s.repo.ListForDoctor(ctx, doctorID, statuses, in.Search, in.Limit, in.Offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return patients, total, nil
}

// CanAccessPatient reports whether the doctor has ever held a record for the
// patient. Without such a link the patient's chart is off limits.
func (s *Service) CanAccessPatient(ctx context.Context, doctorID, patientID uuid.UUID) error {
	ok, err := s.repo.ExistsForDoctorAndPatient(ctx, doctorID, patientID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.Forbidden("you don't have access to this patient's records")
	}
	return nil
}

// ListByPatient returns every record for a patient, most recent first. Callers
// are expected to check access first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	records, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return records, nil
}

func (s *Service) get(ctx context.Context, recordID uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rec, nil
}
