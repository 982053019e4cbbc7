package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mediconnet/mediconnet/internal/domain/encounter"
	"github.com/mediconnet/mediconnet/internal/platform/apperr"
)

// RecordGate is the slice of the encounter service the order flow needs:
// the in-treatment gate for writes, the assignment gate for reads, and the
// back-reference appends.
type RecordGate interface {
	RequireInTreatment(ctx context.Context, recordID, doctorID uuid.UUID) (*encounter.Record, error)
	GetRecord(ctx context.Context, recordID, doctorID uuid.UUID) (*encounter.Record, error)
	AttachLabRequest(ctx context.Context, recordID, labRequestID uuid.UUID) error
	AttachPrescription(ctx context.Context, recordID, prescriptionID uuid.UUID) error
}

// TxRunner executes fn atomically. Production wiring backs this with
// db.WithinTx; tests pass the function through.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo Repository
	gate RecordGate
	tx   TxRunner
}

func NewService(repo Repository, gate RecordGate, tx TxRunner) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{repo: repo, gate: gate, tx: tx}
}

type LabRequestInput struct {
	TestType     string  `json:"testType"`
	Urgency      string  `json:"urgency"`
	Instructions *string `json:"instructions"`
}

// CreateLabRequest places a diagnostic order against a record the doctor is
// currently treating, and links it back to the record.
func (s *Service) CreateLabRequest(ctx context.Context, recordID, doctorID uuid.UUID, in LabRequestInput) (*LabRequest, error) {
	if in.TestType == "" {
		return nil, apperr.Validation("test type is required", "testType")
	}
	if in.Urgency == "" {
		in.Urgency = UrgencyNormal
	}
	if !validLabUrgencies[in.Urgency] {
		return nil, apperr.Validation(fmt.Sprintf("invalid urgency %q", in.Urgency), "urgency")
	}

	rec, err := s.gate.RequireInTreatment(ctx, recordID, doctorID)
	if err != nil {
		return nil, err
	}

	lr := &LabRequest{
		RecordID:     recordID,
		PatientID:    rec.PatientID,
		DoctorID:     doctorID,
		TestType:     in.TestType,
		Urgency:      in.Urgency,
		Status:       LabStatusPending,
		Instructions: in.Instructions,
	}
	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateLabRequest(ctx, lr); err != nil {
			return apperr.Internal(err)
		}
		return s.gate.AttachLabRequest(ctx, recordID, lr.ID)
	})
	if err != nil {
		return nil, err
	}
	return lr, nil
}

// ListLabRequests returns a record's lab requests to its assigned doctor, in
// any record status.
func (s *Service) ListLabRequests(ctx context.Context, recordID, doctorID uuid.UUID) ([]*LabRequest, error) {
	if _, err := s.gate.GetRecord(ctx, recordID, doctorID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListLabRequestsByRecord(ctx, recordID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

type PrescriptionInput struct {
	MedicineList []MedicineLine `json:"medicineList"`
	Instructions *string        `json:"instructions"`
}

// CreatePrescription issues a prescription against a record under treatment.
// Line items missing any of name, dosage, frequency or duration are dropped;
// the submission is rejected only when no valid line remains.
func (s *Service) CreatePrescription(ctx context.Context, recordID, doctorID uuid.UUID, in PrescriptionInput) (*Prescription, error) {
	var valid []MedicineLine
	for _, line := range in.MedicineList {
		if line.complete() {
			valid = append(valid, line)
		}
	}
	if len(valid) == 0 {
		return nil, apperr.Validation("at least one valid medicine (name, dosage, frequency, duration) is required", "medicineList")
	}

	rec, err := s.gate.RequireInTreatment(ctx, recordID, doctorID)
	if err != nil {
		return nil, err
	}

	p := &Prescription{
		RecordID:     recordID,
		PatientID:    rec.PatientID,
		DoctorID:     doctorID,
		Medicines:    valid,
		Instructions: in.Instructions,
	}
	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreatePrescription(ctx, p); err != nil {
			return apperr.Internal(err)
		}
		return s.gate.AttachPrescription(ctx, recordID, p.ID)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPrescriptions returns a record's prescriptions to its assigned doctor.
func (s *Service) ListPrescriptions(ctx context.Context, recordID, doctorID uuid.UUID) ([]*Prescription, error) {
	if _, err := s.gate.GetRecord(ctx, recordID, doctorID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListPrescriptionsByRecord(ctx, recordID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// ListByPatient returns all of a patient's lab requests and prescriptions.
// Access control is the caller's job; the chart projector guards first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*LabRequest, []*Prescription, error) {
	labs, err := s.repo.ListLabRequestsByPatient(ctx, patientID)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	scripts, err := s.repo.ListPrescriptionsByPatient(ctx, patientID)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	return labs, scripts, nil
}
