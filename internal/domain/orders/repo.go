package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("order not found")

type Repository interface {
	CreateLabRequest(ctx context.Context, lr *LabRequest) error
	ListLabRequestsByRecord(ctx context.Context, recordID uuid.UUID) ([]*LabRequest, error)
	ListLabRequestsByPatient(ctx context.Context, patientID uuid.UUID) ([]*LabRequest, error)

	CreatePrescription(ctx context.Context, p *Prescription) error
	ListPrescriptionsByRecord(ctx context.Context, recordID uuid.UUID) ([]*Prescription, error)
	ListPrescriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error)
}
