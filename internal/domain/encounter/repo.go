package encounter

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound covers both a missing record and a record the requesting
// doctor is not assigned to; repositories never distinguish the two on
// doctor-scoped lookups.
var ErrNotFound = errors.New("medical record not found")

type Repository interface {
	// Create inserts a new record in StatusPending. A unique violation on
	// the active-record index is returned unwrapped.
	Create(ctx context.Context, rec *Record) error

	// GetByID loads a record regardless of assignment. Internal use only;
	// doctor-facing reads go through GetForDoctor.
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// GetForDoctor loads a record only when doctorID is its assigned
	// doctor; otherwise ErrNotFound, whether or not the record exists.
	GetForDoctor(ctx context.Context, id, doctorID uuid.UUID) (*Record, error)

	// SetTriage stamps the triage sub-record while the record is still in
	// one of allowedFrom. Reports whether a row matched.
	SetTriage(ctx context.Context, id uuid.UUID, t *Triage, allowedFrom []Status) (bool, error)

	// AssignDoctor conditionally moves from -> to, binding the doctor.
	// Reports whether the stored status still matched from.
	AssignDoctor(ctx context.Context, id, doctorID uuid.UUID, from, to Status) (bool, error)

	// AdvanceForDoctor conditionally moves from -> to only when doctorID is
	// the assigned doctor and the stored status still equals from.
	AdvanceForDoctor(ctx context.Context, id, doctorID uuid.UUID, from, to Status) (bool, error)

	// CompleteForDoctor is AdvanceForDoctor plus stamping the clinical
	// notes and optional vitals merge, in one conditional update.
	CompleteForDoctor(ctx context.Context, id, doctorID uuid.UUID, from, to Status, diagnosis, treatmentPlan string, vitals *Vitals) (bool, error)

	// ListForDoctor returns the doctor's records in the given statuses,
	// most recent first, with patient summaries. search narrows by national
	// ID or name fragment within that scope.
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, statuses []Status, search string, limit, offset int) ([]*AssignedPatient, int, error)

	// ExistsForDoctorAndPatient reports whether any record links the doctor
	// to the patient, in any status.
	ExistsForDoctorAndPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)

	// ListByPatient returns all of a patient's records, most recent first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error)

	// AddLabRequestRef and AddPrescriptionRef append artifact references
	// with set semantics: re-adding an existing reference is a no-op.
	AddLabRequestRef(ctx context.Context, recordID, labRequestID uuid.UUID) error
	AddPrescriptionRef(ctx context.Context, recordID, prescriptionID uuid.UUID) error
}
