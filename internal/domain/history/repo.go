package history

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound indicates no central aggregate exists for the national ID.
var ErrNotFound = errors.New("patient history not found")

type Repository interface {
	// GetByNationalID returns the aggregate for a national ID, or ErrNotFound.
	GetByNationalID(ctx context.Context, nationalID string) (*Patient, error)

	// CreateWithVisit inserts a new aggregate together with its first visit.
	// A unique violation on national_id is returned unwrapped so the caller
	// can treat it as "someone else just created it".
	CreateWithVisit(ctx context.Context, p *Patient, v *Visit) error

	// AppendVisit adds a visit to an existing aggregate.
	AppendVisit(ctx context.Context, v *Visit) error

	// SetBloodGroup overwrites the stored blood group (last write wins).
	SetBloodGroup(ctx context.Context, patientID uuid.UUID, bloodGroup string) error

	// ListVisits returns a patient's visits in most-recent-first order.
	ListVisits(ctx context.Context, patientID uuid.UUID) ([]*Visit, error)
}
