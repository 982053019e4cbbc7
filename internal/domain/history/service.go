package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnet/mediconnet/internal/platform/apperr"
	"github.com/mediconnet/mediconnet/internal/platform/db"
)

// TxRunner executes fn atomically. Production wiring backs this with
// db.WithinTx; tests pass the function through.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo Repository
	tx   TxRunner
}

func NewService(repo Repository, tx TxRunner) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{repo: repo, tx: tx}
}

// SubmitInput is one facility's contribution for a national ID.
type SubmitInput struct {
	NationalID  string     `json:"national_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth string     `json:"date_of_birth"` // YYYY-MM-DD
	Gender      string     `json:"gender"`
	BloodGroup  string     `json:"blood_group,omitempty"`
	Record      VisitInput `json:"record"`
}

// VisitInput is the visit entry payload inside a submission.
type VisitInput struct {
	DoctorNotes   *DoctorNotes       `json:"doctor_notes"`
	LabResults    []LabResult        `json:"lab_results,omitempty"`
	Prescriptions []MedicineSnapshot `json:"prescriptions,omitempty"`
}

// SubmitResult reports whether the aggregate was created or appended to.
type SubmitResult struct {
	Created    bool     `json:"created"`
	Patient    *Patient `json:"patient"`
	VisitCount int      `json:"visit_count"`
}

// SubmitVisit upserts the aggregate for in.NationalID: first write from any
// facility creates it, later writes append. The submitting facility is
// stamped onto the visit entry. Resubmissions append duplicates; the central
// plane does not deduplicate.
func (s *Service) SubmitVisit(ctx context.Context, facilityID uuid.UUID, in SubmitInput) (*SubmitResult, error) {
	var missing []string
	if in.NationalID == "" {
		missing = append(missing, "national_id")
	}
	if in.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if in.LastName == "" {
		missing = append(missing, "last_name")
	}
	if in.DateOfBirth == "" {
		missing = append(missing, "date_of_birth")
	}
	if in.Gender == "" {
		missing = append(missing, "gender")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("missing required fields", missing...)
	}
	if in.Record.DoctorNotes == nil {
		return nil, apperr.Validation("medical record data is required", "record.doctor_notes")
	}
	if !validGenders[in.Gender] {
		return nil, apperr.Validation("invalid gender", "gender")
	}
	if in.BloodGroup != "" && !validBloodGroups[in.BloodGroup] {
		return nil, apperr.Validation("invalid blood group", "blood_group")
	}
	dob, err := time.Parse("2006-01-02", in.DateOfBirth)
	if err != nil {
		return nil, apperr.Validation("date_of_birth must be YYYY-MM-DD", "date_of_birth")
	}

	visit := &Visit{
		FacilityID:    facilityID,
		DoctorNotes:   *in.Record.DoctorNotes,
		LabResults:    in.Record.LabResults,
		Prescriptions: in.Record.Prescriptions,
	}

	patient, err := s.repo.GetByNationalID(ctx, in.NationalID)
	switch {
	case err == nil:
		return s.append(ctx, patient, visit, in.BloodGroup)
	case err == ErrNotFound:
		// fall through to create
	default:
		return nil, apperr.Internal(err)
	}

	patient = &Patient{
		NationalID:  in.NationalID,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		DateOfBirth: dob,
		Gender:      in.Gender,
	}
	if in.BloodGroup != "" {
		bg := in.BloodGroup
		patient.BloodGroup = &bg
	}

	// The aggregate row and its first visit land together or not at all; a
	// visit insert failure must not leave behind a patient with zero visits.
	err = s.tx(ctx, func(ctx context.Context) error {
		return s.repo.CreateWithVisit(ctx, patient, visit)
	})
	if err != nil {
		if db.UniqueViolation(err, "") {
			// A concurrent submission created the aggregate first: re-read
			// and append instead.
			existing, rerr := s.repo.GetByNationalID(ctx, in.NationalID)
			if rerr != nil {
				return nil, apperr.Internal(rerr)
			}
			return s.append(ctx, existing, visit, in.BloodGroup)
		}
		return nil, apperr.Internal(err)
	}

	return &SubmitResult{Created: true, Patient: patient, VisitCount: 1}, nil
}

func (s *Service) append(ctx context.Context, patient *Patient, visit *Visit, bloodGroup string) (*SubmitResult, error) {
	visit.PatientID = patient.ID
	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.AppendVisit(ctx, visit); err != nil {
			return err
		}
		if bloodGroup != "" {
			return s.repo.SetBloodGroup(ctx, patient.ID, bloodGroup)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if bloodGroup != "" {
		bg := bloodGroup
		patient.BloodGroup = &bg
	}

	visits, err := s.repo.ListVisits(ctx, patient.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &SubmitResult{Created: false, Patient: patient, VisitCount: len(visits)}, nil
}

// HistoryView is the read-side shape of a central aggregate.
type HistoryView struct {
	NationalID  string    `json:"national_id"`
	FullName    string    `json:"full_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	BloodGroup  *string   `json:"blood_group,omitempty"`
	TotalVisits int       `json:"total_visits"`
	Visits      []*Visit  `json:"visits"`
}

// FetchHistory returns the aggregate for a national ID with visits in
// most-recent-first order. Unlike the per-facility plane this read is not
// facility-scoped; holding a valid national ID is the trust boundary here.
func (s *Service) FetchHistory(ctx context.Context, nationalID string) (*HistoryView, error) {
	if nationalID == "" {
		return nil, apperr.Validation("national_id is required", "national_id")
	}

	patient, err := s.repo.GetByNationalID(ctx, nationalID)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperr.NotFound("patient not found")
		}
		return nil, apperr.Internal(err)
	}

	visits, err := s.repo.ListVisits(ctx, patient.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &HistoryView{
		NationalID:  patient.NationalID,
		FullName:    patient.FullName(),
		DateOfBirth: patient.DateOfBirth,
		Gender:      patient.Gender,
		BloodGroup:  patient.BloodGroup,
		TotalVisits: len(visits),
		Visits:      visits,
	}, nil
}
