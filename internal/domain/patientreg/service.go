package patientreg

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnet/mediconnet/internal/platform/apperr"
	"github.com/mediconnet/mediconnet/internal/platform/db"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type RegisterInput struct {
	NationalID    string  `json:"national_id"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	DateOfBirth   string  `json:"date_of_birth"` // YYYY-MM-DD
	Gender        string  `json:"gender"`
	BloodGroup    *string `json:"blood_group,omitempty"`
	ContactNumber *string `json:"contact_number,omitempty"`
	Address       *string `json:"address,omitempty"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Patient, error) {
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
	dob, err := time.Parse("2006-01-02", in.DateOfBirth)
	if err != nil {
		return nil, apperr.Validation("date_of_birth must be YYYY-MM-DD", "date_of_birth")
	}

	p := &Patient{
		NationalID:    in.NationalID,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		DateOfBirth:   dob,
		Gender:        in.Gender,
		BloodGroup:    in.BloodGroup,
		ContactNumber: in.ContactNumber,
		Address:       in.Address,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if db.UniqueViolation(err, "uq_patient_national_id") {
			return nil, apperr.Validation("a patient with this national ID is already registered", "national_id")
		}
		return nil, apperr.Internal(err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperr.NotFound("patient not found")
		}
		return nil, apperr.Internal(err)
	}
	return p, nil
}
