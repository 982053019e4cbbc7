package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediconnet/mediconnet/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) GetByNationalID(ctx context.Context, nationalID string) (*Patient, error) {
	p := &Patient{}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, national_id, first_name, last_name, date_of_birth, gender,
			blood_group, created_at, updated_at
		FROM central_patient WHERE national_id = $1`, nationalID,
	).Scan(&p.ID, &p.NationalID, &p.FirstName, &p.LastName, &p.DateOfBirth,
		&p.Gender, &p.BloodGroup, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get central patient: %w", err)
	}
	return p, nil
}

func (r *repoPG) CreateWithVisit(ctx context.Context, p *Patient, v *Visit) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO central_patient (id, national_id, first_name, last_name, date_of_birth, gender, blood_group)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.NationalID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.BloodGroup,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		// 23505 on national_id flows back unwrapped by kind so the service
		// can retry as an append.
		return err
	}

	v.PatientID = p.ID
	return r.AppendVisit(ctx, v)
}

func (r *repoPG) AppendVisit(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()

	notes, err := json.Marshal(v.DoctorNotes)
	if err != nil {
		return fmt.Errorf("marshal doctor notes: %w", err)
	}
	labs, err := json.Marshal(v.LabResults)
	if err != nil {
		return fmt.Errorf("marshal lab results: %w", err)
	}
	meds, err := json.Marshal(v.Prescriptions)
	if err != nil {
		return fmt.Errorf("marshal prescription snapshots: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO central_visit (id, patient_id, facility_id, doctor_notes, lab_results, prescriptions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		v.ID, v.PatientID, v.FacilityID, notes, labs, meds,
	).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("append visit: %w", err)
	}
	return nil
}

func (r *repoPG) SetBloodGroup(ctx context.Context, patientID uuid.UUID, bloodGroup string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE central_patient SET blood_group = $2, updated_at = NOW() WHERE id = $1`,
		patientID, bloodGroup,
	)
	if err != nil {
		return fmt.Errorf("set blood group: %w", err)
	}
	return nil
}

func (r *repoPG) ListVisits(ctx context.Context, patientID uuid.UUID) ([]*Visit, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, facility_id, doctor_notes, lab_results, prescriptions, created_at
		FROM central_visit
		WHERE patient_id = $1
		ORDER BY created_at DESC, id DESC`, patientID,
	)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		v := &Visit{}
		var notes, labs, meds []byte
		if err := rows.Scan(&v.ID, &v.PatientID, &v.FacilityID, &notes, &labs, &meds, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		if err := json.Unmarshal(notes, &v.DoctorNotes); err != nil {
			return nil, fmt.Errorf("unmarshal doctor notes: %w", err)
		}
		if len(labs) > 0 {
			if err := json.Unmarshal(labs, &v.LabResults); err != nil {
				return nil, fmt.Errorf("unmarshal lab results: %w", err)
			}
		}
		if len(meds) > 0 {
			if err := json.Unmarshal(meds, &v.Prescriptions); err != nil {
				return nil, fmt.Errorf("unmarshal prescription snapshots: %w", err)
			}
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visits: %w", err)
	}
	return visits, nil
}
