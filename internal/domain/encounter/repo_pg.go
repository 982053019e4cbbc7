package encounter

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

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

const recordCols = `r.id, r.patient_id, r.doctor_id, r.status,
	r.triage_vitals, r.triage_chief_complaint, r.triage_urgency, r.triage_staff_id, r.triage_completed_at,
	r.diagnosis, r.treatment_plan, r.created_at, r.updated_at,
	COALESCE((SELECT array_agg(rl.lab_request_id ORDER BY rl.added_at) FROM record_lab_request rl WHERE rl.record_id = r.id), '{}'),
	COALESCE((SELECT array_agg(rp.prescription_id ORDER BY rp.added_at) FROM record_prescription rp WHERE rp.record_id = r.id), '{}')`

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	rec.Status = StatusPending
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_record (id, patient_id, status)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.Status,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_record r WHERE r.id = $1`, id))
}

func (r *repoPG) GetForDoctor(ctx context.Context, id, doctorID uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_record r WHERE r.id = $1 AND r.doctor_id = $2`,
		id, doctorID))
}

func scanRecord(row pgx.Row) (*Record, error) {
	rec := &Record{}
	var (
		vitals         []byte
		chiefComplaint *string
		urgency        *string
		staffID        *uuid.UUID
		triage         Triage
	)
	err := row.Scan(
		&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.Status,
		&vitals, &chiefComplaint, &urgency, &staffID, &triage.CompletedAt,
		&rec.Notes.Diagnosis, &rec.Notes.TreatmentPlan, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.LabRequestIDs, &rec.Notes.PrescriptionIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan medical record: %w", err)
	}

	if staffID != nil {
		triage.StaffID = *staffID
		if chiefComplaint != nil {
			triage.ChiefComplaint = *chiefComplaint
		}
		if urgency != nil {
			triage.Urgency = *urgency
		}
		if len(vitals) > 0 {
			if err := json.Unmarshal(vitals, &triage.Vitals); err != nil {
				return nil, fmt.Errorf("unmarshal vitals: %w", err)
			}
		}
		rec.Triage = &triage
	}
	return rec, nil
}

func (r *repoPG) SetTriage(ctx context.Context, id uuid.UUID, t *Triage, allowedFrom []Status) (bool, error) {
	vitals, err := json.Marshal(t.Vitals)
	if err != nil {
		return false, fmt.Errorf("marshal vitals: %w", err)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_record SET
			triage_vitals = $2, triage_chief_complaint = $3, triage_urgency = $4,
			triage_staff_id = $5, triage_completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = ANY($6)`,
		id, vitals, t.ChiefComplaint, t.Urgency, t.StaffID, statusStrings(allowedFrom),
	)
	if err != nil {
		return false, fmt.Errorf("set triage: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) AssignDoctor(ctx context.Context, id, doctorID uuid.UUID, from, to Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_record SET doctor_id = $2, status = $4, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		id, doctorID, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("assign doctor: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) AdvanceForDoctor(ctx context.Context, id, doctorID uuid.UUID, from, to Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_record SET status = $4, updated_at = NOW()
		WHERE id = $1 AND doctor_id = $2 AND status = $3`,
		id, doctorID, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("advance record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) CompleteForDoctor(ctx context.Context, id, doctorID uuid.UUID, from, to Status, diagnosis, treatmentPlan string, vitals *Vitals) (bool, error) {
	var vitalsJSON []byte
	if vitals != nil {
		var err error
		vitalsJSON, err = json.Marshal(vitals)
		if err != nil {
			return false, fmt.Errorf("marshal vitals: %w", err)
		}
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_record SET
			status = $4, diagnosis = $5, treatment_plan = $6,
			triage_vitals = COALESCE($7, triage_vitals), updated_at = NOW()
		WHERE id = $1 AND doctor_id = $2 AND status = $3`,
		id, doctorID, from, to, diagnosis, treatmentPlan, vitalsJSON,
	)
	if err != nil {
		return false, fmt.Errorf("complete record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ListForDoctor(ctx context.Context, doctorID uuid.UUID, statuses []Status, search string, limit, offset int) ([]*AssignedPatient, int, error) {
	where := `r.doctor_id = $1 AND r.status = ANY($2)`
	args := []interface{}{doctorID, statusStrings(statuses)}
	if search != "" {
		where += ` AND (p.national_id ILIKE $3 OR p.first_name ILIKE $3 OR p.last_name ILIKE $3)`
		args = append(args, "%"+search+"%")
	}

	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM medical_record r
		JOIN patient p ON p.id = r.patient_id
		WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count assigned patients: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT r.id, r.status,
			p.id, p.national_id, p.first_name, p.last_name, p.gender, p.date_of_birth, p.blood_group
		FROM medical_record r
		JOIN patient p ON p.id = r.patient_id
		WHERE %s
		ORDER BY r.created_at DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list assigned patients: %w", err)
	}
	defer rows.Close()

	var result []*AssignedPatient
	for rows.Next() {
		ap := &AssignedPatient{}
		if err := rows.Scan(
			&ap.RecordID, &ap.Status,
			&ap.Patient.ID, &ap.Patient.NationalID, &ap.Patient.FirstName, &ap.Patient.LastName,
			&ap.Patient.Gender, &ap.Patient.DateOfBirth, &ap.Patient.BloodGroup,
		); err != nil {
			return nil, 0, fmt.Errorf("scan assigned patient: %w", err)
		}
		result = append(result, ap)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate assigned patients: %w", err)
	}
	return result, total, nil
}

func (r *repoPG) ExistsForDoctorAndPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM medical_record WHERE doctor_id = $1 AND patient_id = $2
		)`, doctorID, patientID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check doctor-patient link: %w", err)
	}
	return exists, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM medical_record r WHERE r.patient_id = $1 ORDER BY r.created_at DESC`,
		patientID,
	)
	if err != nil {
		return nil, fmt.Errorf("list records by patient: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (r *repoPG) AddLabRequestRef(ctx context.Context, recordID, labRequestID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO record_lab_request (record_id, lab_request_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		recordID, labRequestID,
	)
	if err != nil {
		return fmt.Errorf("add lab request ref: %w", err)
	}
	return nil
}

func (r *repoPG) AddPrescriptionRef(ctx context.Context, recordID, prescriptionID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO record_prescription (record_id, prescription_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		recordID, prescriptionID,
	)
	if err != nil {
		return fmt.Errorf("add prescription ref: %w", err)
	}
	return nil
}
