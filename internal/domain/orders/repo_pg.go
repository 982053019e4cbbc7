package orders

import (
	"context"
	"encoding/json"
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

const labCols = `id, record_id, patient_id, doctor_id, test_type, urgency, status, instructions, created_at, updated_at`

func (r *repoPG) CreateLabRequest(ctx context.Context, lr *LabRequest) error {
	lr.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_request (id, record_id, patient_id, doctor_id, test_type, urgency, status, instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		lr.ID, lr.RecordID, lr.PatientID, lr.DoctorID, lr.TestType, lr.Urgency, lr.Status, lr.Instructions,
	).Scan(&lr.CreatedAt, &lr.UpdatedAt)
}

func (r *repoPG) ListLabRequestsByRecord(ctx context.Context, recordID uuid.UUID) ([]*LabRequest, error) {
	return r.listLabRequests(ctx, `record_id`, recordID)
}

func (r *repoPG) ListLabRequestsByPatient(ctx context.Context, patientID uuid.UUID) ([]*LabRequest, error) {
	return r.listLabRequests(ctx, `patient_id`, patientID)
}

func (r *repoPG) listLabRequests(ctx context.Context, col string, id uuid.UUID) ([]*LabRequest, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+labCols+` FROM lab_request WHERE `+col+` = $1 ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("list lab requests: %w", err)
	}
	defer rows.Close()

	var out []*LabRequest
	for rows.Next() {
		lr := &LabRequest{}
		if err := rows.Scan(
			&lr.ID, &lr.RecordID, &lr.PatientID, &lr.DoctorID,
			&lr.TestType, &lr.Urgency, &lr.Status, &lr.Instructions,
			&lr.CreatedAt, &lr.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lab request: %w", err)
		}
		out = append(out, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lab requests: %w", err)
	}
	return out, nil
}

func (r *repoPG) CreatePrescription(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	medicines, err := json.Marshal(p.Medicines)
	if err != nil {
		return fmt.Errorf("marshal medicines: %w", err)
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription (id, record_id, patient_id, doctor_id, medicines, instructions, is_filled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.RecordID, p.PatientID, p.DoctorID, medicines, p.Instructions, p.IsFilled,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) ListPrescriptionsByRecord(ctx context.Context, recordID uuid.UUID) ([]*Prescription, error) {
	return r.listPrescriptions(ctx, `record_id`, recordID)
}

func (r *repoPG) ListPrescriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error) {
	return r.listPrescriptions(ctx, `patient_id`, patientID)
}

func (r *repoPG) listPrescriptions(ctx context.Context, col string, id uuid.UUID) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, record_id, patient_id, doctor_id, medicines, instructions, is_filled, created_at, updated_at
		FROM prescription WHERE `+col+` = $1 ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	var out []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prescriptions: %w", err)
	}
	return out, nil
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	p := &Prescription{}
	var medicines []byte
	err := row.Scan(
		&p.ID, &p.RecordID, &p.PatientID, &p.DoctorID,
		&medicines, &p.Instructions, &p.IsFilled,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan prescription: %w", err)
	}
	if err := json.Unmarshal(medicines, &p.Medicines); err != nil {
		return nil, fmt.Errorf("unmarshal medicines: %w", err)
	}
	return p, nil
}
