package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnet/mediconnet/internal/domain/encounter"
	"github.com/mediconnet/mediconnet/internal/platform/apperr"
)

type mockRepo struct {
	labs    []*LabRequest
	scripts []*Prescription
}

func (m *mockRepo) CreateLabRequest(_ context.Context, lr *LabRequest) error {
	lr.ID = uuid.New()
	lr.CreatedAt = time.Now()
	lr.UpdatedAt = lr.CreatedAt
	cp := *lr
	m.labs = append(m.labs, &cp)
	return nil
}

func (m *mockRepo) ListLabRequestsByRecord(_ context.Context, recordID uuid.UUID) ([]*LabRequest, error) {
	var out []*LabRequest
	for _, lr := range m.labs {
		if lr.RecordID == recordID {
			out = append(out, lr)
		}
	}
	return out, nil
}

func (m *mockRepo) ListLabRequestsByPatient(_ context.Context, patientID uuid.UUID) ([]*LabRequest, error) {
	var out []*LabRequest
	for _, lr := range m.labs {
		if lr.PatientID == patientID {
			out = append(out, lr)
		}
	}
	return out, nil
}

func (m *mockRepo) CreatePrescription(_ context.Context, p *Prescription) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.scripts = append(m.scripts, &cp)
	return nil
}

func (m *mockRepo) ListPrescriptionsByRecord(_ context.Context, recordID uuid.UUID) ([]*Prescription, error) {
	var out []*Prescription
	for _, p := range m.scripts {
		if p.RecordID == recordID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) ListPrescriptionsByPatient(_ context.Context, patientID uuid.UUID) ([]*Prescription, error) {
	var out []*Prescription
	for _, p := range m.scripts {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockGate struct {
	rec             *encounter.Record
	attachedLabs    []uuid.UUID
	attachedScripts []uuid.UUID
}

func (g *mockGate) owns(recordID, doctorID uuid.UUID) bool {
	return g.rec != nil && g.rec.ID == recordID &&
		g.rec.DoctorID != nil && *g.rec.DoctorID == doctorID
}

func (g *mockGate) RequireInTreatment(_ context.Context, recordID, doctorID uuid.UUID) (*encounter.Record, error) {
	if !g.owns(recordID, doctorID) || g.rec.Status != encounter.StatusInTreatment {
		return nil, apperr.Forbidden("record not found or not in treatment status")
	}
	return g.rec, nil
}

func (g *mockGate) GetRecord(_ context.Context, recordID, doctorID uuid.UUID) (*encounter.Record, error) {
	if !g.owns(recordID, doctorID) {
		return nil, apperr.NotFound("record not found")
	}
	return g.rec, nil
}

func (g *mockGate) AttachLabRequest(_ context.Context, _, labRequestID uuid.UUID) error {
	g.attachedLabs = append(g.attachedLabs, labRequestID)
	return nil
}

func (g *mockGate) AttachPrescription(_ context.Context, _, prescriptionID uuid.UUID) error {
	g.attachedScripts = append(g.attachedScripts, prescriptionID)
	return nil
}

func newTestService(status encounter.Status) (*Service, *mockRepo, *mockGate, uuid.UUID, uuid.UUID) {
	doctorID := uuid.New()
	rec := &encounter.Record{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  &doctorID,
		Status:    status,
	}
	repo := &mockRepo{}
	gate := &mockGate{rec: rec}
	return NewService(repo, gate, nil), repo, gate, rec.ID, doctorID
}

func TestCreateLabRequest(t *testing.T) {
	svc, repo, gate, recordID, doctorID := newTestService(encounter.StatusInTreatment)

	lr, err := svc.CreateLabRequest(context.Background(), recordID, doctorID, LabRequestInput{
		TestType: "CBC",
	})
	if err != nil {
		t.Fatalf("CreateLabRequest: %v", err)
	}
	if lr.Status != LabStatusPending {
		t.Errorf("status = %s, want Pending", lr.Status)
	}
	if lr.Urgency != UrgencyNormal {
		t.Errorf("urgency = %s, want Normal", lr.Urgency)
	}
	if lr.PatientID != gate.rec.PatientID {
		t.Error("patient not stamped from record")
	}
	if len(repo.labs) != 1 {
		t.Fatalf("stored labs = %d, want 1", len(repo.labs))
	}
	if len(gate.attachedLabs) != 1 || gate.attachedLabs[0] != lr.ID {
		t.Error("lab request not linked back to record")
	}
}

func TestCreateLabRequestValidation(t *testing.T) {
	svc, _, _, recordID, doctorID := newTestService(encounter.StatusInTreatment)
	ctx := context.Background()

	if _, err := svc.CreateLabRequest(ctx, recordID, doctorID, LabRequestInput{}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("missing test type: kind = %v, want validation", apperr.KindOf(err))
	}
	in := LabRequestInput{TestType: "CBC", Urgency: "Whenever"}
	if _, err := svc.CreateLabRequest(ctx, recordID, doctorID, in); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("bad urgency: kind = %v, want validation", apperr.KindOf(err))
	}
}

func TestCreateLabRequestDeniedOutsideTreatment(t *testing.T) {
	svc, repo, _, recordID, doctorID := newTestService(encounter.StatusAssigned)
	ctx := context.Background()
	in := LabRequestInput{TestType: "CBC"}

	_, errStatus := svc.CreateLabRequest(ctx, recordID, doctorID, in)
	_, errOther := svc.CreateLabRequest(ctx, recordID, uuid.New(), in)
	_, errMissing := svc.CreateLabRequest(ctx, uuid.New(), doctorID, in)

	for name, err := range map[string]error{"wrong status": errStatus, "other doctor": errOther, "missing record": errMissing} {
		if apperr.KindOf(err) != apperr.KindForbidden {
			t.Errorf("%s: kind = %v, want forbidden", name, apperr.KindOf(err))
		}
	}
	if errStatus.Error() != errOther.Error() || errOther.Error() != errMissing.Error() {
		t.Error("denial messages differ between causes")
	}
	if len(repo.labs) != 0 {
		t.Error("lab request persisted despite denial")
	}
}

func TestCreatePrescriptionDropsInvalidLines(t *testing.T) {
	svc, _, gate, recordID, doctorID := newTestService(encounter.StatusInTreatment)

	p, err := svc.CreatePrescription(context.Background(), recordID, doctorID, PrescriptionInput{
		MedicineList: []MedicineLine{
			{Name: "Amoxicillin", Dosage: "500mg", Frequency: "3x daily", Duration: "7 days"},
			{Name: "Paracetamol", Dosage: "1g"},
			{Name: "Ibuprofen", Dosage: "400mg", Frequency: "2x daily", Duration: "5 days"},
			{Dosage: "10ml", Frequency: "nightly", Duration: "3 days"},
		},
	})
	if err != nil {
		t.Fatalf("CreatePrescription: %v", err)
	}
	if len(p.Medicines) != 2 {
		t.Fatalf("accepted lines = %d, want 2", len(p.Medicines))
	}
	if p.Medicines[0].Name != "Amoxicillin" || p.Medicines[1].Name != "Ibuprofen" {
		t.Error("wrong lines survived filtering")
	}
	if p.IsFilled {
		t.Error("new prescription must not be filled")
	}
	if len(gate.attachedScripts) != 1 || gate.attachedScripts[0] != p.ID {
		t.Error("prescription not linked back to record")
	}
}

func TestCreatePrescriptionRejectsWhenNoValidLine(t *testing.T) {
	svc, repo, _, recordID, doctorID := newTestService(encounter.StatusInTreatment)

	_, err := svc.CreatePrescription(context.Background(), recordID, doctorID, PrescriptionInput{
		MedicineList: []MedicineLine{{Name: "Paracetamol"}, {Dosage: "1g"}},
	})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want validation", apperr.KindOf(err))
	}
	if len(repo.scripts) != 0 {
		t.Error("prescription persisted despite rejection")
	}
}

func TestCreatePrescriptionDeniedOutsideTreatment(t *testing.T) {
	svc, _, _, recordID, doctorID := newTestService(encounter.StatusCompleted)
	_, err := svc.CreatePrescription(context.Background(), recordID, doctorID, PrescriptionInput{
		MedicineList: []MedicineLine{{Name: "A", Dosage: "B", Frequency: "C", Duration: "D"}},
	})
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("kind = %v, want forbidden", apperr.KindOf(err))
	}
}

func TestListGatedByAssignment(t *testing.T) {
	svc, _, _, recordID, doctorID := newTestService(encounter.StatusInTreatment)
	ctx := context.Background()

	if _, err := svc.CreateLabRequest(ctx, recordID, doctorID, LabRequestInput{TestType: "CBC"}); err != nil {
		t.Fatalf("CreateLabRequest: %v", err)
	}

	labs, err := svc.ListLabRequests(ctx, recordID, doctorID)
	if err != nil {
		t.Fatalf("ListLabRequests: %v", err)
	}
	if len(labs) != 1 {
		t.Errorf("labs = %d, want 1", len(labs))
	}

	if _, err := svc.ListLabRequests(ctx, recordID, uuid.New()); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("other doctor: kind = %v, want not found", apperr.KindOf(err))
	}
}

func TestListSurvivesCompletion(t *testing.T) {
	svc, repo, gate, recordID, doctorID := newTestService(encounter.StatusInTreatment)
	ctx := context.Background()

	if _, err := svc.CreateLabRequest(ctx, recordID, doctorID, LabRequestInput{TestType: "Blood film"}); err != nil {
		t.Fatalf("CreateLabRequest: %v", err)
	}
	gate.rec.Status = encounter.StatusCompleted

	labs, err := svc.ListLabRequests(ctx, recordID, doctorID)
	if err != nil {
		t.Fatalf("ListLabRequests after completion: %v", err)
	}
	if len(labs) != len(repo.labs) {
		t.Errorf("labs = %d, want %d", len(labs), len(repo.labs))
	}
}
