package history

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mediconnet/mediconnet/internal/platform/apperr"
)

// -- Mock Repository --

type mockRepo struct {
	patients map[string]*Patient // national ID -> aggregate
	visits   map[uuid.UUID][]*Visit
	seq      int

	// createConflict simulates a concurrent creator winning the race: the
	// first CreateWithVisit call fails with a unique violation after
	// inserting the competing aggregate.
	createConflict bool

	// appendErr makes visit inserts fail, leaving any patient row the
	// current call already wrote dangling unless a transaction removes it.
	appendErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients: make(map[string]*Patient),
		visits:   make(map[uuid.UUID][]*Visit),
	}
}

func (m *mockRepo) GetByNationalID(_ context.Context, nationalID string) (*Patient, error) {
	p, ok := m.patients[nationalID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) CreateWithVisit(ctx context.Context, p *Patient, v *Visit) error {
	if m.createConflict {
		m.createConflict = false
		competitor := &Patient{
			ID:          uuid.New(),
			NationalID:  p.NationalID,
			FirstName:   "Concurrent",
			LastName:    "Creator",
			DateOfBirth: p.DateOfBirth,
			Gender:      p.Gender,
		}
		m.patients[p.NationalID] = competitor
		return &pgconn.PgError{Code: "23505", ConstraintName: "central_patient_national_id_key"}
	}
	if _, exists := m.patients[p.NationalID]; exists {
		return &pgconn.PgError{Code: "23505", ConstraintName: "central_patient_national_id_key"}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.patients[p.NationalID] = p
	v.PatientID = p.ID
	return m.AppendVisit(ctx, v)
}

func (m *mockRepo) AppendVisit(_ context.Context, v *Visit) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	v.ID = uuid.New()
	m.seq++
	v.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Second)
	m.visits[v.PatientID] = append(m.visits[v.PatientID], v)
	return nil
}

func (m *mockRepo) SetBloodGroup(_ context.Context, patientID uuid.UUID, bloodGroup string) error {
	for _, p := range m.patients {
		if p.ID == patientID {
			bg := bloodGroup
			p.BloodGroup = &bg
			return nil
		}
	}
	return errors.New("patient not found")
}

func (m *mockRepo) ListVisits(_ context.Context, patientID uuid.UUID) ([]*Visit, error) {
	visits := append([]*Visit(nil), m.visits[patientID]...)
	sort.Slice(visits, func(i, j int) bool {
		return visits[i].CreatedAt.After(visits[j].CreatedAt)
	})
	return visits, nil
}

// -- Helpers --

func submission(nationalID string) SubmitInput {
	return SubmitInput{
		NationalID:  nationalID,
		FirstName:   "Abebe",
		LastName:    "Kebede",
		DateOfBirth: "1990-01-01",
		Gender:      "Male",
		Record: VisitInput{
			DoctorNotes: &DoctorNotes{Diagnosis: "Flu"},
		},
	}
}

// -- Tests --

func TestSubmitVisit_CreatesAggregateOnFirstWrite(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	result, err := svc.SubmitVisit(context.Background(), uuid.New(), submission("ET-001"))
	if err != nil {
		t.Fatalf("SubmitVisit: %v", err)
	}
	if !result.Created {
		t.Error("first submission should report created")
	}
	if result.VisitCount != 1 {
		t.Errorf("visit count = %d, want 1", result.VisitCount)
	}
	if result.Patient.NationalID != "ET-001" {
		t.Errorf("national id = %q", result.Patient.NationalID)
	}
}

func TestSubmitVisit_SecondWriteAppends(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	facility := uuid.New()

	first, err := svc.SubmitVisit(context.Background(), facility, submission("ET-001"))
	if err != nil {
		t.Fatal(err)
	}

	second := submission("ET-001")
	second.BloodGroup = "O+"
	result, err := svc.SubmitVisit(context.Background(), facility, second)
	if err != nil {
		t.Fatalf("second SubmitVisit: %v", err)
	}
	if result.Created {
		t.Error("second submission should report updated, not created")
	}
	if result.VisitCount != 2 {
		t.Errorf("visit count = %d, want 2", result.VisitCount)
	}
	if result.Patient.ID != first.Patient.ID {
		t.Error("second submission must target the same aggregate")
	}
	if result.Patient.BloodGroup == nil || *result.Patient.BloodGroup != "O+" {
		t.Errorf("blood group = %v, want O+", result.Patient.BloodGroup)
	}

	// The first visit is untouched.
	visits, _ := repo.ListVisits(context.Background(), first.Patient.ID)
	if len(visits) != 2 {
		t.Fatalf("stored visits = %d, want 2", len(visits))
	}
	if visits[len(visits)-1].DoctorNotes.Diagnosis != "Flu" {
		t.Error("first visit entry was modified by the second submission")
	}
}

func TestSubmitVisit_StampsFacility(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	facility := uuid.New()

	result, err := svc.SubmitVisit(context.Background(), facility, submission("ET-002"))
	if err != nil {
		t.Fatal(err)
	}
	visits, _ := repo.ListVisits(context.Background(), result.Patient.ID)
	if visits[0].FacilityID != facility {
		t.Errorf("facility stamp = %s, want %s", visits[0].FacilityID, facility)
	}
}

func TestSubmitVisit_MissingDemographics(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	in := submission("ET-003")
	in.FirstName = ""
	in.Gender = ""
	_, err := svc.SubmitVisit(context.Background(), uuid.New(), in)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	var e *apperr.Error
	errors.As(err, &e)
	if len(e.Fields) != 2 {
		t.Errorf("fields = %v, want first_name and gender", e.Fields)
	}
}

func TestSubmitVisit_MissingDoctorNotes(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	in := submission("ET-004")
	in.Record.DoctorNotes = nil
	_, err := svc.SubmitVisit(context.Background(), uuid.New(), in)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitVisit_InvalidEnums(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	in := submission("ET-005")
	in.Gender = "unknown"
	if _, err := svc.SubmitVisit(context.Background(), uuid.New(), in); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("invalid gender should fail validation, got %v", err)
	}

	in = submission("ET-005")
	in.BloodGroup = "Z+"
	if _, err := svc.SubmitVisit(context.Background(), uuid.New(), in); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("invalid blood group should fail validation, got %v", err)
	}
}

func TestSubmitVisit_ConcurrentCreateRetriesAsAppend(t *testing.T) {
	repo := newMockRepo()
	repo.createConflict = true
	svc := NewService(repo, nil)

	result, err := svc.SubmitVisit(context.Background(), uuid.New(), submission("ET-006"))
	if err != nil {
		t.Fatalf("SubmitVisit should recover from the unique violation: %v", err)
	}
	if result.Created {
		t.Error("losing the creation race should report updated")
	}
	if result.VisitCount != 1 {
		t.Errorf("visit count = %d, want 1 (appended to the winner)", result.VisitCount)
	}
	if len(repo.patients) != 1 {
		t.Errorf("aggregates = %d, want exactly one per national ID", len(repo.patients))
	}
}

// rollbackTx gives the in-memory repo transactional behavior: when fn fails,
// every write it made is undone.
func rollbackTx(repo *mockRepo) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		patients := make(map[string]*Patient, len(repo.patients))
		for k, v := range repo.patients {
			patients[k] = v
		}
		visits := make(map[uuid.UUID][]*Visit, len(repo.visits))
		for k, v := range repo.visits {
			visits[k] = append([]*Visit(nil), v...)
		}
		if err := fn(ctx); err != nil {
			repo.patients = patients
			repo.visits = visits
			return err
		}
		return nil
	}
}

func TestSubmitVisit_FailedFirstVisitLeavesNoAggregate(t *testing.T) {
	repo := newMockRepo()
	repo.appendErr = errors.New("visit insert failed")
	svc := NewService(repo, rollbackTx(repo))

	_, err := svc.SubmitVisit(context.Background(), uuid.New(), submission("ET-010"))
	if apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
	if _, err := repo.GetByNationalID(context.Background(), "ET-010"); err != ErrNotFound {
		t.Fatal("a failed first submission must not leave an aggregate with zero visits")
	}

	// The retry after the storage fault recovers is a clean first write.
	repo.appendErr = nil
	result, err := svc.SubmitVisit(context.Background(), uuid.New(), submission("ET-010"))
	if err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	if !result.Created {
		t.Error("retry should report created, not updated")
	}
	if result.VisitCount != 1 {
		t.Errorf("visit count = %d, want 1", result.VisitCount)
	}
}

func TestSubmitVisit_ResubmissionAppendsDuplicate(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	facility := uuid.New()

	if _, err := svc.SubmitVisit(context.Background(), facility, submission("ET-007")); err != nil {
		t.Fatal(err)
	}
	result, err := svc.SubmitVisit(context.Background(), facility, submission("ET-007"))
	if err != nil {
		t.Fatal(err)
	}
	if result.VisitCount != 2 {
		t.Errorf("visit count = %d; retries append, the aggregator does not deduplicate", result.VisitCount)
	}
}

func TestFetchHistory_NotFound(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	_, err := svc.FetchHistory(context.Background(), "ET-404")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFetchHistory_MostRecentFirst(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	facility := uuid.New()

	diagnoses := []string{"Flu", "Malaria", "Typhoid"}
	for _, d := range diagnoses {
		in := submission("ET-008")
		in.Record.DoctorNotes = &DoctorNotes{Diagnosis: d}
		if _, err := svc.SubmitVisit(context.Background(), facility, in); err != nil {
			t.Fatal(err)
		}
	}

	view, err := svc.FetchHistory(context.Background(), "ET-008")
	if err != nil {
		t.Fatal(err)
	}
	if view.TotalVisits != 3 {
		t.Fatalf("total visits = %d, want 3", view.TotalVisits)
	}
	want := []string{"Typhoid", "Malaria", "Flu"}
	for i, v := range view.Visits {
		if v.DoctorNotes.Diagnosis != want[i] {
			t.Errorf("visit[%d] = %q, want %q (most recent first)", i, v.DoctorNotes.Diagnosis, want[i])
		}
	}
}

func TestFetchHistory_FullNameAndDemographics(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	if _, err := svc.SubmitVisit(context.Background(), uuid.New(), submission("ET-009")); err != nil {
		t.Fatal(err)
	}
	view, err := svc.FetchHistory(context.Background(), "ET-009")
	if err != nil {
		t.Fatal(err)
	}
	if view.FullName != "Abebe Kebede" {
		t.Errorf("full name = %q", view.FullName)
	}
	if view.Gender != "Male" {
		t.Errorf("gender = %q", view.Gender)
	}
}
