package custody

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careledger/careledger/internal/domain/activity"
	"github.com/careledger/careledger/internal/domain/identity"
	"github.com/careledger/careledger/internal/platform/errs"
	"github.com/careledger/careledger/pkg/principal"
)

type memRepo struct {
	cases      map[int64]*Case
	records    map[int64]*Record
	reports    map[int64][]*Report
	nextCase   int64
	nextRecord int64
	nextReport int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		cases:      make(map[int64]*Case),
		records:    make(map[int64]*Record),
		reports:    make(map[int64][]*Report),
		nextCase:   1,
		nextRecord: 1,
		nextReport: 1,
	}
}

func (m *memRepo) CreateCase(_ context.Context, c *Case) error {
	c.ID = m.nextCase
	m.nextCase++
	c.CreatedAt = time.Now()
	cp := *c
	m.cases[c.ID] = &cp
	return nil
}

func (m *memRepo) GetCase(_ context.Context, id int64) (*Case, error) {
	c, ok := m.cases[id]
	if !ok {
		return nil, errs.NotFound("case %d", id)
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) ListCasesByPatient(_ context.Context, patient principal.Principal) ([]*Case, error) {
	var out []*Case
	for id := int64(1); id < m.nextCase; id++ {
		if c, ok := m.cases[id]; ok && c.Patient == patient {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) ListCaseIDsByPatient(ctx context.Context, patient principal.Principal) ([]int64, error) {
	cases, _ := m.ListCasesByPatient(ctx, patient)
	var ids []int64
	for _, c := range cases {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (m *memRepo) ListCaseIDsByDoctor(_ context.Context, doctor principal.Principal) ([]int64, error) {
	var ids []int64
	for id := int64(1); id < m.nextCase; id++ {
		if c, ok := m.cases[id]; ok && c.CreatedBy == doctor {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memRepo) SetClosed(_ context.Context, id int64) error {
	c, ok := m.cases[id]
	if !ok || !c.IsOngoing {
		return errs.InvalidState("case %d is not ongoing", id)
	}
	now := time.Now()
	c.IsOngoing = false
	c.ClosedAt = &now
	return nil
}

func (m *memRepo) CreateRecord(_ context.Context, r *Record) error {
	r.ID = m.nextRecord
	m.nextRecord++
	r.CreatedAt = time.Now()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *memRepo) GetRecord(_ context.Context, id int64) (*Record, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, errs.NotFound("record %d", id)
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) ListRecordsByCase(_ context.Context, caseID int64) ([]*Record, error) {
	var out []*Record
	for id := int64(1); id < m.nextRecord; id++ {
		if r, ok := m.records[id]; ok && r.CaseID == caseID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) HasRecordByDoctorForPatient(_ context.Context, doctor, patient principal.Principal) (bool, error) {
	for _, r := range m.records {
		if r.Doctor != doctor {
			continue
		}
		if c, ok := m.cases[r.CaseID]; ok && c.Patient == patient {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) AppendReport(_ context.Context, r *Report) error {
	r.ID = m.nextReport
	m.nextReport++
	r.AddedAt = time.Now()
	cp := *r
	m.reports[r.CaseID] = append(m.reports[r.CaseID], &cp)
	return nil
}

func (m *memRepo) ListReportsByCase(_ context.Context, caseID int64) ([]*Report, error) {
	return m.reports[caseID], nil
}

type roleMap map[principal.Principal]identity.Role

func (r roleMap) GetRole(_ context.Context, p principal.Principal) (identity.Role, error) {
	role, ok := r[p]
	if !ok {
		return identity.RoleUnset, nil
	}
	return role, nil
}

type activityRecorder struct {
	entries []activity.NewEntry
}

func (r *activityRecorder) Append(_ context.Context, req activity.NewEntry) (*activity.Entry, error) {
	r.entries = append(r.entries, req)
	return &activity.Entry{ID: int64(len(r.entries)), Type: req.Type, Actor: req.Actor, IsVisible: true}, nil
}

func (r *activityRecorder) types() []activity.Type {
	var out []activity.Type
	for _, e := range r.entries {
		out = append(out, e.Type)
	}
	return out
}

var (
	drMeena  = principal.MustParse("0xd0c70a0000000000000000000000000000000001")
	drIdowu  = principal.MustParse("0xd0c70a0000000000000000000000000000000002")
	patJonas = principal.MustParse("0xaa00000000000000000000000000000000000001")
	stranger = principal.MustParse("0xcc00000000000000000000000000000000000001")
)

func newTestService() (*Service, *memRepo, *activityRecorder) {
	repo := newMemRepo()
	rec := &activityRecorder{}
	roles := roleMap{
		drMeena:  identity.RoleDoctor,
		drIdowu:  identity.RoleDoctor,
		patJonas: identity.RolePatient,
	}
	return NewService(repo, roles, rec, nil, zerolog.Nop()), repo, rec
}

func TestCreateCase(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	c, err := svc.CreateCase(ctx, drMeena, patJonas, "seasonal flu")
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	if !c.IsOngoing || c.Patient != patJonas || c.CreatedBy != drMeena {
		t.Fatalf("unexpected case: %+v", c)
	}
	if got := rec.types(); len(got) != 1 || got[0] != activity.TypeCaseCreated {
		t.Fatalf("expected case_created activity, got %v", got)
	}
}

func TestCreateCaseAuthorization(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateCase(ctx, patJonas, patJonas, "self-service"); !errors.Is(err, errs.ErrAccessDenied) {
		t.Fatalf("patient creating a case: expected access denied, got %v", err)
	}
	if _, err := svc.CreateCase(ctx, stranger, patJonas, "anonymous"); !errors.Is(err, errs.ErrAccessDenied) {
		t.Fatalf("unregistered creator: expected access denied, got %v", err)
	}
	if _, err := svc.CreateCase(ctx, drMeena, stranger, "ghost patient"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("unregistered patient: expected invalid input, got %v", err)
	}
	if len(rec.entries) != 0 {
		t.Fatalf("denied operations must leave no activity, got %v", rec.types())
	}
}

func TestAddRecordToOngoingCase(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	c, _ := svc.CreateCase(ctx, drMeena, patJonas, "seasonal flu")
	r, err := svc.AddRecord(ctx, drMeena, c.ID, RecordInput{Symptoms: "fever, cough", Inference: "influenza A"})
	if err != nil {
		t.Fatalf("add record: %v", err)
	}
	if r.CaseID != c.ID || r.Doctor != drMeena {
		t.Fatalf("unexpected record: %+v", r)
	}
	got := rec.types()
	if len(got) != 2 || got[1] != activity.TypeRecordAdded {
		t.Fatalf("expected record_added activity, got %v", got)
	}
}

func TestAddRecordCarriesAllClinicalFields(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, _ := svc.CreateCase(ctx, drMeena, patJonas, "seasonal flu")
	in := RecordInput{
		Symptoms:     "fever, cough",
		Cause:        "viral infection",
		Inference:    "influenza A",
		Prescription: "rest, fluids",
		Advices:      "isolate for five days",
		Medications:  "oseltamivir 75mg",
	}
	r, err := svc.AddRecord(ctx, drMeena, c.ID, in)
	if err != nil {
		t.Fatalf("add record: %v", err)
	}

	got, err := svc.GetRecord(ctx, r.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.Symptoms != in.Symptoms || got.Cause != in.Cause || got.Inference != in.Inference ||
		got.Prescription != in.Prescription || got.Advices != in.Advices || got.Medications != in.Medications {
		t.Fatalf("clinical fields lost in round trip: %+v", got)
	}
}

func TestAddRecordRequiresClinicalContent(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	c, _ := svc.CreateCase(ctx, drMeena, patJonas, "seasonal flu")
	if _, err := svc.AddRecord(ctx, drMeena, c.ID, RecordInput{}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("empty record: expected invalid input, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Fatal("rejected record must not be stored")
	}
}

func TestAddRecordWithMedicationsMarksPrescription(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	c, _ := svc.CreateCase(ctx, drMeena, patJonas, "seasonal flu")
	if _, err := svc.AddRecord(ctx, drMeena, c.ID, RecordInput{Inference: "influenza A", Medications: "oseltamivir 75mg"}); err != nil {
		t.Fatalf("add record: %v", err)
	}
	got := rec.types()
	if len(got) != 3 || got[1] != activity.TypeRecordAdded || got[2] != activity.TypePrescriptionUpdated {
		t.Fatalf("expected record_added then prescription_updated, got %v", got)
	}

	// A prescription without medications marks the change as well.
	if _, err := svc.AddRecord(ctx, drMeena, c.ID, RecordInput{Prescription: "bed rest, fluids"}); err != nil {
		t.Fatalf("add record: %v", err)
	}
	got = rec.types()
	if got[len(got)-1] != activity.TypePrescriptionUpdated {
		t.Fatalf("expected prescription_updated, got %v", got)
	}

	// A purely observational record does not.
	if _, err := svc.AddRecord(ctx, drMeena, c.ID, RecordInput{Symptoms: "mild headache"}); err != nil {
		t.Fatalf("add record: %v", err)
	}
	got = rec.types()
	if got[len(got)-1] != activity.TypeRecordAdded {
		t.Fatalf("expected record_added last, got %v", got)
	}
}

func TestAddRecordClosedCase(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	c, _ := svc.CreateCase(ctx, drMeena, patJonas, "seasonal flu")
	if _, err := svc.CloseCase(ctx, drMeena, c.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := svc.AddRecord(ctx, drMeena, c.ID, RecordInput{Advices: "late addendum"})
	if !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("expected invalid state on closed case, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Fatal("rejected record must not be stored")
	}
}

func TestAddRecordUnknownCase(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.AddRecord(context.Background(), drMeena, 42, RecordInput{Advices: "n"})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddReport(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	c, _ := svc.CreateCase(ctx, drMeena, patJonas, "seasonal flu")

	// Both the treating doctor and the patient may attach reports.
	if _, err := svc.AddReport(ctx, drMeena, c.ID, "blob://labs/cbc-001"); err != nil {
		t.Fatalf("doctor report: %v", err)
	}
	if _, err := svc.AddReport(ctx, patJonas, c.ID, "blob://scans/xray-002"); err != nil {
		t.Fatalf("patient report: %v", err)
	}
	if _, err := svc.AddReport(ctx, stranger, c.ID, "blob://junk"); !errors.Is(err, errs.ErrAccessDenied) {
		t.Fatalf("unregistered uploader: expected access denied, got %v", err)
	}

	reports, _ := svc.ListReports(ctx, c.ID)
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	got := rec.types()
	if got[len(got)-1] != activity.TypeReportAdded {
		t.Fatalf("expected report_added activity, got %v", got)
	}
}

func TestCloseCaseIsOneWay(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	c, _ := svc.CreateCase(ctx, drMeena, patJonas, "seasonal flu")
	closed, err := svc.CloseCase(ctx, drMeena, c.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.IsOngoing || closed.ClosedAt == nil {
		t.Fatalf("case should be closed: %+v", closed)
	}
	got := rec.types()
	if len(got) != 3 || got[1] != activity.TypeCaseClosed || got[2] != activity.TypeAppointmentCompleted {
		t.Fatalf("expected case_closed then appointment_completed, got %v", got)
	}

	if _, err := svc.CloseCase(ctx, drMeena, c.ID); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("double close: expected invalid state, got %v", err)
	}
	if len(rec.entries) != 3 {
		t.Fatal("failed close must append nothing")
	}
}

func TestCloseCaseByAnotherDoctor(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	// Closure is administrative: a doctor other than the case author may end
	// the episode, while non-doctors stay locked out.
	c, _ := svc.CreateCase(ctx, drMeena, patJonas, "seasonal flu")
	if _, err := svc.CloseCase(ctx, patJonas, c.ID); !errors.Is(err, errs.ErrAccessDenied) {
		t.Fatalf("patient closing: expected access denied, got %v", err)
	}
	closed, err := svc.CloseCase(ctx, drIdowu, c.ID)
	if err != nil {
		t.Fatalf("close by other doctor: %v", err)
	}
	if closed.IsOngoing {
		t.Fatalf("case should be closed: %+v", closed)
	}
}

func TestListCaseIDsOrderedByCreation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c1, _ := svc.CreateCase(ctx, drMeena, patJonas, "first")
	c2, _ := svc.CreateCase(ctx, drIdowu, patJonas, "second")
	c3, _ := svc.CreateCase(ctx, drMeena, patJonas, "third")

	ids, err := svc.ListCaseIDsForPatient(ctx, patJonas)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []int64{c1.ID, c2.ID, c3.ID}
	if len(ids) != 3 || ids[0] != want[0] || ids[1] != want[1] || ids[2] != want[2] {
		t.Fatalf("expected %v in creation order, got %v", want, ids)
	}

	mine, _ := svc.ListCaseIDsForDoctor(ctx, drMeena)
	if len(mine) != 2 || mine[0] != c1.ID || mine[1] != c3.ID {
		t.Fatalf("expected doctor's cases %v, got %v", []int64{c1.ID, c3.ID}, mine)
	}
}

func TestHasRecordByDoctorForPatient(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, _ := svc.CreateCase(ctx, drMeena, patJonas, "seasonal flu")

	ok, _ := svc.HasRecordByDoctorForPatient(ctx, drMeena, patJonas)
	if ok {
		t.Fatal("no record yet, continuity must be false")
	}
	if _, err := svc.AddRecord(ctx, drMeena, c.ID, RecordInput{Inference: "influenza A"}); err != nil {
		t.Fatalf("add record: %v", err)
	}
	ok, _ = svc.HasRecordByDoctorForPatient(ctx, drMeena, patJonas)
	if !ok {
		t.Fatal("authored record must establish continuity")
	}
	ok, _ = svc.HasRecordByDoctorForPatient(ctx, drIdowu, patJonas)
	if ok {
		t.Fatal("other doctor has no continuity")
	}
}
