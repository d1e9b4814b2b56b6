package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careledger/careledger/internal/platform/errs"
	"github.com/careledger/careledger/pkg/principal"
)

// memRepo is an in-memory Repository used by service tests. Append order
// defines the monotonic IDs, matching the database behavior.
type memRepo struct {
	entries []*Entry
	nextID  int64
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1}
}

func (m *memRepo) Append(_ context.Context, e *Entry) error {
	e.ID = m.nextID
	m.nextID++
	e.RecordedAt = time.Now()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id int64) (*Entry, error) {
	for _, e := range m.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, errs.NotFound("activity entry %d", id)
}

func (m *memRepo) ListVisible(_ context.Context, limit int) ([]*Entry, error) {
	var out []*Entry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].IsVisible {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) ListVisibleByActor(_ context.Context, actor principal.Principal, limit int) ([]*Entry, error) {
	var out []*Entry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].IsVisible && m.entries[i].Actor == actor {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) SetVisibility(_ context.Context, id int64, visible bool) error {
	for _, e := range m.entries {
		if e.ID == id {
			e.IsVisible = visible
			return nil
		}
	}
	return errs.NotFound("activity entry %d", id)
}

var (
	actorOne = principal.MustParse("0x1111111111111111111111111111111111111111")
	actorTwo = principal.MustParse("0x2222222222222222222222222222222222222222")
)

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, nil, zerolog.Nop()), repo
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Append(ctx, NewEntry{Type: TypeCaseCreated, Description: "case opened", Actor: actorOne, CaseID: 1})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := svc.Append(ctx, NewEntry{Type: TypeRecordAdded, Description: "record added", Actor: actorTwo, CaseID: 1, RecordID: 1})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if second.ID <= first.ID {
		t.Fatalf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}
	if !first.IsVisible || !second.IsVisible {
		t.Fatal("new entries must start visible")
	}
}

func TestAppendRejectsUnknownType(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Append(context.Background(), NewEntry{Type: "reboot", Actor: actorOne})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAppendRejectsMissingActor(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Append(context.Background(), NewEntry{Type: TypeCaseCreated})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestListNewestFirstSkipsHidden(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, _ := svc.Append(ctx, NewEntry{Type: TypeCaseCreated, Description: "first", Actor: actorOne})
	b, _ := svc.Append(ctx, NewEntry{Type: TypeRecordAdded, Description: "second", Actor: actorOne})
	if _, err := svc.ToggleVisibility(ctx, actorOne, a.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	entries, err := svc.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != b.ID {
		t.Fatalf("expected only entry %d visible, got %+v", b.ID, entries)
	}
}

func TestListForActorFiltersByActor(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	svc.Append(ctx, NewEntry{Type: TypeCaseCreated, Actor: actorOne})
	mine, _ := svc.Append(ctx, NewEntry{Type: TypeRecordAdded, Actor: actorTwo})

	entries, err := svc.ListForActor(ctx, actorTwo, 0)
	if err != nil {
		t.Fatalf("list for actor: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != mine.ID {
		t.Fatalf("expected only actorTwo's entry, got %+v", entries)
	}
}

func TestToggleVisibilityByNonActorDenied(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	e, _ := svc.Append(ctx, NewEntry{Type: TypeCaseCreated, Actor: actorOne})

	_, err := svc.ToggleVisibility(ctx, actorTwo, e.ID)
	if !errors.Is(err, errs.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	stored, _ := repo.GetByID(ctx, e.ID)
	if !stored.IsVisible {
		t.Fatal("denied toggle must leave visibility unchanged")
	}
}

func TestToggleVisibilityRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	e, _ := svc.Append(ctx, NewEntry{Type: TypeCaseCreated, Actor: actorOne})

	hidden, err := svc.ToggleVisibility(ctx, actorOne, e.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if hidden.IsVisible {
		t.Fatal("first toggle should hide the entry")
	}
	shown, err := svc.ToggleVisibility(ctx, actorOne, e.ID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if !shown.IsVisible {
		t.Fatal("second toggle should restore visibility")
	}
	if shown.Description != e.Description || shown.Type != e.Type {
		t.Fatal("toggle must not alter the entry body")
	}
}

func TestToggleVisibilityUnknownEntry(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.ToggleVisibility(context.Background(), actorOne, 404)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
