package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/campusworks/edubase"
	"github.com/campusworks/edubase/internal/domain"
)

type fakeStore struct {
	kind      domain.Kind
	entities  map[int64]domain.Entity
	nextID    int64
	updated   []domain.Entity
	lastMeta  domain.WriteMeta
	removed   []int64
	undeleted []string
}

func newFakeStore(kind domain.Kind) *fakeStore {
	return &fakeStore{kind: kind, entities: map[int64]domain.Entity{}, nextID: 1}
}

func (s *fakeStore) add(e domain.Entity) int64 {
	id := e.ID()
	if id == 0 {
		id = s.nextID
		s.nextID++
		e.SetID(id)
	}
	s.entities[id] = e
	return id
}

func (s *fakeStore) Kind() domain.Kind { return s.kind }

func (s *fakeStore) Get(ctx context.Context, id int64) (domain.Entity, error) {
	e, ok := s.entities[id]
	if !ok {
		return nil, domain.NotFoundError{Kind: s.kind, Identifier: fmt.Sprintf("%d", id)}
	}
	return e, nil
}

func (s *fakeStore) GetByIdentifier(ctx context.Context, identifier string) (domain.Entity, error) {
	for _, e := range s.entities {
		if e.Identifier() == identifier {
			return e, nil
		}
	}
	return nil, domain.NotFoundError{Kind: s.kind, Identifier: identifier}
}

func (s *fakeStore) Insert(ctx context.Context, e domain.Entity, meta domain.WriteMeta) (int64, error) {
	if e.ID() != 0 {
		return 0, domain.AlreadyHasIDError{Kind: s.kind, ID: e.ID()}
	}
	s.lastMeta = meta
	return s.add(e), nil
}

func (s *fakeStore) Update(ctx context.Context, e domain.Entity, meta domain.WriteMeta) (bool, error) {
	current, ok := s.entities[e.ID()]
	if !ok {
		return false, domain.NotFoundError{Kind: s.kind, Identifier: fmt.Sprintf("%d", e.ID())}
	}
	current.Apply(e.Snapshot())
	s.updated = append(s.updated, current)
	s.lastMeta = meta
	return true, nil
}

func (s *fakeStore) Remove(ctx context.Context, id int64, meta domain.WriteMeta) error {
	if _, ok := s.entities[id]; !ok {
		return domain.NotFoundError{Kind: s.kind, Identifier: fmt.Sprintf("%d", id)}
	}
	delete(s.entities, id)
	s.removed = append(s.removed, id)
	s.lastMeta = meta
	return nil
}

func (s *fakeStore) Undelete(ctx context.Context, identifier string, meta domain.WriteMeta) error {
	s.undeleted = append(s.undeleted, identifier)
	s.lastMeta = meta
	return nil
}

type fakeInstitutionStore struct {
	*fakeStore
}

func newFakeInstitutionStore() *fakeInstitutionStore {
	return &fakeInstitutionStore{fakeStore: newFakeStore(domain.KindInstitution)}
}

func (s *fakeInstitutionStore) List(ctx context.Context) ([]domain.Entity, error) {
	out := make([]domain.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	return out, nil
}

type fakeCourseStore struct {
	*fakeStore
	enlisted   []int64
	unenlisted []int64
	enlistRole domain.Role
	enlistErr  error
}

func newFakeCourseStore() *fakeCourseStore {
	return &fakeCourseStore{fakeStore: newFakeStore(domain.KindCourse)}
}

func (s *fakeCourseStore) List(ctx context.Context) ([]domain.Entity, error) {
	return nil, nil
}

func (s *fakeCourseStore) ListByInstitution(ctx context.Context, institutionID int64) ([]domain.Entity, error) {
	return nil, nil
}

func (s *fakeCourseStore) ListByUser(ctx context.Context, userID int64) ([]domain.Entity, error) {
	return nil, nil
}

func (s *fakeCourseStore) Enlist(ctx context.Context, courseID int64, role domain.Role, userIDs []int64, meta domain.WriteMeta) ([]int64, error) {
	if s.enlistErr != nil {
		return nil, s.enlistErr
	}
	s.enlistRole = role
	s.enlisted = append(s.enlisted, userIDs...)
	s.lastMeta = meta
	return userIDs, nil
}

func (s *fakeCourseStore) Unenlist(ctx context.Context, courseID int64, role domain.Role, userIDs []int64, meta domain.WriteMeta) ([]int64, error) {
	s.unenlisted = append(s.unenlisted, userIDs...)
	s.lastMeta = meta
	return userIDs, nil
}

type fakeRevisions struct {
	revs   map[int64]*domain.Revision
	prev   map[int64]*domain.Revision
	latest map[string]*domain.Revision
}

func newFakeRevisions() *fakeRevisions {
	return &fakeRevisions{
		revs:   map[int64]*domain.Revision{},
		prev:   map[int64]*domain.Revision{},
		latest: map[string]*domain.Revision{},
	}
}

func (r *fakeRevisions) Get(ctx context.Context, kind domain.Kind, objectID, revisionID int64) (*domain.Revision, error) {
	rev, ok := r.revs[revisionID]
	if !ok || rev.Kind != kind || rev.ObjectID != objectID {
		return nil, domain.NotFoundError{Kind: kind, Identifier: fmt.Sprintf("revision %d", revisionID)}
	}
	return rev, nil
}

func (r *fakeRevisions) PreviousOf(ctx context.Context, rev *domain.Revision) (*domain.Revision, error) {
	return r.prev[rev.ID], nil
}

func (r *fakeRevisions) LatestByIdentifier(ctx context.Context, kind domain.Kind, identifier string) (*domain.Revision, error) {
	rev, ok := r.latest[identifier]
	if !ok {
		return nil, domain.NoRevisionsError{Kind: kind, Identifier: identifier}
	}
	return rev, nil
}

func (r *fakeRevisions) ListByObject(ctx context.Context, kind domain.Kind, objectID int64, limit int) ([]domain.Revision, error) {
	return nil, nil
}

func (r *fakeRevisions) ListByIdentifier(ctx context.Context, kind domain.Kind, identifier string, limit int) ([]domain.Revision, error) {
	return nil, nil
}

type fakePerms struct {
	allow bool
}

func (p fakePerms) CanMutate(ctx context.Context, actorID int64, kind domain.Kind, action domain.Action) bool {
	return p.allow
}

type captureAudit struct {
	mu     sync.Mutex
	events []edubase.Event
}

func (a *captureAudit) Emit(ctx context.Context, event edubase.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *captureAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func testActor() domain.Actor {
	return domain.Actor{ID: 1, Name: "alice"}
}

func testStores(institutions *fakeInstitutionStore, courses *fakeCourseStore) Stores {
	return Stores{Institutions: institutions, Courses: courses}
}
