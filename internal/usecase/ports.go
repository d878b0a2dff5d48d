package usecase

import (
	"context"

	"github.com/campusworks/edubase"
	"github.com/campusworks/edubase/internal/domain"
)

// EntityStore is the revisioned-store contract every entity kind offers.
type EntityStore interface {
	Kind() domain.Kind
	Get(ctx context.Context, id int64) (domain.Entity, error)
	GetByIdentifier(ctx context.Context, identifier string) (domain.Entity, error)
	Insert(ctx context.Context, e domain.Entity, meta domain.WriteMeta) (int64, error)
	Update(ctx context.Context, e domain.Entity, meta domain.WriteMeta) (bool, error)
	Remove(ctx context.Context, id int64, meta domain.WriteMeta) error
	Undelete(ctx context.Context, identifier string, meta domain.WriteMeta) error
}

// InstitutionStore adds institution-specific queries.
type InstitutionStore interface {
	EntityStore
	List(ctx context.Context) ([]domain.Entity, error)
}

// CourseStore adds enrollment maintenance and the join-table queries.
type CourseStore interface {
	EntityStore
	List(ctx context.Context) ([]domain.Entity, error)
	ListByInstitution(ctx context.Context, institutionID int64) ([]domain.Entity, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Entity, error)
	Enlist(ctx context.Context, courseID int64, role domain.Role, userIDs []int64, meta domain.WriteMeta) ([]int64, error)
	Unenlist(ctx context.Context, courseID int64, role domain.Role, userIDs []int64, meta domain.WriteMeta) ([]int64, error)
}

// RevisionReader reads the append-only history log.
type RevisionReader interface {
	Get(ctx context.Context, kind domain.Kind, objectID, revisionID int64) (*domain.Revision, error)
	PreviousOf(ctx context.Context, rev *domain.Revision) (*domain.Revision, error)
	LatestByIdentifier(ctx context.Context, kind domain.Kind, identifier string) (*domain.Revision, error)
	ListByObject(ctx context.Context, kind domain.Kind, objectID int64, limit int) ([]domain.Revision, error)
	ListByIdentifier(ctx context.Context, kind domain.Kind, identifier string, limit int) ([]domain.Revision, error)
}

// PermissionOracle is the external permission check. A false result is
// a hard stop, never a retryable condition.
type PermissionOracle interface {
	CanMutate(ctx context.Context, actorID int64, kind domain.Kind, action domain.Action) bool
}

// AuditSink receives log events after a mutation commits. Emission is
// fire-and-forget; a sink failure never fails the operation.
type AuditSink interface {
	Emit(ctx context.Context, event edubase.Event)
}

// Stores bundles the per-kind revisioned stores for the controllers
// that dispatch on kind.
type Stores struct {
	Institutions InstitutionStore
	Courses      CourseStore
}

func (s Stores) For(kind domain.Kind) EntityStore {
	switch kind {
	case domain.KindInstitution:
		return s.Institutions
	case domain.KindCourse:
		return s.Courses
	default:
		return nil
	}
}

func writeMeta(actor domain.Actor, comment string, minor bool) domain.WriteMeta {
	return domain.WriteMeta{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Comment:   comment,
		Minor:     minor,
	}
}
