package usecase

import (
	"context"
	"errors"

	"github.com/campusworks/edubase/internal/domain"
)

// UndeleteState walks the undelete controller's state machine.
type UndeleteState int

const (
	UndeleteDenied UndeleteState = iota
	UndeleteAlreadyLive
	UndeleteNoHistory
	UndeleteParentDeleted
	UndeleteDone
)

func (s UndeleteState) String() string {
	switch s {
	case UndeleteDenied:
		return "denied"
	case UndeleteAlreadyLive:
		return "already-live"
	case UndeleteNoHistory:
		return "no-history"
	case UndeleteParentDeleted:
		return "parent-deleted"
	case UndeleteDone:
		return "done"
	default:
		return "unknown"
	}
}

type UndeleteOutcome struct {
	State      UndeleteState
	Identifier string
}

// UndeleteUsecase resurrects a soft-deleted entity from its latest
// revision. Restoring a course is refused while its parent institution
// is itself deleted; that is a distinct outcome, not a generic failure.
type UndeleteUsecase struct {
	stores    Stores
	revisions RevisionReader
	perms     PermissionOracle
	audit     AuditSink
}

func NewUndeleteUsecase(stores Stores, revisions RevisionReader, perms PermissionOracle, audit AuditSink) *UndeleteUsecase {
	return &UndeleteUsecase{stores: stores, revisions: revisions, perms: perms, audit: audit}
}

func (uc *UndeleteUsecase) Run(ctx context.Context, actor domain.Actor, kind domain.Kind, identifier, comment string) (UndeleteOutcome, error) {
	out := UndeleteOutcome{Identifier: identifier}

	if !uc.perms.CanMutate(ctx, actor.ID, kind, domain.ActionUndelete) {
		out.State = UndeleteDenied
		return out, nil
	}

	store := uc.stores.For(kind)

	if _, err := store.GetByIdentifier(ctx, identifier); err == nil {
		out.State = UndeleteAlreadyLive
		return out, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return out, err
	}

	rev, err := uc.revisions.LatestByIdentifier(ctx, kind, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNoRevisions) {
			out.State = UndeleteNoHistory
			return out, nil
		}
		return out, err
	}

	if kind == domain.KindCourse {
		parentID := rev.Data.Int(domain.FieldInstitutionID)
		if _, err := uc.stores.Institutions.Get(ctx, parentID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				out.State = UndeleteParentDeleted
				return out, nil
			}
			return out, err
		}
	}

	if err := store.Undelete(ctx, identifier, writeMeta(actor, comment, false)); err != nil {
		return out, err
	}

	uc.audit.Emit(ctx, newEvent("undelete", actor, kind, rev.ObjectID, identifier, comment, nil))

	out.State = UndeleteDone
	return out, nil
}
