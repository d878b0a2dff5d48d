package usecase

import (
	"context"
	"fmt"

	"github.com/campusworks/edubase/internal/domain"
)

// RevertState walks the undo/restore controllers' shared state machine.
type RevertState int

const (
	RevertDenied RevertState = iota
	RevertInvalid
	RevertNothingToDo
	RevertReady
	RevertApplied
)

func (s RevertState) String() string {
	switch s {
	case RevertDenied:
		return "denied"
	case RevertInvalid:
		return "invalid"
	case RevertNothingToDo:
		return "nothing-to-do"
	case RevertReady:
		return "ready"
	case RevertApplied:
		return "applied"
	default:
		return "unknown"
	}
}

// RevertOutcome reports where the controller stopped. Ready carries the
// diff a confirmation screen shows; Applied carries what was written.
type RevertOutcome struct {
	State    RevertState
	Diff     domain.Diff
	Revision *domain.Revision
	Entity   domain.Entity
}

// UndoUsecase reverts what one revision changed, touching only fields
// nobody has changed again since. It never overwrites intervening
// edits; that is what distinguishes it from Restore.
type UndoUsecase struct {
	stores    Stores
	revisions RevisionReader
	perms     PermissionOracle
	audit     AuditSink
}

func NewUndoUsecase(stores Stores, revisions RevisionReader, perms PermissionOracle, audit AuditSink) *UndoUsecase {
	return &UndoUsecase{stores: stores, revisions: revisions, perms: perms, audit: audit}
}

func (uc *UndoUsecase) Prepare(ctx context.Context, actor domain.Actor, kind domain.Kind, objectID, revisionID int64) (RevertOutcome, error) {
	if !uc.perms.CanMutate(ctx, actor.ID, kind, domain.ActionRevert) {
		return RevertOutcome{State: RevertDenied}, nil
	}

	e, err := uc.stores.For(kind).Get(ctx, objectID)
	if err != nil {
		return RevertOutcome{}, err
	}

	rev, err := uc.revisions.Get(ctx, kind, objectID, revisionID)
	if err != nil {
		return RevertOutcome{}, err
	}

	prev, err := uc.revisions.PreviousOf(ctx, rev)
	if err != nil {
		return RevertOutcome{}, err
	}
	var prevData *domain.Fields
	if prev != nil {
		prevData = prev.Data
	}

	diff := domain.DiffForUndo(e.Snapshot(), rev.Data, prevData)
	switch {
	case !diff.Valid:
		return RevertOutcome{State: RevertInvalid, Revision: rev, Entity: e}, nil
	case !diff.HasChanges():
		return RevertOutcome{State: RevertNothingToDo, Revision: rev, Entity: e}, nil
	default:
		return RevertOutcome{State: RevertReady, Diff: diff, Revision: rev, Entity: e}, nil
	}
}

func (uc *UndoUsecase) Confirm(ctx context.Context, actor domain.Actor, kind domain.Kind, objectID, revisionID int64, comment string) (RevertOutcome, error) {
	out, err := uc.Prepare(ctx, actor, kind, objectID, revisionID)
	if err != nil || out.State != RevertReady {
		return out, err
	}

	snap := out.Entity.Snapshot()
	out.Diff.Apply(snap)
	reverted := domain.EntityFromSnapshot(kind, objectID, snap)

	derived := fmt.Sprintf("undo revision %d by %s", out.Revision.ID, out.Revision.UserName)
	if comment != "" {
		derived = fmt.Sprintf("%s: %s", derived, comment)
	}

	if _, err := uc.stores.For(kind).Update(ctx, reverted, writeMeta(actor, derived, false)); err != nil {
		return RevertOutcome{}, err
	}

	uc.audit.Emit(ctx, newEvent("undo", actor, kind, objectID, out.Entity.Identifier(), comment, map[string]any{
		"revisionId": out.Revision.ID,
		"fields":     out.Diff.Fields(),
	}))

	out.State = RevertApplied
	return out, nil
}
