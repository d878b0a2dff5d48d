package usecase

import (
	"context"
	"fmt"

	"github.com/campusworks/edubase/internal/domain"
)

// RestoreUsecase resets an entity to an arbitrary past revision. Unlike
// Undo it deliberately clobbers intervening edits: the caller asked for
// exactly that version.
type RestoreUsecase struct {
	stores    Stores
	revisions RevisionReader
	perms     PermissionOracle
	audit     AuditSink
}

func NewRestoreUsecase(stores Stores, revisions RevisionReader, perms PermissionOracle, audit AuditSink) *RestoreUsecase {
	return &RestoreUsecase{stores: stores, revisions: revisions, perms: perms, audit: audit}
}

func (uc *RestoreUsecase) Prepare(ctx context.Context, actor domain.Actor, kind domain.Kind, objectID, revisionID int64) (RevertOutcome, error) {
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

	diff := domain.DiffForRestore(e.Snapshot(), rev.Data)
	if !diff.HasChanges() {
		return RevertOutcome{State: RevertNothingToDo, Revision: rev, Entity: e}, nil
	}
	return RevertOutcome{State: RevertReady, Diff: diff, Revision: rev, Entity: e}, nil
}

func (uc *RestoreUsecase) Confirm(ctx context.Context, actor domain.Actor, kind domain.Kind, objectID, revisionID int64, comment string) (RevertOutcome, error) {
	out, err := uc.Prepare(ctx, actor, kind, objectID, revisionID)
	if err != nil || out.State != RevertReady {
		return out, err
	}

	snap := out.Entity.Snapshot()
	out.Diff.Apply(snap)
	restored := domain.EntityFromSnapshot(kind, objectID, snap)

	derived := fmt.Sprintf("restore to revision %d", out.Revision.ID)
	if comment != "" {
		derived = fmt.Sprintf("%s: %s", derived, comment)
	}

	if _, err := uc.stores.For(kind).Update(ctx, restored, writeMeta(actor, derived, false)); err != nil {
		return RevertOutcome{}, err
	}

	uc.audit.Emit(ctx, newEvent("restore", actor, kind, objectID, out.Entity.Identifier(), comment, map[string]any{
		"revisionId": out.Revision.ID,
		"fields":     out.Diff.Fields(),
	}))

	out.State = RevertApplied
	return out, nil
}
