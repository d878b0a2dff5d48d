package usecase

import (
	"context"

	"github.com/campusworks/edubase/internal/domain"
)

type InstitutionUsecase struct {
	institutions InstitutionStore
	revisions    RevisionReader
	perms        PermissionOracle
	audit        AuditSink
}

func NewInstitutionUsecase(institutions InstitutionStore, revisions RevisionReader, perms PermissionOracle, audit AuditSink) *InstitutionUsecase {
	return &InstitutionUsecase{institutions: institutions, revisions: revisions, perms: perms, audit: audit}
}

func (uc *InstitutionUsecase) Create(ctx context.Context, actor domain.Actor, inst *domain.Institution, comment string) (int64, error) {
	if !uc.perms.CanMutate(ctx, actor.ID, domain.KindInstitution, domain.ActionCreate) {
		return 0, domain.PermissionDeniedError{ActorID: actor.ID, Kind: domain.KindInstitution, Action: domain.ActionCreate}
	}

	id, err := uc.institutions.Insert(ctx, inst, writeMeta(actor, comment, false))
	if err != nil {
		return 0, err
	}

	uc.audit.Emit(ctx, newEvent("add", actor, domain.KindInstitution, id, inst.Identifier(), comment, nil))
	return id, nil
}

func (uc *InstitutionUsecase) Update(ctx context.Context, actor domain.Actor, inst *domain.Institution, comment string, minor bool) (bool, error) {
	if !uc.perms.CanMutate(ctx, actor.ID, domain.KindInstitution, domain.ActionEdit) {
		return false, domain.PermissionDeniedError{ActorID: actor.ID, Kind: domain.KindInstitution, Action: domain.ActionEdit}
	}

	changed, err := uc.institutions.Update(ctx, inst, writeMeta(actor, comment, minor))
	if err != nil {
		return false, err
	}

	if changed {
		uc.audit.Emit(ctx, newEvent("update", actor, domain.KindInstitution, inst.ID(), inst.Identifier(), comment, nil))
	}
	return changed, nil
}

func (uc *InstitutionUsecase) Get(ctx context.Context, id int64) (domain.Entity, error) {
	return uc.institutions.Get(ctx, id)
}

func (uc *InstitutionUsecase) GetByName(ctx context.Context, name string) (domain.Entity, error) {
	return uc.institutions.GetByIdentifier(ctx, name)
}

func (uc *InstitutionUsecase) List(ctx context.Context) ([]domain.Entity, error) {
	return uc.institutions.List(ctx)
}

func (uc *InstitutionUsecase) History(ctx context.Context, id int64, limit int) ([]domain.Revision, error) {
	return uc.revisions.ListByObject(ctx, domain.KindInstitution, id, limit)
}

func (uc *InstitutionUsecase) HistoryByName(ctx context.Context, name string, limit int) ([]domain.Revision, error) {
	return uc.revisions.ListByIdentifier(ctx, domain.KindInstitution, name, limit)
}
