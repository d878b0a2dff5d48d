package usecase

import (
	"context"

	"github.com/campusworks/edubase/internal/domain"
)

type CourseUsecase struct {
	courses   CourseStore
	revisions RevisionReader
	perms     PermissionOracle
	audit     AuditSink
}

func NewCourseUsecase(courses CourseStore, revisions RevisionReader, perms PermissionOracle, audit AuditSink) *CourseUsecase {
	return &CourseUsecase{courses: courses, revisions: revisions, perms: perms, audit: audit}
}

func (uc *CourseUsecase) Create(ctx context.Context, actor domain.Actor, course *domain.Course, comment string) (int64, error) {
	if !uc.perms.CanMutate(ctx, actor.ID, domain.KindCourse, domain.ActionCreate) {
		return 0, domain.PermissionDeniedError{ActorID: actor.ID, Kind: domain.KindCourse, Action: domain.ActionCreate}
	}

	id, err := uc.courses.Insert(ctx, course, writeMeta(actor, comment, false))
	if err != nil {
		return 0, err
	}

	uc.audit.Emit(ctx, newEvent("add", actor, domain.KindCourse, id, course.Identifier(), comment, nil))
	return id, nil
}

func (uc *CourseUsecase) Update(ctx context.Context, actor domain.Actor, course *domain.Course, comment string, minor bool) (bool, error) {
	if !uc.perms.CanMutate(ctx, actor.ID, domain.KindCourse, domain.ActionEdit) {
		return false, domain.PermissionDeniedError{ActorID: actor.ID, Kind: domain.KindCourse, Action: domain.ActionEdit}
	}

	changed, err := uc.courses.Update(ctx, course, writeMeta(actor, comment, minor))
	if err != nil {
		return false, err
	}

	if changed {
		uc.audit.Emit(ctx, newEvent("update", actor, domain.KindCourse, course.ID(), course.Identifier(), comment, nil))
	}
	return changed, nil
}

func (uc *CourseUsecase) Get(ctx context.Context, id int64) (domain.Entity, error) {
	return uc.courses.Get(ctx, id)
}

func (uc *CourseUsecase) GetByTitle(ctx context.Context, title string) (domain.Entity, error) {
	return uc.courses.GetByIdentifier(ctx, title)
}

func (uc *CourseUsecase) List(ctx context.Context) ([]domain.Entity, error) {
	return uc.courses.List(ctx)
}

func (uc *CourseUsecase) ListByInstitution(ctx context.Context, institutionID int64) ([]domain.Entity, error) {
	return uc.courses.ListByInstitution(ctx, institutionID)
}

func (uc *CourseUsecase) ListByUser(ctx context.Context, userID int64) ([]domain.Entity, error) {
	return uc.courses.ListByUser(ctx, userID)
}

func (uc *CourseUsecase) History(ctx context.Context, id int64, limit int) ([]domain.Revision, error) {
	return uc.revisions.ListByObject(ctx, domain.KindCourse, id, limit)
}

func (uc *CourseUsecase) HistoryByTitle(ctx context.Context, title string, limit int) ([]domain.Revision, error) {
	return uc.revisions.ListByIdentifier(ctx, domain.KindCourse, title, limit)
}
