package usecase

import (
	"context"
	"time"

	"github.com/campusworks/edubase"
	"github.com/campusworks/edubase/internal/domain"
)

// EnrollUsecase wraps the enrollment consistency manager with the
// permission check and the batched audit event.
type EnrollUsecase struct {
	courses  CourseStore
	perms    PermissionOracle
	audit    AuditSink
	settings domain.Settings
}

func NewEnrollUsecase(courses CourseStore, perms PermissionOracle, audit AuditSink, settings domain.Settings) *EnrollUsecase {
	return &EnrollUsecase{courses: courses, perms: perms, audit: audit, settings: settings}
}

func (uc *EnrollUsecase) Enlist(ctx context.Context, actor domain.Actor, courseID int64, role domain.Role, userIDs []int64, comment string) ([]int64, error) {
	if err := uc.check(ctx, actor, userIDs); err != nil {
		return nil, err
	}

	added, err := uc.courses.Enlist(ctx, courseID, role, userIDs, writeMeta(actor, comment, true))
	if err != nil {
		return nil, err
	}

	if len(added) > 0 {
		// one batched event for the whole call, not one per user
		uc.audit.Emit(ctx, roleEvent(ctx, uc.courses, actor, courseID, role, "add", added, comment))
	}
	return added, nil
}

func (uc *EnrollUsecase) Unenlist(ctx context.Context, actor domain.Actor, courseID int64, role domain.Role, userIDs []int64, comment string) ([]int64, error) {
	if err := uc.check(ctx, actor, userIDs); err != nil {
		return nil, err
	}

	removed, err := uc.courses.Unenlist(ctx, courseID, role, userIDs, writeMeta(actor, comment, true))
	if err != nil {
		return nil, err
	}

	if len(removed) > 0 {
		uc.audit.Emit(ctx, roleEvent(ctx, uc.courses, actor, courseID, role, "remove", removed, comment))
	}
	return removed, nil
}

func (uc *EnrollUsecase) check(ctx context.Context, actor domain.Actor, userIDs []int64) error {
	if !uc.perms.CanMutate(ctx, actor.ID, domain.KindCourse, domain.ActionEnlist) {
		return domain.PermissionDeniedError{ActorID: actor.ID, Kind: domain.KindCourse, Action: domain.ActionEnlist}
	}
	if limit := uc.settings.EnlistBatchLimit; limit > 0 && len(userIDs) > limit {
		return domain.ValidationError{Kind: domain.KindCourse, Field: "userIds", Reason: "batch exceeds the enlist limit"}
	}
	return nil
}

func roleEvent(ctx context.Context, courses CourseStore, actor domain.Actor, courseID int64, role domain.Role, action string, userIDs []int64, comment string) edubase.Event {
	identifier := ""
	if e, err := courses.Get(ctx, courseID); err == nil {
		identifier = e.Identifier()
	}
	return edubase.Event{
		Type:       "enrollment",
		Subtype:    action,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Kind:       string(domain.KindCourse),
		ObjectID:   courseID,
		Identifier: identifier,
		Comment:    comment,
		Params: map[string]any{
			"role":    role.String(),
			"userIds": userIDs,
			"count":   len(userIDs),
		},
		Time: time.Now().UTC(),
	}
}
