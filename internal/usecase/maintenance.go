package usecase

import (
	"context"

	"github.com/campusworks/edubase/internal/domain"
)

// ConsistencyFixer is the background repair job over the enrollment
// join table and the cached counts.
type ConsistencyFixer interface {
	Run(ctx context.Context) (domain.ReconcileReport, error)
	RemoveUser(ctx context.Context, userID int64, meta domain.WriteMeta) (int, error)
}

// MaintenanceUsecase exposes the repair job to operators. Both
// operations rewrite data wholesale, so they demand the same privilege
// as deletion.
type MaintenanceUsecase struct {
	fixer ConsistencyFixer
	perms PermissionOracle
	audit AuditSink
}

func NewMaintenanceUsecase(fixer ConsistencyFixer, perms PermissionOracle, audit AuditSink) *MaintenanceUsecase {
	return &MaintenanceUsecase{fixer: fixer, perms: perms, audit: audit}
}

func (uc *MaintenanceUsecase) Reconcile(ctx context.Context, actor domain.Actor) (domain.ReconcileReport, error) {
	if !uc.perms.CanMutate(ctx, actor.ID, domain.KindCourse, domain.ActionDelete) {
		return domain.ReconcileReport{}, domain.PermissionDeniedError{ActorID: actor.ID, Kind: domain.KindCourse, Action: domain.ActionDelete}
	}

	report, err := uc.fixer.Run(ctx)
	if err != nil {
		return report, err
	}

	if report.OrphanedRows > 0 || report.CoursesFixed > 0 || report.InstitutionsFixed > 0 {
		uc.audit.Emit(ctx, newEvent("reconcile", actor, domain.KindCourse, 0, "", "", map[string]any{
			"orphanedRows":      report.OrphanedRows,
			"coursesFixed":      report.CoursesFixed,
			"institutionsFixed": report.InstitutionsFixed,
		}))
	}
	return report, nil
}

// PurgeUser strips a departed user from every course they appear in.
func (uc *MaintenanceUsecase) PurgeUser(ctx context.Context, actor domain.Actor, userID int64, comment string) (int, error) {
	if !uc.perms.CanMutate(ctx, actor.ID, domain.KindCourse, domain.ActionDelete) {
		return 0, domain.PermissionDeniedError{ActorID: actor.ID, Kind: domain.KindCourse, Action: domain.ActionDelete}
	}

	touched, err := uc.fixer.RemoveUser(ctx, userID, writeMeta(actor, comment, true))
	if err != nil {
		return touched, err
	}

	if touched > 0 {
		uc.audit.Emit(ctx, newEvent("purge-user", actor, domain.KindCourse, 0, "", comment, map[string]any{
			"userId":  userID,
			"courses": touched,
		}))
	}
	return touched, nil
}
