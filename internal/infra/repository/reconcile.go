package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusworks/edubase/internal/domain"
	"github.com/campusworks/edubase/internal/infra/database/models"
)

// Reconciler is the best-effort consistency job. It scans a bounded set
// of rows and only rewrites what it can prove is stale, so it is safe
// to retry or run concurrently with ordinary mutations.
type Reconciler struct {
	db *gorm.DB
}

func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db}
}

// Run deletes join rows whose course is gone, rewrites join rows that
// disagree with a course's inline lists (the inline list wins), and
// recomputes institution roll-ups that drifted.
func (r *Reconciler) Run(ctx context.Context) (domain.ReconcileReport, error) {
	var report domain.ReconcileReport

	res := r.db.WithContext(ctx).
		Where("course_id NOT IN (?)", r.db.Model(&models.Course{}).Select("id")).
		Delete(&models.Enrollment{})
	if res.Error != nil {
		return report, res.Error
	}
	report.OrphanedRows = res.RowsAffected

	var courseIDs []int64
	if err := r.db.WithContext(ctx).Model(&models.Course{}).Pluck("id", &courseIDs).Error; err != nil {
		return report, err
	}

	for _, courseID := range courseIDs {
		fixed, err := r.reconcileCourse(ctx, courseID)
		if err != nil {
			return report, err
		}
		if fixed {
			report.CoursesFixed++
		}
	}

	var institutionIDs []int64
	if err := r.db.WithContext(ctx).Model(&models.Institution{}).Pluck("id", &institutionIDs).Error; err != nil {
		return report, err
	}

	for _, institutionID := range institutionIDs {
		fixed, err := r.reconcileInstitution(ctx, institutionID)
		if err != nil {
			return report, err
		}
		if fixed {
			report.InstitutionsFixed++
		}
	}

	return report, nil
}

func (r *Reconciler) reconcileCourse(ctx context.Context, courseID int64) (bool, error) {
	fixed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Course
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&row, "id = ?", courseID).Error
		if err == gorm.ErrRecordNotFound {
			return nil // removed since the scan; nothing to fix
		}
		if err != nil {
			return err
		}

		course, err := courseFromRow(row)
		if err != nil {
			return err
		}

		countsStale := row.StudentCount != course.RoleCount(domain.RoleStudent) ||
			row.InstructorCount != course.RoleCount(domain.RoleInstructor) ||
			row.OACount != course.RoleCount(domain.RoleOnlineAmbassador) ||
			row.CACount != course.RoleCount(domain.RoleCampusAmbassador)

		joinStale := false
		joinRows := map[domain.Role][]int64{}
		for _, role := range domain.AllRoles() {
			var ids []int64
			err := tx.Model(&models.Enrollment{}).
				Where("course_id = ? AND role = ?", courseID, role.String()).
				Pluck("user_id", &ids).Error
			if err != nil {
				return err
			}
			joinRows[role] = ids
			if !domain.ValueEqual(domain.NormalizeIDs(ids), course.RoleList(role)) {
				joinStale = true
			}
		}

		if !countsStale && !joinStale {
			return nil
		}

		if countsStale {
			newRow, err := courseToRow(course)
			if err != nil {
				return err
			}
			newRow.CDate = row.CDate
			if err := tx.Save(&newRow).Error; err != nil {
				return err
			}
		}

		if joinStale {
			for _, role := range domain.AllRoles() {
				if err := syncEnrollments(tx, courseID, role, joinRows[role], course.RoleList(role)); err != nil {
					return err
				}
			}
		}

		fixed = true
		return nil
	})
	return fixed, err
}

func (r *Reconciler) reconcileInstitution(ctx context.Context, institutionID int64) (bool, error) {
	fixed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Institution
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&row, "id = ?", institutionID).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		var agg rollupAgg
		err = tx.Model(&models.Course{}).
			Select("COUNT(*) AS courses, " +
				"COALESCE(SUM(student_count), 0) AS students, " +
				"COALESCE(SUM(instructor_count), 0) AS instructors, " +
				"COALESCE(SUM(oa_count), 0) AS oas, " +
				"COALESCE(SUM(ca_count), 0) AS cas").
			Where("institution_id = ?", institutionID).
			Scan(&agg).Error
		if err != nil {
			return err
		}

		if row.CourseCount == agg.Courses &&
			row.StudentCount == agg.Students &&
			row.InstructorCount == agg.Instructors &&
			row.OACount == agg.OAs &&
			row.CACount == agg.CAs {
			return nil
		}

		fixed = true
		return recomputeRollups(tx, institutionID)
	})
	return fixed, err
}

// RemoveUser strips a departed user id from every course role list and
// the join table. Each course is fixed in its own transaction; rerunning
// after a partial failure finishes the remainder.
func (r *Reconciler) RemoveUser(ctx context.Context, userID int64, meta domain.WriteMeta) (int, error) {
	var courseIDs []int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Distinct("course_id").
		Where("user_id = ?", userID).
		Pluck("course_id", &courseIDs).Error
	if err != nil {
		return 0, err
	}

	touched := 0
	for _, courseID := range courseIDs {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			course, row, err := lockCourse(tx, courseID)
			if err != nil {
				if _, ok := err.(domain.NotFoundError); ok {
					return nil
				}
				return err
			}

			changedAny := false
			for _, role := range domain.AllRoles() {
				current := course.RoleList(role)
				removed := idIntersection(current, []int64{userID})
				if len(removed) == 0 {
					continue
				}
				course.SetRoleList(role, idDifference(current, removed))
				if err := saveRoleChange(tx, course, row, role, nil, removed, meta); err != nil {
					return err
				}
				changedAny = true
			}
			if !changedAny {
				// inline lists never had the user; drop the stray join rows
				return tx.Delete(&models.Enrollment{},
					"course_id = ? AND user_id = ?", courseID, userID).Error
			}
			touched++
			return nil
		})
		if err != nil {
			return touched, err
		}
	}
	return touched, nil
}
