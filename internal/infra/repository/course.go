package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusworks/edubase/internal/domain"
	"github.com/campusworks/edubase/internal/infra/database/models"
)

// CourseRepository is the revisioned store for courses. On top of the
// usual insert/update/remove/undelete contract it keeps the inline role
// lists, the enrollment join table, the cached per-role counts, and the
// parent institution's roll-ups consistent inside one transaction.
type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) Kind() domain.Kind { return domain.KindCourse }

func (r *CourseRepository) Get(ctx context.Context, id int64) (domain.Entity, error) {
	var row models.Course
	err := r.db.WithContext(ctx).Take(&row, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Kind: domain.KindCourse, Identifier: fmt.Sprintf("%d", id)}
	}
	if err != nil {
		return nil, err
	}
	return courseFromRow(row)
}

func (r *CourseRepository) GetByIdentifier(ctx context.Context, title string) (domain.Entity, error) {
	var row models.Course
	err := r.db.WithContext(ctx).Take(&row, "title = ?", title).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Kind: domain.KindCourse, Identifier: title}
	}
	if err != nil {
		return nil, err
	}
	return courseFromRow(row)
}

func (r *CourseRepository) List(ctx context.Context) ([]domain.Entity, error) {
	var rows []models.Course
	if err := r.db.WithContext(ctx).Order("title ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return coursesFromRows(rows)
}

func (r *CourseRepository) ListByInstitution(ctx context.Context, institutionID int64) ([]domain.Entity, error) {
	var rows []models.Course
	err := r.db.WithContext(ctx).
		Where("institution_id = ?", institutionID).
		Order("title ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return coursesFromRows(rows)
}

// ListByUser answers "find my courses" off the enrollment join table.
func (r *CourseRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Entity, error) {
	var rows []models.Course
	err := r.db.WithContext(ctx).
		Distinct("courses.*").
		Joins("JOIN enrollments ON enrollments.course_id = courses.id").
		Where("enrollments.user_id = ?", userID).
		Order("courses.title ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return coursesFromRows(rows)
}

func (r *CourseRepository) Insert(ctx context.Context, e domain.Entity, meta domain.WriteMeta) (int64, error) {
	course, ok := e.(*domain.Course)
	if !ok {
		return 0, fmt.Errorf("course store got a %s", e.Kind())
	}
	if course.ID() != 0 {
		return 0, domain.AlreadyHasIDError{Kind: domain.KindCourse, ID: course.ID()}
	}
	course.DeriveTitle()
	if err := course.Validate(); err != nil {
		return 0, err
	}

	// normalize lists so counts match cardinalities from the start
	for _, role := range domain.AllRoles() {
		course.SetRoleList(role, course.RoleList(role))
	}

	row, err := courseToRow(course)
	if err != nil {
		return 0, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent models.Institution
		err := tx.Take(&parent, "id = ?", course.InstitutionID()).Error
		if err == gorm.ErrRecordNotFound {
			return domain.NotFoundError{Kind: domain.KindInstitution, Identifier: fmt.Sprintf("%d", course.InstitutionID())}
		}
		if err != nil {
			return err
		}

		if err := tx.Create(&row).Error; err != nil {
			if err == gorm.ErrDuplicatedKey {
				return domain.AlreadyExistsError{Kind: domain.KindCourse, Identifier: course.Identifier()}
			}
			return err
		}
		course.SetID(row.ID)

		for _, role := range domain.AllRoles() {
			if err := insertEnrollments(tx, row.ID, role, course.RoleList(role)); err != nil {
				return err
			}
		}

		if err := recomputeRollups(tx, course.InstitutionID()); err != nil {
			return err
		}

		return appendRevision(tx, &domain.Revision{
			Kind:       domain.KindCourse,
			ObjectID:   row.ID,
			Identifier: row.Title,
			UserID:     meta.ActorID,
			UserName:   meta.ActorName,
			Comment:    meta.Comment,
			Minor:      meta.Minor,
			Data:       course.Snapshot(),
		})
	})
	if err != nil {
		return 0, wrapStorage("course.insert", err)
	}
	return row.ID, nil
}

func (r *CourseRepository) Update(ctx context.Context, e domain.Entity, meta domain.WriteMeta) (bool, error) {
	if e.ID() == 0 {
		return false, domain.NotFoundError{Kind: domain.KindCourse}
	}

	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Course
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&row, "id = ?", e.ID()).Error
		if err == gorm.ErrRecordNotFound {
			return domain.NotFoundError{Kind: domain.KindCourse, Identifier: fmt.Sprintf("%d", e.ID())}
		}
		if err != nil {
			return err
		}

		current, err := courseFromRow(row)
		if err != nil {
			return err
		}
		if len(changedFields(current.Snapshot(), e.Snapshot())) == 0 {
			return nil // no-op: nothing differs, write nothing
		}

		previousInstitution := current.InstitutionID()
		previousLists := map[domain.Role][]int64{}
		for _, role := range domain.AllRoles() {
			previousLists[role] = current.RoleList(role)
		}

		current.Apply(e.Snapshot())
		for _, role := range domain.AllRoles() {
			current.SetRoleList(role, current.RoleList(role))
		}

		newRow, err := courseToRow(current)
		if err != nil {
			return err
		}
		newRow.CDate = row.CDate
		if err := tx.Save(&newRow).Error; err != nil {
			if err == gorm.ErrDuplicatedKey {
				return domain.AlreadyExistsError{Kind: domain.KindCourse, Identifier: current.Identifier()}
			}
			return err
		}

		// role-list edits ripple into the join table
		for _, role := range domain.AllRoles() {
			if err := syncEnrollments(tx, row.ID, role, previousLists[role], current.RoleList(role)); err != nil {
				return err
			}
		}

		if err := recomputeRollups(tx, current.InstitutionID()); err != nil {
			return err
		}
		if previousInstitution != current.InstitutionID() {
			if err := recomputeRollups(tx, previousInstitution); err != nil {
				return err
			}
		}

		changed = true
		return appendRevision(tx, &domain.Revision{
			Kind:       domain.KindCourse,
			ObjectID:   row.ID,
			Identifier: current.Identifier(),
			UserID:     meta.ActorID,
			UserName:   meta.ActorName,
			Comment:    meta.Comment,
			Minor:      meta.Minor,
			Data:       current.Snapshot(),
		})
	})
	if err != nil {
		return false, wrapStorage("course.update", err)
	}
	return changed, nil
}

func (r *CourseRepository) Remove(ctx context.Context, id int64, meta domain.WriteMeta) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Course
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&row, "id = ?", id).Error
		if err == gorm.ErrRecordNotFound {
			return domain.NotFoundError{Kind: domain.KindCourse, Identifier: fmt.Sprintf("%d", id)}
		}
		if err != nil {
			return err
		}
		return removeCourseRow(tx, row, meta)
	})
	return wrapStorage("course.remove", err)
}

// removeCourseRow soft-deletes one course inside an open transaction:
// join rows go with the live row, the revision log keeps everything.
// Also called from the institution cascade.
func removeCourseRow(tx *gorm.DB, row models.Course, meta domain.WriteMeta) error {
	course, err := courseFromRow(row)
	if err != nil {
		return err
	}

	if err := tx.Delete(&models.Enrollment{}, "course_id = ?", row.ID).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.Course{}, "id = ?", row.ID).Error; err != nil {
		return err
	}
	if err := recomputeRollups(tx, row.InstitutionID); err != nil {
		return err
	}

	return appendRevision(tx, &domain.Revision{
		Kind:       domain.KindCourse,
		ObjectID:   row.ID,
		Identifier: row.Title,
		UserID:     meta.ActorID,
		UserName:   meta.ActorName,
		Comment:    meta.Comment,
		Deleted:    true,
		Data:       course.Snapshot(),
	})
}

// Undelete re-creates the live row and its join rows from the latest
// revision matching the identifier, keeping the original id. The parent
// institution must be live; the undelete controller turns that into a
// distinct outcome before calling here.
func (r *CourseRepository) Undelete(ctx context.Context, identifier string, meta domain.WriteMeta) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Course
		err := tx.Take(&existing, "title = ?", identifier).Error
		if err == nil {
			return domain.AlreadyExistsError{Kind: domain.KindCourse, Identifier: identifier}
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		latest, err := latestRevisionByIdentifier(tx, domain.KindCourse, identifier)
		if err != nil {
			return err
		}
		rev, err := revisionFromRow(*latest)
		if err != nil {
			return err
		}

		course := domain.EntityFromSnapshot(domain.KindCourse, rev.ObjectID, rev.Data).(*domain.Course)
		if !course.Complete() {
			return domain.ConflictError{Kind: domain.KindCourse, Identifier: identifier, Action: domain.ActionUndelete}
		}

		var parent models.Institution
		err = tx.Take(&parent, "id = ?", course.InstitutionID()).Error
		if err == gorm.ErrRecordNotFound {
			return domain.NotFoundError{Kind: domain.KindInstitution, Identifier: fmt.Sprintf("%d", course.InstitutionID())}
		}
		if err != nil {
			return err
		}

		row, err := courseToRow(course)
		if err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			if err == gorm.ErrDuplicatedKey {
				return domain.ConflictError{Kind: domain.KindCourse, Identifier: identifier, Action: domain.ActionUndelete}
			}
			return err
		}

		for _, role := range domain.AllRoles() {
			if err := insertEnrollments(tx, row.ID, role, course.RoleList(role)); err != nil {
				return err
			}
		}

		if err := recomputeRollups(tx, course.InstitutionID()); err != nil {
			return err
		}

		return appendRevision(tx, &domain.Revision{
			Kind:       domain.KindCourse,
			ObjectID:   row.ID,
			Identifier: identifier,
			UserID:     meta.ActorID,
			UserName:   meta.ActorName,
			Comment:    meta.Comment,
			Data:       course.Snapshot(),
		})
	})
	return wrapStorage("course.undelete", err)
}

// Enlist adds users to a role. Already-enlisted users are skipped; when
// nobody is new the call is a no-op that writes nothing. The inline
// list, the join rows, the cached count, the institution roll-ups, and
// the revision all commit together or not at all.
func (r *CourseRepository) Enlist(ctx context.Context, courseID int64, role domain.Role, userIDs []int64, meta domain.WriteMeta) ([]int64, error) {
	var added []int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		course, row, err := lockCourse(tx, courseID)
		if err != nil {
			return err
		}

		current := course.RoleList(role)
		added = idDifference(userIDs, current)
		if len(added) == 0 {
			return nil // idempotent: everyone is already enlisted
		}

		course.SetRoleList(role, append(current, added...))
		return saveRoleChange(tx, course, row, role, added, nil, meta)
	})
	if err != nil {
		return nil, wrapStorage("course.enlist", err)
	}
	return added, nil
}

// Unenlist is the symmetric removal; users not enlisted are ignored.
func (r *CourseRepository) Unenlist(ctx context.Context, courseID int64, role domain.Role, userIDs []int64, meta domain.WriteMeta) ([]int64, error) {
	var removed []int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		course, row, err := lockCourse(tx, courseID)
		if err != nil {
			return err
		}

		current := course.RoleList(role)
		removed = idIntersection(current, userIDs)
		if len(removed) == 0 {
			return nil
		}

		course.SetRoleList(role, idDifference(current, removed))
		return saveRoleChange(tx, course, row, role, nil, removed, meta)
	})
	if err != nil {
		return nil, wrapStorage("course.unenlist", err)
	}
	return removed, nil
}

func lockCourse(tx *gorm.DB, courseID int64) (*domain.Course, models.Course, error) {
	var row models.Course
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&row, "id = ?", courseID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, row, domain.NotFoundError{Kind: domain.KindCourse, Identifier: fmt.Sprintf("%d", courseID)}
	}
	if err != nil {
		return nil, row, err
	}
	course, err := courseFromRow(row)
	if err != nil {
		return nil, row, err
	}
	return course, row, nil
}

func saveRoleChange(tx *gorm.DB, course *domain.Course, row models.Course, role domain.Role, added, removed []int64, meta domain.WriteMeta) error {
	newRow, err := courseToRow(course)
	if err != nil {
		return err
	}
	newRow.CDate = row.CDate
	if err := tx.Save(&newRow).Error; err != nil {
		return err
	}

	if err := insertEnrollments(tx, course.ID(), role, added); err != nil {
		return err
	}
	if len(removed) > 0 {
		err := tx.Delete(&models.Enrollment{},
			"course_id = ? AND role = ? AND user_id IN ?", course.ID(), role.String(), removed).Error
		if err != nil {
			return err
		}
	}

	if err := recomputeRollups(tx, course.InstitutionID()); err != nil {
		return err
	}

	// the count change is a side effect, not the primary auditable
	// event, so the revision carries only the derived comment
	return appendRevision(tx, &domain.Revision{
		Kind:       domain.KindCourse,
		ObjectID:   course.ID(),
		Identifier: course.Identifier(),
		UserID:     meta.ActorID,
		UserName:   meta.ActorName,
		Comment:    meta.Comment,
		Minor:      true,
		Data:       course.Snapshot(),
	})
}

func insertEnrollments(tx *gorm.DB, courseID int64, role domain.Role, userIDs []int64) error {
	for _, userID := range userIDs {
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Enrollment{
				UserID:   userID,
				CourseID: courseID,
				Role:     role.String(),
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func syncEnrollments(tx *gorm.DB, courseID int64, role domain.Role, previous, next []int64) error {
	added := idDifference(next, previous)
	removed := idDifference(previous, next)
	if err := insertEnrollments(tx, courseID, role, added); err != nil {
		return err
	}
	if len(removed) > 0 {
		err := tx.Delete(&models.Enrollment{},
			"course_id = ? AND role = ? AND user_id IN ?", courseID, role.String(), removed).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func idDifference(a, b []int64) []int64 {
	inB := map[int64]struct{}{}
	for _, id := range b {
		inB[id] = struct{}{}
	}
	var out []int64
	for _, id := range domain.NormalizeIDs(a) {
		if _, ok := inB[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func idIntersection(a, b []int64) []int64 {
	inB := map[int64]struct{}{}
	for _, id := range b {
		inB[id] = struct{}{}
	}
	var out []int64
	for _, id := range domain.NormalizeIDs(a) {
		if _, ok := inB[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func coursesFromRows(rows []models.Course) ([]domain.Entity, error) {
	out := make([]domain.Entity, 0, len(rows))
	for _, row := range rows {
		course, err := courseFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, course)
	}
	return out, nil
}
