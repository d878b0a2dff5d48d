package repository

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/campusworks/edubase/internal/domain"
	"github.com/campusworks/edubase/internal/infra/database/models"
)

// Shared plumbing for the revisioned stores: row/snapshot conversion,
// change detection, roll-up recomputation.

func institutionFromRow(row models.Institution) *domain.Institution {
	inst := domain.NewInstitution()
	inst.SetID(row.ID)
	inst.SetName(row.Name)
	inst.SetCity(row.City)
	inst.SetCountry(row.Country)

	f := domain.NewFields()
	f.Set(domain.FieldCourseCount, row.CourseCount)
	f.Set(domain.FieldStudentCount, row.StudentCount)
	f.Set(domain.FieldInstructorCount, row.InstructorCount)
	f.Set(domain.FieldOACount, row.OACount)
	f.Set(domain.FieldCACount, row.CACount)
	inst.Apply(f)

	return inst
}

func institutionToRow(inst *domain.Institution) models.Institution {
	return models.Institution{
		ID:              inst.ID(),
		Name:            inst.Name(),
		City:            inst.City(),
		Country:         inst.Country(),
		CourseCount:     inst.CourseCount(),
		StudentCount:    inst.RoleCount(domain.RoleStudent),
		InstructorCount: inst.RoleCount(domain.RoleInstructor),
		OACount:         inst.RoleCount(domain.RoleOnlineAmbassador),
		CACount:         inst.RoleCount(domain.RoleCampusAmbassador),
	}
}

func courseFromRow(row models.Course) (*domain.Course, error) {
	course := domain.NewCourse()
	course.SetID(row.ID)

	f := domain.NewFields()
	f.Set(domain.FieldTitle, row.Title)
	f.Set(domain.FieldCourseName, row.Name)
	f.Set(domain.FieldInstitutionID, row.InstitutionID)
	f.Set(domain.FieldTerm, row.Term)
	f.Set(domain.FieldStart, row.Start.UTC())
	f.Set(domain.FieldEnd, row.End.UTC())
	f.Set(domain.FieldDescription, row.Description)
	f.Set(domain.FieldToken, row.Token)
	course.Apply(f)

	lists := map[domain.Role]datatypes.JSON{
		domain.RoleStudent:          row.Students,
		domain.RoleInstructor:       row.Instructors,
		domain.RoleOnlineAmbassador: row.OnlineAmbs,
		domain.RoleCampusAmbassador: row.CampusAmbs,
	}
	for _, role := range domain.AllRoles() {
		ids, err := idsFromJSON(lists[role])
		if err != nil {
			return nil, err
		}
		course.SetRoleList(role, ids)
	}

	return course, nil
}

func courseToRow(course *domain.Course) (models.Course, error) {
	students, err := idsToJSON(course.RoleList(domain.RoleStudent))
	if err != nil {
		return models.Course{}, err
	}
	instructors, err := idsToJSON(course.RoleList(domain.RoleInstructor))
	if err != nil {
		return models.Course{}, err
	}
	onlineAmbs, err := idsToJSON(course.RoleList(domain.RoleOnlineAmbassador))
	if err != nil {
		return models.Course{}, err
	}
	campusAmbs, err := idsToJSON(course.RoleList(domain.RoleCampusAmbassador))
	if err != nil {
		return models.Course{}, err
	}

	snapshot := course.Snapshot()
	return models.Course{
		ID:              course.ID(),
		Title:           course.Identifier(),
		Name:            course.Name(),
		InstitutionID:   course.InstitutionID(),
		Term:            course.Term(),
		Start:           snapshot.Time(domain.FieldStart),
		End:             snapshot.Time(domain.FieldEnd),
		Description:     snapshot.String(domain.FieldDescription),
		Token:           snapshot.String(domain.FieldToken),
		Students:        students,
		Instructors:     instructors,
		OnlineAmbs:      onlineAmbs,
		CampusAmbs:      campusAmbs,
		StudentCount:    course.RoleCount(domain.RoleStudent),
		InstructorCount: course.RoleCount(domain.RoleInstructor),
		OACount:         course.RoleCount(domain.RoleOnlineAmbassador),
		CACount:         course.RoleCount(domain.RoleCampusAmbassador),
	}, nil
}

func idsFromJSON(data datatypes.JSON) ([]int64, error) {
	if len(data) == 0 {
		return []int64{}, nil
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return domain.NormalizeIDs(ids), nil
}

func idsToJSON(ids []int64) (datatypes.JSON, error) {
	data, err := json.Marshal(domain.NormalizeIDs(ids))
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// changedFields lists the fields present on incoming that differ from
// current. Fields absent from incoming are not updates and never count.
func changedFields(current, incoming *domain.Fields) []string {
	var changed []string
	for _, name := range incoming.Names() {
		nv, _ := incoming.Get(name)
		cv, ok := current.Get(name)
		if !ok || !domain.ValueEqual(cv, nv) {
			changed = append(changed, name)
		}
	}
	return changed
}

type rollupAgg struct {
	Courses     int64 `gorm:"column:courses"`
	Students    int64 `gorm:"column:students"`
	Instructors int64 `gorm:"column:instructors"`
	OAs         int64 `gorm:"column:oas"`
	CAs         int64 `gorm:"column:cas"`
}

// recomputeRollups rewrites an institution's aggregate columns as sums
// over its live courses. Always a full recompute, never incremental, so
// it stays correct after course re-parenting.
func recomputeRollups(tx *gorm.DB, institutionID int64) error {
	if institutionID == 0 {
		return nil
	}

	var agg rollupAgg
	err := tx.Model(&models.Course{}).
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

	return tx.Model(&models.Institution{}).
		Where("id = ?", institutionID).
		Updates(map[string]any{
			"course_count":     agg.Courses,
			"student_count":    agg.Students,
			"instructor_count": agg.Instructors,
			"oa_count":         agg.OAs,
			"ca_count":         agg.CAs,
		}).Error
}

// wrapStorage converts infrastructure failures into StorageError while
// letting typed domain errors pass through untouched.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case domain.NotFoundError, domain.AlreadyExistsError, domain.AlreadyHasIDError,
		domain.NoRevisionsError, domain.ConflictError, domain.PermissionDeniedError,
		domain.ValidationError:
		return err
	}
	return domain.StorageError{Op: op, Err: err}
}
