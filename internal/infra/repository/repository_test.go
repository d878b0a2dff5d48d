package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/campusworks/edubase/internal/domain"
	"github.com/campusworks/edubase/internal/infra/database"
	"github.com/campusworks/edubase/internal/infra/database/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func testMeta() domain.WriteMeta {
	return domain.WriteMeta{ActorID: 1, ActorName: "alice"}
}

func mustInsertInstitution(t *testing.T, repo *InstitutionRepository, name string) int64 {
	t.Helper()
	inst := domain.NewInstitution()
	inst.SetName(name)
	inst.SetCity("Berlin")
	inst.SetCountry("DE")
	id, err := repo.Insert(context.Background(), inst, testMeta())
	if err != nil {
		t.Fatalf("insert institution failed: %v", err)
	}
	return id
}

func mustInsertCourse(t *testing.T, repo *CourseRepository, institutionID int64, name, term string) int64 {
	t.Helper()
	course := domain.NewCourse()
	course.SetName(name)
	course.SetTerm(term)
	course.SetInstitutionID(institutionID)
	id, err := repo.Insert(context.Background(), course, testMeta())
	if err != nil {
		t.Fatalf("insert course failed: %v", err)
	}
	return id
}

func revisionCount(t *testing.T, db *gorm.DB, kind domain.Kind, identifier string) int64 {
	t.Helper()
	n, err := NewRevisionRepository(db).CountByIdentifier(context.Background(), kind, identifier)
	if err != nil {
		t.Fatalf("count revisions failed: %v", err)
	}
	return n
}

func TestInstitutionInsertWritesFirstRevision(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstitutionRepository(db)

	id := mustInsertInstitution(t, repo, "Uni A")
	if id == 0 {
		t.Fatalf("expected an assigned id")
	}

	e, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	inst := e.(*domain.Institution)
	if inst.CourseCount() != 0 {
		t.Fatalf("expected zeroed roll-ups, got %d", inst.CourseCount())
	}

	if n := revisionCount(t, db, domain.KindInstitution, "Uni A"); n != 1 {
		t.Fatalf("expected 1 revision, got %d", n)
	}
}

func TestInstitutionInsertRejectsDuplicateName(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstitutionRepository(db)

	mustInsertInstitution(t, repo, "Uni A")

	dup := domain.NewInstitution()
	dup.SetName("Uni A")
	_, err := repo.Insert(context.Background(), dup, testMeta())
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestInstitutionUpdateNoOpWritesNothing(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstitutionRepository(db)
	id := mustInsertInstitution(t, repo, "Uni A")

	same := domain.NewInstitution()
	same.SetID(id)
	same.SetName("Uni A")
	same.SetCity("Berlin")

	changed, err := repo.Update(context.Background(), same, testMeta())
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if changed {
		t.Fatalf("identical update reported a change")
	}
	if n := revisionCount(t, db, domain.KindInstitution, "Uni A"); n != 1 {
		t.Fatalf("no-op update wrote a revision, count %d", n)
	}
}

func TestInstitutionUpdateWritesRevisionOnChange(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstitutionRepository(db)
	id := mustInsertInstitution(t, repo, "Uni A")

	edit := domain.NewInstitution()
	edit.SetID(id)
	edit.SetCity("Hamburg")

	changed, err := repo.Update(context.Background(), edit, testMeta())
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !changed {
		t.Fatalf("expected a change")
	}

	e, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	inst := e.(*domain.Institution)
	if inst.City() != "Hamburg" || inst.Country() != "DE" {
		t.Fatalf("partial update broke untouched fields: %q %q", inst.City(), inst.Country())
	}
	if n := revisionCount(t, db, domain.KindInstitution, "Uni A"); n != 2 {
		t.Fatalf("expected 2 revisions, got %d", n)
	}
}

func TestSoftDeleteUndeleteRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstitutionRepository(db)
	id := mustInsertInstitution(t, repo, "Uni A")

	if err := repo.Remove(context.Background(), id, testMeta()); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if _, err := repo.Get(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound after remove, got %v", err)
	}
	if n := revisionCount(t, db, domain.KindInstitution, "Uni A"); n != 2 {
		t.Fatalf("expected 2 revisions after remove, got %d", n)
	}

	if err := repo.Undelete(context.Background(), "Uni A", testMeta()); err != nil {
		t.Fatalf("undelete failed: %v", err)
	}

	e, err := repo.GetByIdentifier(context.Background(), "Uni A")
	if err != nil {
		t.Fatalf("get after undelete failed: %v", err)
	}
	inst := e.(*domain.Institution)
	if inst.ID() != id {
		t.Fatalf("id continuity broken: had %d, got %d", id, inst.ID())
	}
	if inst.City() != "Berlin" || inst.Country() != "DE" {
		t.Fatalf("fields not restored: %q %q", inst.City(), inst.Country())
	}
	if n := revisionCount(t, db, domain.KindInstitution, "Uni A"); n != 3 {
		t.Fatalf("expected 3 revisions after undelete, got %d", n)
	}
}

func TestUndeleteGuardWritesNothing(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstitutionRepository(db)
	mustInsertInstitution(t, repo, "Uni A")

	err := repo.Undelete(context.Background(), "Uni A", testMeta())
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
	if n := revisionCount(t, db, domain.KindInstitution, "Uni A"); n != 1 {
		t.Fatalf("guard wrote a revision, count %d", n)
	}
}

func TestUndeleteRefusesTruncatedSnapshot(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstitutionRepository(db)

	// a hand-written history row missing most schema fields; reviving it
	// would invent defaults the entity never had
	partial := domain.NewFields()
	partial.Set(domain.FieldName, "Uni X")
	data, err := json.Marshal(partial)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	rev := models.Revision{
		Kind:       string(domain.KindInstitution),
		ObjectID:   77,
		Identifier: "Uni X",
		UserID:     1,
		UserName:   "alice",
		Deleted:    true,
		Time:       time.Now().UTC(),
		Data:       datatypes.JSON(data),
	}
	if err := db.Create(&rev).Error; err != nil {
		t.Fatalf("seed revision failed: %v", err)
	}

	err = repo.Undelete(context.Background(), "Uni X", testMeta())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected Conflict for a truncated snapshot, got %v", err)
	}

	var live int64
	if err := db.Model(&models.Institution{}).Count(&live).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if live != 0 {
		t.Fatalf("truncated snapshot produced a live row")
	}
}

func TestUndeleteWithoutHistoryFails(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstitutionRepository(db)

	err := repo.Undelete(context.Background(), "Nobody", testMeta())
	if !errors.Is(err, domain.ErrNoRevisions) {
		t.Fatalf("expected NoRevisions, got %v", err)
	}
}

func TestCourseEnlistKeepsEverythingInStep(t *testing.T) {
	db := newTestDB(t)
	instRepo := NewInstitutionRepository(db)
	courseRepo := NewCourseRepository(db)

	instID := mustInsertInstitution(t, instRepo, "Uni A")
	courseID := mustInsertCourse(t, courseRepo, instID, "Algebra", "WS26")

	added, err := courseRepo.Enlist(context.Background(), courseID, domain.RoleStudent, []int64{11, 12, 11}, testMeta())
	if err != nil {
		t.Fatalf("enlist failed: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("expected 2 added, got %v", added)
	}

	e, err := courseRepo.Get(context.Background(), courseID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	course := e.(*domain.Course)
	if !domain.ValueEqual(course.RoleList(domain.RoleStudent), []int64{11, 12}) {
		t.Fatalf("inline list wrong: %v", course.RoleList(domain.RoleStudent))
	}
	if course.RoleCount(domain.RoleStudent) != 2 {
		t.Fatalf("cached count wrong: %d", course.RoleCount(domain.RoleStudent))
	}

	var joinRows int64
	if err := db.Model(&models.Enrollment{}).Where("course_id = ?", courseID).Count(&joinRows).Error; err != nil {
		t.Fatalf("count enrollments failed: %v", err)
	}
	if joinRows != 2 {
		t.Fatalf("join table has %d rows, want 2", joinRows)
	}

	parent, err := instRepo.Get(context.Background(), instID)
	if err != nil {
		t.Fatalf("get institution failed: %v", err)
	}
	if parent.(*domain.Institution).RoleCount(domain.RoleStudent) != 2 {
		t.Fatalf("institution roll-up not updated")
	}
}

func TestCourseEnlistIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	instRepo := NewInstitutionRepository(db)
	courseRepo := NewCourseRepository(db)

	instID := mustInsertInstitution(t, instRepo, "Uni A")
	courseID := mustInsertCourse(t, courseRepo, instID, "Algebra", "WS26")

	if _, err := courseRepo.Enlist(context.Background(), courseID, domain.RoleStudent, []int64{11}, testMeta()); err != nil {
		t.Fatalf("enlist failed: %v", err)
	}
	before := revisionCount(t, db, domain.KindCourse, "Algebra (WS26)")

	added, err := courseRepo.Enlist(context.Background(), courseID, domain.RoleStudent, []int64{11}, testMeta())
	if err != nil {
		t.Fatalf("second enlist failed: %v", err)
	}
	if len(added) != 0 {
		t.Fatalf("re-enlisting reported additions: %v", added)
	}
	if after := revisionCount(t, db, domain.KindCourse, "Algebra (WS26)"); after != before {
		t.Fatalf("idempotent enlist wrote a revision")
	}
}

func TestCourseUnenlistRemovesEverywhere(t *testing.T) {
	db := newTestDB(t)
	instRepo := NewInstitutionRepository(db)
	courseRepo := NewCourseRepository(db)

	instID := mustInsertInstitution(t, instRepo, "Uni A")
	courseID := mustInsertCourse(t, courseRepo, instID, "Algebra", "WS26")

	if _, err := courseRepo.Enlist(context.Background(), courseID, domain.RoleStudent, []int64{11, 12}, testMeta()); err != nil {
		t.Fatalf("enlist failed: %v", err)
	}

	removed, err := courseRepo.Unenlist(context.Background(), courseID, domain.RoleStudent, []int64{12, 99}, testMeta())
	if err != nil {
		t.Fatalf("unenlist failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != 12 {
		t.Fatalf("expected only 12 removed, got %v", removed)
	}

	var joinRows int64
	if err := db.Model(&models.Enrollment{}).Where("course_id = ?", courseID).Count(&joinRows).Error; err != nil {
		t.Fatalf("count enrollments failed: %v", err)
	}
	if joinRows != 1 {
		t.Fatalf("join table has %d rows, want 1", joinRows)
	}
}

func TestInstitutionRemoveCascadesToCourses(t *testing.T) {
	db := newTestDB(t)
	instRepo := NewInstitutionRepository(db)
	courseRepo := NewCourseRepository(db)

	instID := mustInsertInstitution(t, instRepo, "Uni A")
	mustInsertCourse(t, courseRepo, instID, "Algebra", "WS26")
	mustInsertCourse(t, courseRepo, instID, "Analysis", "WS26")
	mustInsertCourse(t, courseRepo, instID, "Topology", "SS27")

	if err := instRepo.Remove(context.Background(), instID, domain.WriteMeta{ActorID: 1, ActorName: "alice", Comment: "closing"}); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	var liveCourses int64
	if err := db.Model(&models.Course{}).Count(&liveCourses).Error; err != nil {
		t.Fatalf("count courses failed: %v", err)
	}
	if liveCourses != 0 {
		t.Fatalf("%d courses survived the cascade", liveCourses)
	}

	// every child got its own delete revision with a derived comment
	var revs []models.Revision
	err := db.Where("kind = ? AND deleted = ?", string(domain.KindCourse), true).Find(&revs).Error
	if err != nil {
		t.Fatalf("load revisions failed: %v", err)
	}
	if len(revs) != 3 {
		t.Fatalf("expected 3 cascade revisions, got %d", len(revs))
	}
	for _, rev := range revs {
		if rev.Comment != `institution "Uni A" removed: closing` {
			t.Fatalf("unexpected cascade comment %q", rev.Comment)
		}
	}
}

func TestCourseUndeleteRebuildsEnrollments(t *testing.T) {
	db := newTestDB(t)
	instRepo := NewInstitutionRepository(db)
	courseRepo := NewCourseRepository(db)

	instID := mustInsertInstitution(t, instRepo, "Uni A")
	courseID := mustInsertCourse(t, courseRepo, instID, "Algebra", "WS26")
	if _, err := courseRepo.Enlist(context.Background(), courseID, domain.RoleStudent, []int64{11, 12}, testMeta()); err != nil {
		t.Fatalf("enlist failed: %v", err)
	}

	if err := courseRepo.Remove(context.Background(), courseID, testMeta()); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := courseRepo.Undelete(context.Background(), "Algebra (WS26)", testMeta()); err != nil {
		t.Fatalf("undelete failed: %v", err)
	}

	e, err := courseRepo.GetByIdentifier(context.Background(), "Algebra (WS26)")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	course := e.(*domain.Course)
	if course.ID() != courseID {
		t.Fatalf("id continuity broken: had %d, got %d", courseID, course.ID())
	}
	if !domain.ValueEqual(course.RoleList(domain.RoleStudent), []int64{11, 12}) {
		t.Fatalf("role list not restored: %v", course.RoleList(domain.RoleStudent))
	}

	var joinRows int64
	if err := db.Model(&models.Enrollment{}).Where("course_id = ?", courseID).Count(&joinRows).Error; err != nil {
		t.Fatalf("count enrollments failed: %v", err)
	}
	if joinRows != 2 {
		t.Fatalf("join rows not rebuilt, have %d", joinRows)
	}
}

func TestCourseInsertRequiresLiveParent(t *testing.T) {
	db := newTestDB(t)
	courseRepo := NewCourseRepository(db)

	course := domain.NewCourse()
	course.SetName("Algebra")
	course.SetTerm("WS26")
	course.SetInstitutionID(999)

	_, err := courseRepo.Insert(context.Background(), course, testMeta())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound for missing parent, got %v", err)
	}
}

func TestListByUserFollowsJoinTable(t *testing.T) {
	db := newTestDB(t)
	instRepo := NewInstitutionRepository(db)
	courseRepo := NewCourseRepository(db)

	instID := mustInsertInstitution(t, instRepo, "Uni A")
	algebra := mustInsertCourse(t, courseRepo, instID, "Algebra", "WS26")
	analysis := mustInsertCourse(t, courseRepo, instID, "Analysis", "WS26")

	if _, err := courseRepo.Enlist(context.Background(), algebra, domain.RoleStudent, []int64{11}, testMeta()); err != nil {
		t.Fatalf("enlist failed: %v", err)
	}
	if _, err := courseRepo.Enlist(context.Background(), analysis, domain.RoleInstructor, []int64{11}, testMeta()); err != nil {
		t.Fatalf("enlist failed: %v", err)
	}

	mine, err := courseRepo.ListByUser(context.Background(), 11)
	if err != nil {
		t.Fatalf("list by user failed: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 courses, got %d", len(mine))
	}

	none, err := courseRepo.ListByUser(context.Background(), 99)
	if err != nil {
		t.Fatalf("list by user failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no courses, got %d", len(none))
	}
}

func TestRevisionPreviousOfWalksHistory(t *testing.T) {
	db := newTestDB(t)
	instRepo := NewInstitutionRepository(db)
	revRepo := NewRevisionRepository(db)

	id := mustInsertInstitution(t, instRepo, "Uni A")

	edit := domain.NewInstitution()
	edit.SetID(id)
	edit.SetCity("Hamburg")
	if _, err := instRepo.Update(context.Background(), edit, testMeta()); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	revs, err := revRepo.ListByObject(context.Background(), domain.KindInstitution, id, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(revs))
	}

	// newest first
	prev, err := revRepo.PreviousOf(context.Background(), &revs[0])
	if err != nil {
		t.Fatalf("previous failed: %v", err)
	}
	if prev == nil || prev.ID != revs[1].ID {
		t.Fatalf("previous walked wrong: %+v", prev)
	}
	if prev.Data.String(domain.FieldCity) != "Berlin" {
		t.Fatalf("previous snapshot wrong: %q", prev.Data.String(domain.FieldCity))
	}

	first, err := revRepo.PreviousOf(context.Background(), prev)
	if err != nil {
		t.Fatalf("previous failed: %v", err)
	}
	if first != nil {
		t.Fatalf("initial revision has a predecessor: %+v", first)
	}
}

func TestReconcilerRepairsDrift(t *testing.T) {
	db := newTestDB(t)
	instRepo := NewInstitutionRepository(db)
	courseRepo := NewCourseRepository(db)

	instID := mustInsertInstitution(t, instRepo, "Uni A")
	courseID := mustInsertCourse(t, courseRepo, instID, "Algebra", "WS26")
	if _, err := courseRepo.Enlist(context.Background(), courseID, domain.RoleStudent, []int64{11, 12}, testMeta()); err != nil {
		t.Fatalf("enlist failed: %v", err)
	}

	// sabotage: drop a join row and skew the cached counts
	if err := db.Delete(&models.Enrollment{}, "course_id = ? AND user_id = ?", courseID, int64(12)).Error; err != nil {
		t.Fatalf("sabotage failed: %v", err)
	}
	if err := db.Model(&models.Course{}).Where("id = ?", courseID).Update("student_count", 99).Error; err != nil {
		t.Fatalf("sabotage failed: %v", err)
	}
	if err := db.Model(&models.Institution{}).Where("id = ?", instID).Update("student_count", 99).Error; err != nil {
		t.Fatalf("sabotage failed: %v", err)
	}
	// and an orphan enrollment pointing at a deleted course
	if err := db.Create(&models.Enrollment{UserID: 50, CourseID: 12345, Role: "student"}).Error; err != nil {
		t.Fatalf("sabotage failed: %v", err)
	}

	report, err := NewReconciler(db).Run(context.Background())
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if report.OrphanedRows != 1 {
		t.Fatalf("expected 1 orphan removed, got %d", report.OrphanedRows)
	}
	if report.CoursesFixed != 1 || report.InstitutionsFixed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	e, err := courseRepo.Get(context.Background(), courseID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	course := e.(*domain.Course)
	if course.RoleCount(domain.RoleStudent) != 2 {
		t.Fatalf("count not repaired: %d", course.RoleCount(domain.RoleStudent))
	}

	var joinRows int64
	if err := db.Model(&models.Enrollment{}).Where("course_id = ?", courseID).Count(&joinRows).Error; err != nil {
		t.Fatalf("count enrollments failed: %v", err)
	}
	if joinRows != 2 {
		t.Fatalf("join row not rebuilt from inline list, have %d", joinRows)
	}
}

func TestReconcilerRemoveUserStripsEveryCourse(t *testing.T) {
	db := newTestDB(t)
	instRepo := NewInstitutionRepository(db)
	courseRepo := NewCourseRepository(db)

	instID := mustInsertInstitution(t, instRepo, "Uni A")
	algebra := mustInsertCourse(t, courseRepo, instID, "Algebra", "WS26")
	analysis := mustInsertCourse(t, courseRepo, instID, "Analysis", "WS26")

	if _, err := courseRepo.Enlist(context.Background(), algebra, domain.RoleStudent, []int64{11, 12}, testMeta()); err != nil {
		t.Fatalf("enlist failed: %v", err)
	}
	if _, err := courseRepo.Enlist(context.Background(), analysis, domain.RoleInstructor, []int64{11}, testMeta()); err != nil {
		t.Fatalf("enlist failed: %v", err)
	}

	touched, err := NewReconciler(db).RemoveUser(context.Background(), 11, testMeta())
	if err != nil {
		t.Fatalf("remove user failed: %v", err)
	}
	if touched != 2 {
		t.Fatalf("expected 2 courses touched, got %d", touched)
	}

	var joinRows int64
	if err := db.Model(&models.Enrollment{}).Where("user_id = ?", int64(11)).Count(&joinRows).Error; err != nil {
		t.Fatalf("count enrollments failed: %v", err)
	}
	if joinRows != 0 {
		t.Fatalf("user still enrolled in %d rows", joinRows)
	}

	e, err := courseRepo.Get(context.Background(), algebra)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !domain.ValueEqual(e.(*domain.Course).RoleList(domain.RoleStudent), []int64{12}) {
		t.Fatalf("inline list not stripped: %v", e.(*domain.Course).RoleList(domain.RoleStudent))
	}

	// idempotent: a second pass touches nothing
	again, err := NewReconciler(db).RemoveUser(context.Background(), 11, testMeta())
	if err != nil {
		t.Fatalf("second remove user failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("second pass touched %d courses", again)
	}
}
