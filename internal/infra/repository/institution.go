package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusworks/edubase/internal/domain"
	"github.com/campusworks/edubase/internal/infra/database/models"
)

// InstitutionRepository is the revisioned store for institutions. Every
// mutation re-reads the current row under a row lock before deciding
// whether anything changed, and writes the live row together with its
// revision in one transaction.
type InstitutionRepository struct {
	db *gorm.DB
}

func NewInstitutionRepository(db *gorm.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

func (r *InstitutionRepository) Kind() domain.Kind { return domain.KindInstitution }

func (r *InstitutionRepository) Get(ctx context.Context, id int64) (domain.Entity, error) {
	var row models.Institution
	err := r.db.WithContext(ctx).Take(&row, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Kind: domain.KindInstitution, Identifier: fmt.Sprintf("%d", id)}
	}
	if err != nil {
		return nil, err
	}
	return institutionFromRow(row), nil
}

func (r *InstitutionRepository) GetByIdentifier(ctx context.Context, name string) (domain.Entity, error) {
	var row models.Institution
	err := r.db.WithContext(ctx).Take(&row, "name = ?", name).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Kind: domain.KindInstitution, Identifier: name}
	}
	if err != nil {
		return nil, err
	}
	return institutionFromRow(row), nil
}

func (r *InstitutionRepository) List(ctx context.Context) ([]domain.Entity, error) {
	var rows []models.Institution
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Entity, 0, len(rows))
	for _, row := range rows {
		out = append(out, institutionFromRow(row))
	}
	return out, nil
}

func (r *InstitutionRepository) Insert(ctx context.Context, e domain.Entity, meta domain.WriteMeta) (int64, error) {
	inst, ok := e.(*domain.Institution)
	if !ok {
		return 0, fmt.Errorf("institution store got a %s", e.Kind())
	}
	if inst.ID() != 0 {
		return 0, domain.AlreadyHasIDError{Kind: domain.KindInstitution, ID: inst.ID()}
	}
	if err := inst.Validate(); err != nil {
		return 0, err
	}

	// roll-ups start at zero regardless of what the caller set
	zero := domain.NewFields()
	zero.Set(domain.FieldCourseCount, int64(0))
	zero.Set(domain.FieldStudentCount, int64(0))
	zero.Set(domain.FieldInstructorCount, int64(0))
	zero.Set(domain.FieldOACount, int64(0))
	zero.Set(domain.FieldCACount, int64(0))
	inst.Apply(zero)

	row := institutionToRow(inst)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if err == gorm.ErrDuplicatedKey {
				return domain.AlreadyExistsError{Kind: domain.KindInstitution, Identifier: inst.Name()}
			}
			return err
		}
		inst.SetID(row.ID)

		return appendRevision(tx, &domain.Revision{
			Kind:       domain.KindInstitution,
			ObjectID:   row.ID,
			Identifier: row.Name,
			UserID:     meta.ActorID,
			UserName:   meta.ActorName,
			Comment:    meta.Comment,
			Minor:      meta.Minor,
			Data:       inst.Snapshot(),
		})
	})
	if err != nil {
		return 0, wrapStorage("institution.insert", err)
	}
	return row.ID, nil
}

func (r *InstitutionRepository) Update(ctx context.Context, e domain.Entity, meta domain.WriteMeta) (bool, error) {
	if e.ID() == 0 {
		return false, domain.NotFoundError{Kind: domain.KindInstitution}
	}

	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Institution
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&row, "id = ?", e.ID()).Error
		if err == gorm.ErrRecordNotFound {
			return domain.NotFoundError{Kind: domain.KindInstitution, Identifier: fmt.Sprintf("%d", e.ID())}
		}
		if err != nil {
			return err
		}

		current := institutionFromRow(row)
		if len(changedFields(current.Snapshot(), e.Snapshot())) == 0 {
			return nil // no-op: nothing differs, write nothing
		}

		current.Apply(e.Snapshot())
		newRow := institutionToRow(current)
		newRow.CDate = row.CDate
		if err := tx.Save(&newRow).Error; err != nil {
			if err == gorm.ErrDuplicatedKey {
				return domain.AlreadyExistsError{Kind: domain.KindInstitution, Identifier: current.Name()}
			}
			return err
		}

		changed = true
		return appendRevision(tx, &domain.Revision{
			Kind:       domain.KindInstitution,
			ObjectID:   row.ID,
			Identifier: current.Name(),
			UserID:     meta.ActorID,
			UserName:   meta.ActorName,
			Comment:    meta.Comment,
			Minor:      meta.Minor,
			Data:       current.Snapshot(),
		})
	})
	if err != nil {
		return false, wrapStorage("institution.update", err)
	}
	return changed, nil
}

// Remove soft-deletes the institution: the live row goes away, history
// stays. Child courses are soft-deleted in the same transaction with a
// comment naming the parent removal.
func (r *InstitutionRepository) Remove(ctx context.Context, id int64, meta domain.WriteMeta) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Institution
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&row, "id = ?", id).Error
		if err == gorm.ErrRecordNotFound {
			return domain.NotFoundError{Kind: domain.KindInstitution, Identifier: fmt.Sprintf("%d", id)}
		}
		if err != nil {
			return err
		}

		var courses []models.Course
		if err := tx.Where("institution_id = ?", id).Find(&courses).Error; err != nil {
			return err
		}

		cascadeMeta := meta
		cascadeMeta.Comment = fmt.Sprintf("institution %q removed: %s", row.Name, meta.Comment)
		for _, courseRow := range courses {
			if err := removeCourseRow(tx, courseRow, cascadeMeta); err != nil {
				return err
			}
		}

		if err := tx.Delete(&models.Institution{}, "id = ?", id).Error; err != nil {
			return err
		}

		return appendRevision(tx, &domain.Revision{
			Kind:       domain.KindInstitution,
			ObjectID:   row.ID,
			Identifier: row.Name,
			UserID:     meta.ActorID,
			UserName:   meta.ActorName,
			Comment:    meta.Comment,
			Deleted:    true,
			Data:       institutionFromRow(row).Snapshot(),
		})
	})
	return wrapStorage("institution.remove", err)
}

// Undelete re-creates the live row from the latest revision matching
// the identifier, keeping the original id. Courses deleted alongside
// the institution stay deleted; roll-ups are recomputed from whatever
// live courses remain.
func (r *InstitutionRepository) Undelete(ctx context.Context, identifier string, meta domain.WriteMeta) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Institution
		err := tx.Take(&existing, "name = ?", identifier).Error
		if err == nil {
			return domain.AlreadyExistsError{Kind: domain.KindInstitution, Identifier: identifier}
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		latest, err := latestRevisionByIdentifier(tx, domain.KindInstitution, identifier)
		if err != nil {
			return err
		}
		rev, err := revisionFromRow(*latest)
		if err != nil {
			return err
		}

		inst := domain.EntityFromSnapshot(domain.KindInstitution, rev.ObjectID, rev.Data).(*domain.Institution)
		if !inst.Complete() {
			// a truncated snapshot would revive the row with invented
			// defaults for the missing fields
			return domain.ConflictError{Kind: domain.KindInstitution, Identifier: identifier, Action: domain.ActionUndelete}
		}
		row := institutionToRow(inst)
		if err := tx.Create(&row).Error; err != nil {
			if err == gorm.ErrDuplicatedKey {
				return domain.ConflictError{Kind: domain.KindInstitution, Identifier: identifier, Action: domain.ActionUndelete}
			}
			return err
		}

		if err := recomputeRollups(tx, row.ID); err != nil {
			return err
		}

		// snapshot the row as restored, roll-ups included
		var restored models.Institution
		if err := tx.Take(&restored, "id = ?", row.ID).Error; err != nil {
			return err
		}

		return appendRevision(tx, &domain.Revision{
			Kind:       domain.KindInstitution,
			ObjectID:   row.ID,
			Identifier: identifier,
			UserID:     meta.ActorID,
			UserName:   meta.ActorName,
			Comment:    meta.Comment,
			Data:       institutionFromRow(restored).Snapshot(),
		})
	})
	return wrapStorage("institution.undelete", err)
}
