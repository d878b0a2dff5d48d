package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/campusworks/edubase/internal/domain"
	"github.com/campusworks/edubase/internal/infra/database/models"
)

// RevisionRepository reads the append-only history log. Writes go
// through appendRevision inside the owning store's transaction; nothing
// ever updates or deletes a revision row.
type RevisionRepository struct {
	db *gorm.DB
}

func NewRevisionRepository(db *gorm.DB) *RevisionRepository {
	return &RevisionRepository{db: db}
}

func (r *RevisionRepository) Get(ctx context.Context, kind domain.Kind, objectID, revisionID int64) (*domain.Revision, error) {
	var row models.Revision
	err := r.db.WithContext(ctx).
		Where("id = ? AND kind = ? AND object_id = ?", revisionID, string(kind), objectID).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Kind: kind, Identifier: fmt.Sprintf("revision %d", revisionID)}
	}
	if err != nil {
		return nil, err
	}
	return revisionFromRow(row)
}

// PreviousOf returns the revision immediately preceding rev in the
// entity's (time, id) order, or nil when rev is the initial one.
func (r *RevisionRepository) PreviousOf(ctx context.Context, rev *domain.Revision) (*domain.Revision, error) {
	var row models.Revision
	err := r.db.WithContext(ctx).
		Where("kind = ? AND object_id = ?", string(rev.Kind), rev.ObjectID).
		Where("time < ? OR (time = ? AND id < ?)", rev.Time, rev.Time, rev.ID).
		Order("time DESC, id DESC").
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return revisionFromRow(row)
}

func (r *RevisionRepository) LatestByIdentifier(ctx context.Context, kind domain.Kind, identifier string) (*domain.Revision, error) {
	row, err := latestRevisionByIdentifier(r.db.WithContext(ctx), kind, identifier)
	if err != nil {
		return nil, err
	}
	return revisionFromRow(*row)
}

func (r *RevisionRepository) ListByObject(ctx context.Context, kind domain.Kind, objectID int64, limit int) ([]domain.Revision, error) {
	var rows []models.Revision
	q := r.db.WithContext(ctx).
		Where("kind = ? AND object_id = ?", string(kind), objectID).
		Order("time DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return revisionsFromRows(rows)
}

func (r *RevisionRepository) ListByIdentifier(ctx context.Context, kind domain.Kind, identifier string, limit int) ([]domain.Revision, error) {
	var rows []models.Revision
	q := r.db.WithContext(ctx).
		Where("kind = ? AND identifier = ?", string(kind), identifier).
		Order("time DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return revisionsFromRows(rows)
}

func (r *RevisionRepository) CountByIdentifier(ctx context.Context, kind domain.Kind, identifier string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Revision{}).
		Where("kind = ? AND identifier = ?", string(kind), identifier).
		Count(&count).Error
	return count, err
}

// appendRevision writes one history entry inside the caller's
// transaction and fills in the assigned id and time.
func appendRevision(tx *gorm.DB, rev *domain.Revision) error {
	data, err := rev.Data.MarshalJSON()
	if err != nil {
		return err
	}

	if rev.Time.IsZero() {
		rev.Time = time.Now().UTC()
	}

	row := models.Revision{
		Kind:       string(rev.Kind),
		ObjectID:   rev.ObjectID,
		Identifier: rev.Identifier,
		UserID:     rev.UserID,
		UserName:   rev.UserName,
		Comment:    rev.Comment,
		Minor:      rev.Minor,
		Deleted:    rev.Deleted,
		Time:       rev.Time,
		Data:       datatypes.JSON(data),
		Checksum:   fmt.Sprintf("%016x", xxh3.Hash(data)),
	}

	if err := tx.Create(&row).Error; err != nil {
		return err
	}

	rev.ID = row.ID
	return nil
}

func latestRevisionByIdentifier(tx *gorm.DB, kind domain.Kind, identifier string) (*models.Revision, error) {
	var row models.Revision
	err := tx.
		Where("kind = ? AND identifier = ?", string(kind), identifier).
		Order("time DESC, id DESC").
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NoRevisionsError{Kind: kind, Identifier: identifier}
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func revisionFromRow(row models.Revision) (*domain.Revision, error) {
	kind := domain.Kind(row.Kind)
	fields, err := domain.UnmarshalFields(row.Data, kind.Schema())
	if err != nil {
		return nil, err
	}
	return &domain.Revision{
		ID:         row.ID,
		Kind:       kind,
		ObjectID:   row.ObjectID,
		Identifier: row.Identifier,
		UserID:     row.UserID,
		UserName:   row.UserName,
		Comment:    row.Comment,
		Minor:      row.Minor,
		Deleted:    row.Deleted,
		Time:       row.Time,
		Data:       fields,
	}, nil
}

func revisionsFromRows(rows []models.Revision) ([]domain.Revision, error) {
	out := make([]domain.Revision, 0, len(rows))
	for _, row := range rows {
		rev, err := revisionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *rev)
	}
	return out, nil
}
