package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/memefeed/internal/domain"
)

// DraftRepository handles composer draft persistence.
type DraftRepository struct {
	db *gorm.DB
}

// NewDraftRepository creates a new DraftRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *DraftRepository: repository instance bound to db.
func NewDraftRepository(db *gorm.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Create inserts a new draft record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - draft: draft record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *DraftRepository) Create(ctx context.Context, draft *domain.Draft) error {
	if draft.Version == 0 {
		draft.Version = 1
	}
	return r.db.WithContext(ctx).Create(draft).Error
}

// GetByID retrieves a draft by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: draft ID.
// Returns:
//   - *domain.Draft: draft record if found.
//   - error: NotFound when no draft has id, or the query failure.
func (r *DraftRepository) GetByID(ctx context.Context, id string) (*domain.Draft, error) {
	var draft domain.Draft
	if err := r.db.WithContext(ctx).First(&draft, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("draft.GetByID", fmt.Sprintf("draft %s not found", id))
		}
		return nil, err
	}
	return &draft, nil
}

// ListByOwner returns the drafts of ownerID, most recently updated first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: user id of the owner.
//   - limit: maximum number of drafts; zero means no limit.
// Returns:
//   - []domain.Draft: drafts owned by ownerID.
//   - error: non-nil if the query fails.
func (r *DraftRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Draft, error) {
	var drafts []domain.Draft
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&drafts).Error; err != nil {
		return nil, err
	}
	return drafts, nil
}

// Update writes draft if the stored row still has draft.Version and is not being
// submitted. On success draft.Version is advanced.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - draft: draft record with updated fields, carrying the version it was read at.
// Returns:
//   - error: Conflict when the row changed since it was read or a submission holds it.
func (r *DraftRepository) Update(ctx context.Context, draft *domain.Draft) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.Draft{}).
		Where("id = ? AND version = ? AND status <> ?", draft.ID, draft.Version, domain.DraftStatusSubmitting).
		Updates(draftColumns(draft, now))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("draft.Update", "draft was modified or is being submitted")
	}
	draft.Version++
	draft.UpdatedAt = now
	return nil
}

// MarkSubmitting moves a draft to the submitting status. It fails to acquire the draft
// when another submission holds it or the row changed since draft was read.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - draft: draft as read by the caller; Status and Version are advanced on success.
// Returns:
//   - bool: false when the draft could not be locked.
//   - error: non-nil if the update fails.
func (r *DraftRepository) MarkSubmitting(ctx context.Context, draft *domain.Draft) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.Draft{}).
		Where("id = ? AND version = ? AND status <> ?", draft.ID, draft.Version, domain.DraftStatusSubmitting).
		Updates(map[string]interface{}{
			"status":     domain.DraftStatusSubmitting,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	draft.Status = domain.DraftStatusSubmitting
	draft.Version++
	draft.UpdatedAt = now
	return true, nil
}

// FinishSubmit writes the outcome of a submission held by MarkSubmitting.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - draft: draft in its Submitted or Failed state.
// Returns:
//   - error: Conflict when the draft is no longer submitting.
func (r *DraftRepository) FinishSubmit(ctx context.Context, draft *domain.Draft) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.Draft{}).
		Where("id = ? AND status = ?", draft.ID, domain.DraftStatusSubmitting).
		Updates(draftColumns(draft, now))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("draft.FinishSubmit", "draft is not being submitted")
	}
	draft.Version++
	draft.UpdatedAt = now
	return nil
}

// ReleaseSubmitting moves a draft out of the submitting status without touching its
// content. A draft that is not submitting is left unchanged.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: draft ID.
//   - status: status to release to.
//   - errorLog: failure text stored with the draft.
// Returns:
//   - error: non-nil if the update fails.
func (r *DraftRepository) ReleaseSubmitting(ctx context.Context, id string, status domain.DraftStatus, errorLog string) error {
	return r.db.WithContext(ctx).Model(&domain.Draft{}).
		Where("id = ? AND status = ?", id, domain.DraftStatusSubmitting).
		Updates(map[string]interface{}{
			"status":     status,
			"error_log":  errorLog,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		}).Error
}

// Delete removes a draft by its ID. Deleting a missing draft is not an error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: draft ID.
// Returns:
//   - error: Conflict while a submission holds the draft.
func (r *DraftRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	result := db.Where("id = ? AND status <> ?", id, domain.DraftStatusSubmitting).Delete(&domain.Draft{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&domain.Draft{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return domain.NewConflictError("draft.Delete", "submission in progress")
	}
	return nil
}

func draftColumns(d *domain.Draft, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"status":               d.Status,
		"picture_key":          d.PictureKey,
		"picture_name":         d.PictureName,
		"picture_content_type": d.PictureContentType,
		"picture_size":         d.PictureSize,
		"picture_width":        d.PictureWidth,
		"picture_height":       d.PictureHeight,
		"preview_url":          d.PreviewURL,
		"captions":             d.Captions,
		"description":          d.Description,
		"meme_id":              d.MemeID,
		"error_log":            d.ErrorLog,
		"version":              gorm.Expr("version + 1"),
		"updated_at":           now,
	}
}
