package repository

import (
	"context"
	"errors"
	"time"

	"inmopresence/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PresenceRepository struct {
	db *gorm.DB
}

func NewPresenceRepository(db *gorm.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// Upsert inserts or refreshes the caller's presence row. user_id is the
// natural key; concurrent heartbeats for the same user race to overwrite
// one row, which is the intended last-write-wins behavior.
func (r *PresenceRepository) Upsert(ctx context.Context, p *models.UserPresence) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "full_name", "avatar_url", "whatsapp", "email", "last_seen"}),
	}).Create(p).Error
}

// Delete removes the presence row. Deleting an absent row is success;
// the offline endpoint must be idempotent.
func (r *PresenceRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserPresence{}).Error
}

// GetByUserID returns nil without error when no row exists.
func (r *PresenceRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserPresence, error) {
	var p models.UserPresence
	err := r.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActiveSince returns rows with last_seen strictly after the cutoff,
// newest first. Strict comparison: a row aged exactly the staleness
// threshold is offline.
func (r *PresenceRepository) ListActiveSince(ctx context.Context, cutoff time.Time) ([]models.UserPresence, error) {
	var rows []models.UserPresence
	err := r.db.WithContext(ctx).
		Where("last_seen > ?", cutoff).
		Order("last_seen DESC").
		Find(&rows).Error
	return rows, err
}

// DeleteStaleBefore purges rows untouched since the cutoff. Such rows are
// already invisible to readers; this keeps the table from accumulating
// ghosts of sessions that never said goodbye.
func (r *PresenceRepository) DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("last_seen <= ?", cutoff).
		Delete(&models.UserPresence{})
	return res.RowsAffected, res.Error
}
