package auth

import (
	"context"
	"fmt"

	"student_portal_backend/internal/common"

	"gorm.io/gorm"
)

// PendingIdentityDeletion is an identity that a registration rollback could
// not delete. The orphan sweeper retries it until it is gone.
type PendingIdentityDeletion struct {
	common.BaseModel
	UID       string `gorm:"type:varchar(128);uniqueIndex;not null"`
	Email     string `gorm:"type:varchar(255)"`
	Reason    string `gorm:"type:text"`
	Attempts  int    `gorm:"not null"`
	LastError string `gorm:"type:text"`
}

// TableName specifies the table name for PendingIdentityDeletion.
func (PendingIdentityDeletion) TableName() string {
	return "pending_identity_deletions"
}

type gormPendingDeletionStore struct {
	db *gorm.DB
}

// NewGORMPendingDeletionStore creates a PendingDeletionStore over db.
func NewGORMPendingDeletionStore(db *gorm.DB) PendingDeletionStore {
	return &gormPendingDeletionStore{db: db}
}

func (s *gormPendingDeletionStore) Record(ctx context.Context, uid, email, reason string) error {
	var existing PendingIdentityDeletion
	err := s.db.WithContext(ctx).Where("uid = ?", uid).Limit(1).Find(&existing).Error
	if err != nil {
		return fmt.Errorf("looking up pending deletion for %s: %w", uid, err)
	}
	if existing.UID != "" {
		existing.Reason = reason
		return s.db.WithContext(ctx).Save(&existing).Error
	}
	return s.db.WithContext(ctx).Create(&PendingIdentityDeletion{UID: uid, Email: email, Reason: reason}).Error
}

// List returns the least-attempted entries first.
func (s *gormPendingDeletionStore) List(ctx context.Context, limit int) ([]PendingIdentityDeletion, error) {
	var out []PendingIdentityDeletion
	q := s.db.WithContext(ctx).Order("attempts ASC").Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing pending deletions: %w", err)
	}
	return out, nil
}

func (s *gormPendingDeletionStore) Resolve(ctx context.Context, d *PendingIdentityDeletion) error {
	return s.db.WithContext(ctx).Delete(&PendingIdentityDeletion{}, "id = ?", d.ID).Error
}

func (s *gormPendingDeletionStore) MarkAttempt(ctx context.Context, d *PendingIdentityDeletion, cause error) error {
	d.Attempts++
	if cause != nil {
		d.LastError = cause.Error()
	}
	return s.db.WithContext(ctx).Model(d).Updates(map[string]interface{}{
		"attempts":   d.Attempts,
		"last_error": d.LastError,
	}).Error
}
