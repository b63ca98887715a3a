// File: internal/user/repository.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"student_portal_backend/internal/common"
	"student_portal_backend/internal/platform/database"

	"gorm.io/gorm"
)

// Repository defines the interface for user data operations.
type Repository interface {
	Create(ctx context.Context, user *User) error
	Save(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// Rebind moves a record to a new subject id, used when an identity was recreated.
	Rebind(ctx context.Context, oldID, newID string) error
	Ping(ctx context.Context) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM user repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// NormalizeEmail is the canonical form used as the secondary lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *gormRepository) Create(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicate(err) {
			return common.ErrConflict.WithDetails("User with this email or id already exists.")
		}
		return err
	}
	return nil
}

// Save writes every column of user. Concurrent saves of the same record are last-write-wins.
func (r *gormRepository) Save(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if isDuplicate(err) {
			return common.ErrConflict.WithDetails("Update failed: email already taken.")
		}
		return err
	}
	return nil
}

func (r *gormRepository) FindByID(ctx context.Context, id string) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this ID.")
		}
		return nil, err
	}
	return &userModel, nil
}

func (r *gormRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this email.")
		}
		return nil, err
	}
	return &userModel, nil
}

func (r *gormRepository) Rebind(ctx context.Context, oldID, newID string) error {
	res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", oldID).Update("id", newID)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return common.ErrConflict.WithDetails("A user with this ID already exists.")
		}
		return fmt.Errorf("rebinding user %s: %w", oldID, res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("User not found with this ID.")
	}
	return nil
}

func (r *gormRepository) Ping(ctx context.Context) error {
	return database.Ping(ctx, r.db)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
