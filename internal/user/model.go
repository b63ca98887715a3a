// File: internal/user/model.go
package user

import (
	"time"

	"student_portal_backend/internal/rolefields"
)

// Account statuses. Status is only ever changed by administrative flows.
const (
	StatusActive  = "active"
	StatusBlocked = "blocked"
	StatusDeleted = "deleted"

	SubscriptionBlocked = "blocked"
)

// RoleDetails are the three role-specific values after "other" resolution.
type RoleDetails struct {
	Field1 string `gorm:"column:role_field1;type:varchar(255)" json:"field1"`
	Field2 string `gorm:"column:role_field2;type:varchar(255)" json:"field2"`
	Field3 string `gorm:"column:role_field3;type:varchar(255)" json:"field3"`
}

func detailsFromResolved(r rolefields.Resolved) RoleDetails {
	return RoleDetails{Field1: r.Field1, Field2: r.Field2, Field3: r.Field3}
}

// User is the durable application record, keyed by the identity provider subject id.
type User struct {
	ID                     string      `gorm:"type:varchar(128);primaryKey"`
	Email                  string      `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name                   string      `gorm:"type:varchar(200)"`
	Role                   string      `gorm:"type:varchar(50);index"`
	RoleDetails            RoleDetails `gorm:"embedded"`
	University             string      `gorm:"type:varchar(255)"`
	Contact                string      `gorm:"type:varchar(255)"`
	NeedsProfileCompletion bool        `gorm:"not null"`
	Status                 string      `gorm:"type:varchar(20);not null;default:'active'"`
	SubscriptionStatus     *string     `gorm:"type:varchar(20)"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
	LastLoginAt            *time.Time
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// IsDeleted reports a soft-deleted account.
func (u *User) IsDeleted() bool {
	return u.Status == StatusDeleted
}

// IsBlocked reports an account blocked either directly or through its subscription.
func (u *User) IsBlocked() bool {
	if u.Status == StatusBlocked {
		return true
	}
	return u.SubscriptionStatus != nil && *u.SubscriptionStatus == SubscriptionBlocked
}

// Denied reports whether the account may not hold a session.
func (u *User) Denied() bool {
	return u.IsDeleted() || u.IsBlocked()
}

// --- DTOs ---

// SyncRequest is the body of POST /users/sync.
type SyncRequest struct {
	FirebaseUID string                `json:"firebaseUid,omitempty"`
	Email       string                `json:"email" binding:"required,email"`
	Name        string                `json:"name" binding:"omitempty,max=200"`
	Role        string                `json:"role,omitempty"`
	University  string                `json:"university,omitempty" binding:"omitempty,max=255"`
	Contact     string                `json:"contact,omitempty" binding:"omitempty,max=255"`
	RoleDetails *rolefields.RawFields `json:"roleDetails,omitempty"`
}

// SyncInput is what the service needs to fetch-or-create a record.
type SyncInput struct {
	UID         string
	Email       string
	Name        string
	Role        string
	University  string
	Contact     string
	RoleDetails *rolefields.Resolved
	// MarkLogin stamps LastLoginAt.
	MarkLogin bool
}

// CompleteProfileRequest is the body of POST /users/me/complete-profile.
type CompleteProfileRequest struct {
	Role        string               `json:"role" binding:"required"`
	RoleDetails rolefields.RawFields `json:"roleDetails"`
	University  string               `json:"university,omitempty" binding:"omitempty,max=255"`
	Contact     string               `json:"contact,omitempty" binding:"omitempty,max=255"`
}

// ProfileUpdate is the body of PATCH /users/me. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name        *string               `json:"name,omitempty" binding:"omitempty,min=2,max=200"`
	University  *string               `json:"university,omitempty" binding:"omitempty,max=255"`
	Contact     *string               `json:"contact,omitempty" binding:"omitempty,max=255"`
	RoleDetails *rolefields.RawFields `json:"roleDetails,omitempty"`
}

// UserResponse is the API view of a User.
type UserResponse struct {
	ID                     string      `json:"id"`
	Email                  string      `json:"email"`
	Name                   string      `json:"name"`
	Role                   string      `json:"role,omitempty"`
	RoleDetails            RoleDetails `json:"roleDetails"`
	University             string      `json:"university,omitempty"`
	Contact                string      `json:"contact,omitempty"`
	NeedsProfileCompletion bool        `json:"needsProfileCompletion"`
	Status                 string      `json:"status"`
	SubscriptionStatus     *string     `json:"subscriptionStatus,omitempty"`
	CreatedAt              time.Time   `json:"createdAt"`
	UpdatedAt              time.Time   `json:"updatedAt"`
	LastLoginAt            *time.Time  `json:"lastLoginAt,omitempty"`
}

// ToUserResponse converts a User model to a UserResponse DTO.
func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:                     u.ID,
		Email:                  u.Email,
		Name:                   u.Name,
		Role:                   u.Role,
		RoleDetails:            u.RoleDetails,
		University:             u.University,
		Contact:                u.Contact,
		NeedsProfileCompletion: u.NeedsProfileCompletion,
		Status:                 u.Status,
		SubscriptionStatus:     u.SubscriptionStatus,
		CreatedAt:              u.CreatedAt,
		UpdatedAt:              u.UpdatedAt,
		LastLoginAt:            u.LastLoginAt,
	}
}
