// File: internal/auth/interfaces.go
package auth

import (
	"context"

	"student_portal_backend/internal/user"
)

// UserStore is the part of the user service the bridge needs.
// user.ServiceImplementation implements it.
type UserStore interface {
	Sync(ctx context.Context, in user.SyncInput) (*user.User, bool, error)
	FindByID(ctx context.Context, id string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
}

// PendingDeletionStore records identities whose rollback deletion failed.
type PendingDeletionStore interface {
	Record(ctx context.Context, uid, email, reason string) error
	List(ctx context.Context, limit int) ([]PendingIdentityDeletion, error)
	Resolve(ctx context.Context, d *PendingIdentityDeletion) error
	MarkAttempt(ctx context.Context, d *PendingIdentityDeletion, cause error) error
}
