package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"student_portal_backend/internal/common"
	"student_portal_backend/internal/rolefields"

	"go.uber.org/zap"
)

// Service is the user record API used by handlers and the auth bridge.
type Service interface {
	Sync(ctx context.Context, in SyncInput) (*User, bool, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	CompleteProfile(ctx context.Context, id string, req CompleteProfileRequest) (*User, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)
	Ping(ctx context.Context) error
}

// ServiceImplementation implements Service on top of a Repository.
type ServiceImplementation struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new user service.
func NewService(repo Repository, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:   repo,
		logger: logger.Named("UserService"),
		now:    time.Now,
	}
}

// Sync fetches or creates the record for an identity. Lookup is by subject id,
// falling back to email; an email match with a different id is rebound to the
// new id. Provided role details complete the profile. Sync never changes
// Status and never sets NeedsProfileCompletion back to true.
func (s *ServiceImplementation) Sync(ctx context.Context, in SyncInput) (*User, bool, error) {
	in.Email = NormalizeEmail(in.Email)
	if in.UID == "" || in.Email == "" {
		return nil, false, common.ErrBadRequest.WithDetails("Both identity id and email are required to sync a user.")
	}
	if in.Role != "" && !rolefields.IsValidRole(in.Role) {
		return nil, false, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown role %q.", in.Role))
	}

	existing, err := s.lookupForSync(ctx, in.UID, in.Email)
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		u := &User{
			ID:                     in.UID,
			Email:                  in.Email,
			Name:                   strings.TrimSpace(in.Name),
			Role:                   in.Role,
			University:             in.University,
			Contact:                in.Contact,
			Status:                 StatusActive,
			NeedsProfileCompletion: true,
		}
		if in.Role != "" && in.RoleDetails != nil {
			u.RoleDetails = detailsFromResolved(*in.RoleDetails)
			u.NeedsProfileCompletion = false
		}
		if in.MarkLogin {
			now := s.now()
			u.LastLoginAt = &now
		}
		if err := s.repo.Create(ctx, u); err != nil {
			s.logger.Error("Failed to create user record", zap.Error(err), zap.String("uid", in.UID))
			return nil, false, err
		}
		s.logger.Info("User record created",
			zap.String("uid", u.ID),
			zap.String("role", u.Role),
			zap.Bool("needsProfileCompletion", u.NeedsProfileCompletion))
		return u, true, nil
	}

	applySync(existing, in)
	if in.MarkLogin {
		now := s.now()
		existing.LastLoginAt = &now
	}
	if err := s.repo.Save(ctx, existing); err != nil {
		s.logger.Error("Failed to update user record", zap.Error(err), zap.String("uid", existing.ID))
		return nil, false, err
	}
	return existing, false, nil
}

func (s *ServiceImplementation) lookupForSync(ctx context.Context, uid, email string) (*User, error) {
	u, err := s.repo.FindByID(ctx, uid)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	u, err = s.repo.FindByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Rebinding user record to new identity",
		zap.String("oldUID", u.ID),
		zap.String("newUID", uid))
	if err := s.repo.Rebind(ctx, u.ID, uid); err != nil {
		return nil, err
	}
	u.ID = uid
	return u, nil
}

func applySync(u *User, in SyncInput) {
	if name := strings.TrimSpace(in.Name); name != "" {
		u.Name = name
	}
	if in.University != "" {
		u.University = in.University
	}
	if in.Contact != "" {
		u.Contact = in.Contact
	}
	if in.Role != "" && in.RoleDetails != nil {
		u.Role = in.Role
		u.RoleDetails = detailsFromResolved(*in.RoleDetails)
		u.NeedsProfileCompletion = false
	} else if in.Role != "" && u.NeedsProfileCompletion {
		// Provisional until the role fields are saved.
		u.Role = in.Role
	}
}

func (s *ServiceImplementation) FindByID(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("Error finding user by ID", zap.Error(err), zap.String("uid", id))
		}
		return nil, err
	}
	return u, nil
}

func (s *ServiceImplementation) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("Error finding user by email", zap.Error(err))
		}
		return nil, err
	}
	return u, nil
}

// CompleteProfile saves the role and its fields for a record created without
// them (federated first sign-in) and clears NeedsProfileCompletion.
func (s *ServiceImplementation) CompleteProfile(ctx context.Context, id string, req CompleteProfileRequest) (*User, error) {
	resolved, errs := rolefields.ValidateRoleFields(req.Role, req.RoleDetails)
	if !errs.Empty() {
		return nil, common.NewValidationAPIError(errs)
	}

	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Role = req.Role
	u.RoleDetails = detailsFromResolved(resolved)
	if req.University != "" {
		u.University = req.University
	}
	if req.Contact != "" {
		u.Contact = req.Contact
	}
	u.NeedsProfileCompletion = false

	if err := s.repo.Save(ctx, u); err != nil {
		s.logger.Error("Failed to save completed profile", zap.Error(err), zap.String("uid", id))
		return nil, err
	}
	s.logger.Info("Profile completed", zap.String("uid", id), zap.String("role", u.Role))
	return u, nil
}

// UpdateProfile edits a profile. There is no version check: when two sessions
// edit the same record the last write wins.
func (s *ServiceImplementation) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.RoleDetails != nil {
		if u.Role == "" {
			return nil, common.ErrUnprocessableEntity.WithDetails("Complete your profile before editing role details.")
		}
		resolved, errs := rolefields.ValidateRoleFields(u.Role, *upd.RoleDetails)
		if !errs.Empty() {
			return nil, common.NewValidationAPIError(errs)
		}
		u.RoleDetails = detailsFromResolved(resolved)
	}
	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.University != nil {
		u.University = strings.TrimSpace(*upd.University)
	}
	if upd.Contact != nil {
		u.Contact = strings.TrimSpace(*upd.Contact)
	}

	if err := s.repo.Save(ctx, u); err != nil {
		s.logger.Error("Failed to update profile", zap.Error(err), zap.String("uid", id))
		return nil, err
	}
	return u, nil
}

func (s *ServiceImplementation) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
