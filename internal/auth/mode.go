package auth

import (
	"context"

	"student_portal_backend/internal/config"
	"student_portal_backend/internal/rolefields"
	"student_portal_backend/internal/user"

	"go.uber.org/zap"
)

// Mode selects between a real identity provider and the fixed demo identity.
type Mode int

const (
	ModeLive Mode = iota
	// ModeDemo serves a fixed demo identity and never issues a real session.
	ModeDemo
)

func (m Mode) String() string {
	if m == ModeDemo {
		return "demo"
	}
	return "live"
}

// ModeFromConfig resolves the mode once at startup. An unconfigured Firebase
// backend degrades to demo with a warning instead of failing to start.
func ModeFromConfig(cfg *config.Config, logger *zap.Logger) Mode {
	switch cfg.IdentityProvider {
	case config.IdentityProviderLocal:
		return ModeLive
	case config.IdentityProviderNone:
		logger.Warn("Identity provider disabled; serving the demo identity")
		return ModeDemo
	}
	if !cfg.FirebaseConfigured() {
		logger.Warn("Firebase is not configured; serving the demo identity",
			zap.String("keyPath", cfg.FirebaseServiceAccountKeyPath))
		return ModeDemo
	}
	return ModeLive
}

// Demo identity served in ModeDemo.
const (
	DemoUID   = "demo-user"
	DemoEmail = "demo@student-portal.local"
)

// DemoUser returns a fresh copy of the demo profile.
func DemoUser() *user.User {
	return &user.User{
		ID:    DemoUID,
		Email: DemoEmail,
		Name:  "Demo Student",
		Role:  rolefields.RoleStudent,
		RoleDetails: user.RoleDetails{
			Field1: "University of Washington",
			Field2: "Computer Science",
		},
		Status: user.StatusActive,
	}
}

// SeedDemoUser stores the demo profile so profile reads work in ModeDemo.
func SeedDemoUser(ctx context.Context, users UserStore) error {
	d := DemoUser()
	_, _, err := users.Sync(ctx, user.SyncInput{
		UID:   d.ID,
		Email: d.Email,
		Name:  d.Name,
		Role:  d.Role,
		RoleDetails: &rolefields.Resolved{
			Field1: d.RoleDetails.Field1,
			Field2: d.RoleDetails.Field2,
		},
	})
	return err
}
