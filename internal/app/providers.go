package app

import (
	"fmt"

	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/config"
	"student_portal_backend/internal/identity"
	"student_portal_backend/internal/jobs"
	"student_portal_backend/internal/platform/database"
	"student_portal_backend/internal/platform/mailer"
	"student_portal_backend/internal/session"
	"student_portal_backend/internal/user"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IdentityBackend is the identity provider selected at startup. Both fields
// are nil in demo mode; Actions is set only for providers without hosted
// action pages.
type IdentityBackend struct {
	Provider identity.Provider
	Actions  auth.ActionCodeApplier
}

// ProvideDatabase opens the database and migrates the schema.
func ProvideDatabase(cfg *config.Config, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewGORM(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db, &user.User{}, &auth.PendingIdentityDeletion{}); err != nil {
		database.CloseGORMDB(db, logger)
		return nil, nil, err
	}
	logger.Info("Database schema migrated")
	return db, func() { database.CloseGORMDB(db, logger) }, nil
}

// ProvideMode resolves live or demo mode once for the process lifetime.
func ProvideMode(cfg *config.Config, logger *zap.Logger) auth.Mode {
	mode := auth.ModeFromConfig(cfg, logger)
	logger.Info("Auth mode resolved", zap.String("mode", mode.String()))
	return mode
}

// ProvideIdentityBackend builds the provider named by IDENTITY_PROVIDER.
func ProvideIdentityBackend(cfg *config.Config, mode auth.Mode, m mailer.Mailer, logger *zap.Logger) (*IdentityBackend, error) {
	if mode == auth.ModeDemo {
		return &IdentityBackend{}, nil
	}
	switch cfg.IdentityProvider {
	case config.IdentityProviderLocal:
		p := identity.NewLocalProvider(cfg, m, logger)
		return &IdentityBackend{Provider: p, Actions: p}, nil
	case config.IdentityProviderFirebase:
		p, err := identity.NewFirebaseProvider(cfg, m, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing firebase identity provider: %w", err)
		}
		return &IdentityBackend{Provider: p}, nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.IdentityProvider)
	}
}

func ProvideProvider(b *IdentityBackend) identity.Provider {
	return b.Provider
}

func ProvideBlocklist() session.Blocklist {
	return session.NewInMemoryBlocklist(session.BlocklistConfig{})
}

// ProvideAuthHandler mounts the action endpoints when the provider needs them.
func ProvideAuthHandler(bridge *auth.Bridge, cfg *config.Config, b *IdentityBackend, logger *zap.Logger) *auth.Handler {
	h := auth.NewHandler(bridge, cfg, logger)
	if b.Actions != nil {
		h.WithActionCodes(b.Actions)
	}
	return h
}

// ProvideOrphanSweepJob returns a job that is disabled when there is no provider.
func ProvideOrphanSweepJob(pending auth.PendingDeletionStore, b *IdentityBackend, logger *zap.Logger, cfg *config.Config) *jobs.OrphanSweepJob {
	var deleter jobs.IdentityDeleter
	if b.Provider != nil {
		deleter = b.Provider
	}
	return jobs.NewOrphanSweepJob(pending, deleter, logger, cfg)
}
