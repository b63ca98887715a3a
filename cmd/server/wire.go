// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"student_portal_backend/internal/app"
	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/config"
	"student_portal_backend/internal/platform/logger"
	"student_portal_backend/internal/platform/mailer"
	"student_portal_backend/internal/user"

	"github.com/google/wire"
)

// platformSet builds the logger, database, mailer and identity provider.
var platformSet = wire.NewSet(
	logger.New,
	app.ProvideDatabase,
	mailer.New,
	app.ProvideMode,
	app.ProvideIdentityBackend,
	app.ProvideProvider,
	app.ProvideBlocklist,
)

var userSet = wire.NewSet(
	user.NewGORMRepository,
	user.NewService,
	wire.Bind(new(user.Service), new(*user.ServiceImplementation)),
	wire.Bind(new(auth.UserStore), new(*user.ServiceImplementation)),
	user.NewHandler,
)

var authSet = wire.NewSet(
	auth.NewGORMPendingDeletionStore,
	auth.NewPreflight,
	auth.NewStatusGate,
	auth.NewBridge,
	app.ProvideAuthHandler,
	app.ProvideOrphanSweepJob,
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		platformSet,
		userSet,
		authSet,
		app.NewServer,
	)
	return nil, nil, nil
}
