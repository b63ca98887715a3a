// File: cmd/server/main.go
package main

import (
	"context"
	"flag"
	"log" // Standard log for critical startup/shutdown messages before/after zap is active
	"os"
	"os/signal"
	"syscall"
	"time"

	"student_portal_backend/internal/app"
	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/config"
	"student_portal_backend/internal/platform/logger"
	"student_portal_backend/internal/platform/mailer"

	"go.uber.org/zap"
)

func main() {
	sweepCmd := flag.NewFlagSet("sweep-orphans", flag.ExitOnError)
	timeout := sweepCmd.Duration("timeout", 5*time.Minute, "Deadline for the sweep run")

	if len(os.Args) > 1 && os.Args[1] == "sweep-orphans" {
		_ = sweepCmd.Parse(os.Args[2:])
		if err := runOrphanSweep(*timeout); err != nil {
			log.Fatalf("FATAL: Orphan sweep failed: %v", err)
		}
		return
	}

	startServer()
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer cleanup()

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("FATAL: Server failed to start or crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("INFO: Received signal '%s'. Shutting down server...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown due to error: %v", err)
	} else {
		log.Println("INFO: Server shutdown complete.")
	}
	log.Println("INFO: Application exiting.")
}

// runOrphanSweep retries pending identity deletions once and exits.
func runOrphanSweep(timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = appLogger.Sync() }()

	db, cleanup, err := app.ProvideDatabase(cfg, appLogger)
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := mailer.New(cfg, appLogger)
	if err != nil {
		return err
	}
	backend, err := app.ProvideIdentityBackend(cfg, app.ProvideMode(cfg, appLogger), m, appLogger)
	if err != nil {
		return err
	}
	if backend.Provider == nil {
		appLogger.Info("Demo mode, nothing to sweep.")
		return nil
	}

	job := app.ProvideOrphanSweepJob(auth.NewGORMPendingDeletionStore(db), backend, appLogger, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resolved, err := job.RunOnce(ctx)
	if err != nil {
		return err
	}
	appLogger.Info("Orphan sweep finished", zap.Int("identities_deleted", resolved))
	return nil
}
