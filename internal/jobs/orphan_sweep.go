// File: internal/jobs/orphan_sweep.go
package jobs

import (
	"context"
	"errors"
	"time"

	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/config"
	"student_portal_backend/internal/identity"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// sweepBatchSize bounds the provider calls made by one run.
const sweepBatchSize = 100

// IdentityDeleter removes an identity from the provider.
type IdentityDeleter interface {
	DeleteIdentity(ctx context.Context, uid string) error
}

// OrphanSweepJob retries identity deletions that a registration rollback
// could not complete.
type OrphanSweepJob struct {
	pending       auth.PendingDeletionStore
	deleter       IdentityDeleter
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

// NewOrphanSweepJob creates a new OrphanSweepJob.
func NewOrphanSweepJob(
	pending auth.PendingDeletionStore,
	deleter IdentityDeleter,
	logger *zap.Logger,
	cfg *config.Config,
) *OrphanSweepJob {
	scheduler := cron.New(
		cron.WithLogger(NewCronLogger(logger.Named("cron"))),
		cron.WithChain(cron.SkipIfStillRunning(NewCronLogger(logger.Named("cron")))),
	)

	return &OrphanSweepJob{
		pending:       pending,
		deleter:       deleter,
		logger:        logger.Named("OrphanSweepJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules and starts the cron job.
func (j *OrphanSweepJob) SetupAndStart() error {
	jobSpec := j.cfg.OrphanSweepSchedule
	if jobSpec == "" {
		j.logger.Warn("Orphan sweep schedule not defined (ORPHAN_SWEEP_SCHEDULE). Job will not run.")
		return nil
	}
	if j.deleter == nil {
		j.logger.Info("No identity provider configured, orphan sweep disabled.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.runJob)
	if err != nil {
		j.logger.Error("Failed to schedule orphan sweep job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Orphan sweep job scheduled", zap.String("spec", jobSpec), zap.Any("jobID", jobID))
	j.cronScheduler.Start()
	return nil
}

func (j *OrphanSweepJob) runJob() {
	j.logger.Info("Starting orphan sweep run...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	resolved, err := j.RunOnce(ctx)
	if err != nil {
		j.logger.Error("Orphan sweep run failed", zap.Error(err))
		return
	}
	j.logger.Info("Orphan sweep run completed", zap.Int("identities_deleted", resolved))
}

// RunOnce processes one batch of pending deletions and returns how many were
// resolved. An identity that is already gone counts as resolved. Failures are
// recorded on the entry and retried on the next run.
func (j *OrphanSweepJob) RunOnce(ctx context.Context) (int, error) {
	batch, err := j.pending.List(ctx, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range batch {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		d := &batch[i]
		err := j.deleter.DeleteIdentity(ctx, d.UID)
		if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
			j.logger.Warn("Orphaned identity still not deleted",
				zap.String("uid", d.UID), zap.Int("attempts", d.Attempts+1), zap.Error(err))
			if markErr := j.pending.MarkAttempt(ctx, d, err); markErr != nil {
				j.logger.Error("Failed to record sweep attempt", zap.String("uid", d.UID), zap.Error(markErr))
			}
			continue
		}
		if err := j.pending.Resolve(ctx, d); err != nil {
			j.logger.Error("Failed to resolve pending deletion", zap.String("uid", d.UID), zap.Error(err))
			continue
		}
		resolved++
	}
	return resolved, nil
}

// Stop gracefully stops the cron scheduler.
func (j *OrphanSweepJob) Stop() {
	if j.cronScheduler == nil {
		return
	}
	j.logger.Info("Stopping orphan sweep scheduler...")
	stopCtx := j.cronScheduler.Stop()
	select {
	case <-stopCtx.Done():
		j.logger.Info("Orphan sweep scheduler stopped gracefully.")
	case <-time.After(10 * time.Second):
		j.logger.Warn("Orphan sweep scheduler stop timed out.")
	}
}
