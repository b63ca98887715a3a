package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/config"
	"student_portal_backend/internal/identity"
	"student_portal_backend/internal/platform/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockDeleter struct {
	mock.Mock
}

func (m *mockDeleter) DeleteIdentity(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

func newPendingStore(t *testing.T) auth.PendingDeletionStore {
	t.Helper()
	db, err := database.NewSQLiteInMemory()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, &auth.PendingIdentityDeletion{}))
	return auth.NewGORMPendingDeletionStore(db)
}

func TestOrphanSweep_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := newPendingStore(t)
	require.NoError(t, store.Record(ctx, "gone", "gone@example.com", "sync failed"))
	require.NoError(t, store.Record(ctx, "ok", "ok@example.com", "sync failed"))
	require.NoError(t, store.Record(ctx, "stuck", "stuck@example.com", "verification failed"))

	deleter := new(mockDeleter)
	deleter.On("DeleteIdentity", mock.Anything, "gone").Return(fmt.Errorf("lookup: %w", identity.ErrUserNotFound))
	deleter.On("DeleteIdentity", mock.Anything, "ok").Return(nil)
	deleter.On("DeleteIdentity", mock.Anything, "stuck").Return(errors.New("provider unreachable"))

	job := NewOrphanSweepJob(store, deleter, zap.NewNop(), &config.Config{})
	resolved, err := job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resolved)
	deleter.AssertExpectations(t)

	left, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "stuck", left[0].UID)
	assert.Equal(t, 1, left[0].Attempts)
	assert.Contains(t, left[0].LastError, "provider unreachable")
}

func TestOrphanSweep_RecordIsIdempotentPerUID(t *testing.T) {
	ctx := context.Background()
	store := newPendingStore(t)
	require.NoError(t, store.Record(ctx, "u1", "a@example.com", "first"))
	require.NoError(t, store.Record(ctx, "u1", "a@example.com", "second"))

	left, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "second", left[0].Reason)
}

func TestOrphanSweep_SetupWithoutScheduleOrProvider(t *testing.T) {
	store := newPendingStore(t)

	job := NewOrphanSweepJob(store, new(mockDeleter), zap.NewNop(), &config.Config{})
	assert.NoError(t, job.SetupAndStart())

	job = NewOrphanSweepJob(store, nil, zap.NewNop(), &config.Config{OrphanSweepSchedule: "@hourly"})
	assert.NoError(t, job.SetupAndStart())

	job = NewOrphanSweepJob(store, new(mockDeleter), zap.NewNop(), &config.Config{OrphanSweepSchedule: "not a schedule"})
	assert.Error(t, job.SetupAndStart())

	job = NewOrphanSweepJob(store, new(mockDeleter), zap.NewNop(), &config.Config{OrphanSweepSchedule: "@hourly"})
	require.NoError(t, job.SetupAndStart())
	job.Stop()
}
