package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cryptobank/backend/internal/config"
	"github.com/cryptobank/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestMaintenance(db *gorm.DB, clock *testClock) *MaintenanceService {
	svc := NewMaintenanceService(db, &config.MaintenanceConfig{
		Schedule:         "@every 1h",
		LockTTL:          10 * time.Minute,
		LogRetentionDays: 30,
	})
	svc.now = clock.Now
	return svc
}

func TestMaintenance_RunOnceDeletesExpiredRows(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	clock := newTestClock()
	issuer := newTestIssuer(db, cfg, clock)
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")

	stale, err := issuer.IssueTokens(context.Background(), alice)
	require.NoError(t, err)
	clock.Advance(cfg.RefreshToken.StoragePeriod / 2)
	fresh, err := issuer.IssueTokens(context.Background(), bob)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.SystemLog{Level: "info", Module: "Auth", CreatedAt: clock.Now().AddDate(0, 0, -40)}).Error)
	require.NoError(t, db.Create(&models.SystemLog{Level: "info", Module: "Auth", CreatedAt: clock.Now().AddDate(0, 0, -1)}).Error)

	clock.Advance(cfg.RefreshToken.StoragePeriod / 2)
	result, err := newTestMaintenance(db, clock).RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, int64(1), result.RefreshTokens)
	assert.Equal(t, int64(1), result.SystemLogs)

	var count int64
	db.Model(&models.RefreshToken{}).Where("token = ?", stale.RefreshToken).Count(&count)
	assert.Zero(t, count)
	findToken(t, db, fresh.RefreshToken)
}

func TestMaintenance_LockExcludesOtherInstances(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	first := newTestMaintenance(db, clock)
	second := newTestMaintenance(db, clock)

	ok, err := first.acquireLock(context.Background(), maintenanceLockName)
	require.NoError(t, err)
	require.True(t, ok)

	result, err := second.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	// The holder may run again.
	result, err = first.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Skipped)
}

func TestMaintenance_ExpiredLockIsTakenOver(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	first := newTestMaintenance(db, clock)
	second := newTestMaintenance(db, clock)

	ok, err := first.acquireLock(context.Background(), maintenanceLockName)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(11 * time.Minute)
	ok, err = second.acquireLock(context.Background(), maintenanceLockName)
	require.NoError(t, err)
	assert.True(t, ok)

	var lock models.SchedulerLock
	require.NoError(t, db.Where("lock_name = ?", maintenanceLockName).First(&lock).Error)
	assert.Equal(t, second.instanceID, lock.LockedBy)
}

func TestMaintenance_ReleasedLockIsFree(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	first := newTestMaintenance(db, clock)
	second := newTestMaintenance(db, clock)

	_, err := first.RunOnce(context.Background())
	require.NoError(t, err)

	result, err := second.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Skipped, "a finished pass releases the lock")
}

func TestMaintenance_StartRejectsBadSchedule(t *testing.T) {
	db := newTestDB(t)
	svc := NewMaintenanceService(db, &config.MaintenanceConfig{Schedule: "every now and then", LockTTL: time.Minute})
	assert.Error(t, svc.Start())

	svc = NewMaintenanceService(db, &config.MaintenanceConfig{Schedule: "@every 1h", LockTTL: time.Minute})
	require.NoError(t, svc.Start())
	svc.Stop()
}

func TestMaintenance_CreateLockDuplicateIsNotAcquired(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	svc := newTestMaintenance(db, clock)

	newLock := func(owner string) *models.SchedulerLock {
		return &models.SchedulerLock{
			LockName:  maintenanceLockName,
			LockKey:   "global",
			LockedBy:  owner,
			LockedAt:  clock.Now(),
			ExpiresAt: clock.Now().Add(time.Minute),
		}
	}

	acquired, err := svc.createLock(context.Background(), newLock("other-instance"))
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = svc.createLock(context.Background(), newLock(svc.instanceID))
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestMaintenance_LockInsertFailurePropagates(t *testing.T) {
	db := newTestDB(t)
	errDiskFull := errors.New("disk full")
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_insert", func(tx *gorm.DB) {
		_ = tx.AddError(errDiskFull)
	}))
	svc := newTestMaintenance(db, newTestClock())

	acquired, err := svc.acquireLock(context.Background(), maintenanceLockName)
	assert.False(t, acquired)
	require.ErrorIs(t, err, errDiskFull)

	result, err := svc.RunOnce(context.Background())
	assert.Nil(t, result)
	require.ErrorIs(t, err, errDiskFull)
}
