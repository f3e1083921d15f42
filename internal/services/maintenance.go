package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cryptobank/backend/internal/config"
	"github.com/cryptobank/backend/internal/models"
	"github.com/cryptobank/backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const maintenanceLockName = "maintenance"

// MaintenanceService periodically deletes storage-expired refresh tokens and
// old system logs. A scheduler_locks row makes sure only one replica runs a
// given pass.
type MaintenanceService struct {
	db         *gorm.DB
	cfg        *config.MaintenanceConfig
	instanceID string
	scheduler  *cron.Cron
	now        func() time.Time
}

func NewMaintenanceService(db *gorm.DB, cfg *config.MaintenanceConfig) *MaintenanceService {
	return &MaintenanceService{
		db:         db,
		cfg:        cfg,
		instanceID: uuid.NewString(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// MaintenanceResult reports what one pass removed.
type MaintenanceResult struct {
	Skipped       bool  `json:"skipped"`
	RefreshTokens int64 `json:"refresh_tokens"`
	SystemLogs    int64 `json:"system_logs"`
}

func (s *MaintenanceService) Start() error {
	s.scheduler = cron.New()

	_, err := s.scheduler.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.LockTTL)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			logger.Error().Err(err).Msg("[Maintenance] pass failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule maintenance %q: %w", s.cfg.Schedule, err)
	}

	s.scheduler.Start()
	logger.Info().Str("schedule", s.cfg.Schedule).Str("instance", s.instanceID).Msg("[Maintenance] scheduler started")
	return nil
}

func (s *MaintenanceService) Stop() {
	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}
}

// RunOnce performs one pass if this instance can take the lock.
func (s *MaintenanceService) RunOnce(ctx context.Context) (*MaintenanceResult, error) {
	acquired, err := s.acquireLock(ctx, maintenanceLockName)
	if err != nil {
		return nil, fmt.Errorf("acquire maintenance lock: %w", err)
	}
	if !acquired {
		logger.Debug().Msg("[Maintenance] another instance holds the lock")
		return &MaintenanceResult{Skipped: true}, nil
	}
	defer s.releaseLock(maintenanceLockName)

	now := s.now()
	result := &MaintenanceResult{}

	result.RefreshTokens, err = NewRefreshTokenStore(s.db).DeleteAllExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	result.SystemLogs, err = NewSystemLogService(s.db.WithContext(ctx)).CleanupOldLogs(s.cfg.LogRetentionDays, now)
	if err != nil {
		return nil, fmt.Errorf("cleanup system logs: %w", err)
	}

	if result.RefreshTokens > 0 || result.SystemLogs > 0 {
		logger.Info().
			Int64("refresh_tokens", result.RefreshTokens).
			Int64("system_logs", result.SystemLogs).
			Msg("[Maintenance] removed expired rows")
	}
	return result, nil
}

// acquireLock takes the named lock if it is free, expired or already ours.
func (s *MaintenanceService) acquireLock(ctx context.Context, name string) (bool, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.LockTTL)

	var lock models.SchedulerLock
	err := s.db.WithContext(ctx).Where("lock_name = ? AND lock_key = ?", name, "global").First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		lock = models.SchedulerLock{
			LockName:  name,
			LockKey:   "global",
			LockedBy:  s.instanceID,
			LockedAt:  now,
			ExpiresAt: expiresAt,
		}
		return s.createLock(ctx, &lock)
	}
	if err != nil {
		return false, err
	}

	result := s.db.WithContext(ctx).
		Model(&models.SchedulerLock{}).
		Where("id = ? AND (expires_at <= ? OR locked_by = ?)", lock.ID, now, s.instanceID).
		Updates(map[string]interface{}{
			"locked_by":  s.instanceID,
			"locked_at":  now,
			"expires_at": expiresAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// createLock inserts the lock row. Losing the race for the unique
// (lock_name, lock_key) row means another instance holds the lock.
func (s *MaintenanceService) createLock(ctx context.Context, lock *models.SchedulerLock) (bool, error) {
	err := s.db.WithContext(ctx).Create(lock).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MaintenanceService) releaseLock(name string) {
	err := s.db.Model(&models.SchedulerLock{}).
		Where("lock_name = ? AND lock_key = ? AND locked_by = ?", name, "global", s.instanceID).
		Update("expires_at", s.now()).Error
	if err != nil {
		logger.Warn().Err(err).Str("lock", name).Msg("[Maintenance] failed to release lock")
	}
}
