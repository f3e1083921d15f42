package main

import (
	"context"
	"fmt"

	"github.com/cryptobank/backend/internal/config"
	"github.com/cryptobank/backend/internal/handlers"
	"github.com/cryptobank/backend/internal/models"
	"github.com/cryptobank/backend/internal/services"
	"github.com/cryptobank/backend/internal/utils"
	"github.com/cryptobank/backend/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	ctx              context.Context
	db               *gorm.DB
	signer           *utils.TokenSigner
	maintenance      *services.MaintenanceService
	authHandler      *handlers.AuthHandler
	userHandler      *handlers.UserHandler
	accountHandler   *handlers.AccountHandler
	depositHandler   *handlers.DepositHandler
	systemLogHandler *handlers.SystemLogHandler
	healthHandler    *handlers.HealthHandler
	metricsHandler   *handlers.MetricsHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
// Background work started here stops when ctx is done or shutdown is called.
func bootstrap(ctx context.Context, cfg *config.Config) (*appServices, error) {
	if err := models.InitDB(&cfg.Database, cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	db := models.GetDB()

	if err := models.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	services.InitSystemLogger(db)

	key, err := cfg.JWT.SigningKeyBytes()
	if err != nil {
		return nil, fmt.Errorf("decode jwt signing key: %w", err)
	}
	signer := utils.NewTokenSigner(key, cfg.JWT.Issuer, cfg.JWT.Audience)

	ph := cfg.PasswordHashing
	hasher := utils.NewPasswordHasher(utils.HashParams{
		MemoryKiB:   ph.MemoryKiB,
		Iterations:  ph.Iterations,
		Parallelism: ph.Parallelism,
	}, ph.SaltLength, ph.KeyLength)

	deriver, err := services.NewHDAddressDeriver(cfg.Deposits.Network)
	if err != nil {
		return nil, err
	}
	depositService := services.NewDepositService(db, deriver)
	if err := depositService.EnsureTpub(ctx, cfg.Deposits.CurrencyCode); err != nil {
		return nil, fmt.Errorf("prepare deposit key: %w", err)
	}

	maintenance := services.NewMaintenanceService(db, &cfg.Maintenance)
	if err := maintenance.Start(); err != nil {
		return nil, err
	}

	sessions := services.NewSessionIssuer(db, signer, &cfg.JWT, &cfg.RefreshToken)

	return &appServices{
		ctx:              ctx,
		db:               db,
		signer:           signer,
		maintenance:      maintenance,
		authHandler:      handlers.NewAuthHandler(services.NewAuthService(db, hasher, sessions), &cfg.RefreshToken),
		userHandler:      handlers.NewUserHandler(services.NewUserService(db, hasher, &cfg.Users)),
		accountHandler:   handlers.NewAccountHandler(services.NewAccountService(db, &cfg.Accounts)),
		depositHandler:   handlers.NewDepositHandler(depositService),
		systemLogHandler: handlers.NewSystemLogHandler(services.NewSystemLogService(db)),
		healthHandler:    handlers.NewHealthHandler(db),
		metricsHandler:   handlers.NewMetricsHandler(db),
	}, nil
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.maintenance.Stop()
	logger.Info().Msg("Maintenance scheduler stopped")

	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close database")
		}
	}
}
