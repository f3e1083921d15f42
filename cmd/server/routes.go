package main

import (
	"github.com/cryptobank/backend/internal/config"
	"github.com/cryptobank/backend/internal/middleware"
	"github.com/cryptobank/backend/internal/models"
	"github.com/cryptobank/backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	// Middleware
	r.Use(middleware.RequestID(), logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	authLimiter := middleware.NewRateLimiter(svc.ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	authRequired := middleware.AuthRequired(svc.signer)

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", svc.metricsHandler.Metrics)

	// Auth routes (public, rate limited)
	auth := r.Group("/auth", authLimiter.Middleware())
	{
		auth.POST("", svc.authHandler.Login)
		auth.GET("/get-new-tokens", svc.authHandler.GetNewTokens)
		auth.POST("/logout", svc.authHandler.Logout)
	}

	users := r.Group("/users")
	{
		users.POST("/register", authLimiter.Middleware(), svc.userHandler.Register)
		users.GET("/get-info", authRequired, svc.userHandler.GetInfo)
		users.PUT("/update-role",
			authRequired,
			middleware.RoleRequired(string(models.RoleAdministrator)),
			middleware.AuditLog(),
			svc.userHandler.UpdateRole,
		)
	}

	accounts := r.Group("/accounts", authRequired)
	{
		accounts.POST("", svc.accountHandler.Create)
		accounts.GET("/own", svc.accountHandler.ListOwn)
		accounts.GET("/get-info-by-period",
			middleware.RoleRequired(string(models.RoleAnalyst)),
			svc.accountHandler.GetInfoByPeriod,
		)
	}

	r.GET("/deposits", authRequired, svc.depositHandler.GetAddress)

	systemLogs := r.Group("/system-logs", authRequired, middleware.RoleRequired(string(models.RoleAdministrator)))
	{
		systemLogs.GET("", svc.systemLogHandler.List)
		systemLogs.GET("/modules", svc.systemLogHandler.GetModules)
	}
}
