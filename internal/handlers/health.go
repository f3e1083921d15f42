package handlers

import (
	"context"
	"time"

	"github.com/cryptobank/backend/pkg/logger"
	"github.com/cryptobank/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler reports whether the service can reach its database.
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// CheckHealth pings the database.
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("health check: database unreachable")
		response.Error(c, response.NewServiceUnavailable("database unavailable"))
		return
	}

	response.Success(c, gin.H{
		"status":  "healthy",
		"service": "cryptobank",
		"components": gin.H{
			"database": "ok",
		},
	})
}
