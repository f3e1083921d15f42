package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/cryptobank/backend/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var startTime = time.Now()

type MetricsHandler struct {
	db *gorm.DB
}

func NewMetricsHandler(db *gorm.DB) *MetricsHandler {
	return &MetricsHandler{db: db}
}

// Metrics returns Prometheus-compatible text format metrics.
// GET /metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "cryptobank_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "cryptobank_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "cryptobank_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "cryptobank_memory_sys_bytes", "Total memory obtained from OS in bytes", float64(m.Sys))
	writeGauge(&b, "cryptobank_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "cryptobank_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "cryptobank_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
		writeGauge(&b, "cryptobank_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
	}

	// -- Domain metrics --
	db := h.db.WithContext(c.Request.Context())
	now := time.Now().UTC()

	var users, accounts, addresses, activeTokens, storedTokens, rejected24h int64
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.Account{}).Count(&accounts)
	db.Model(&models.DepositAddress{}).Count(&addresses)
	db.Model(&models.RefreshToken{}).Where("revoked = ? AND token_validity_period > ?", false, now).Count(&activeTokens)
	db.Model(&models.RefreshToken{}).Count(&storedTokens)
	db.Model(&models.SystemLog{}).
		Where("action = ? AND created_at >= ?", "RefreshTokenRejected", now.Add(-24*time.Hour)).
		Count(&rejected24h)

	writeGauge(&b, "cryptobank_users_total", "Number of registered users", float64(users))
	writeGauge(&b, "cryptobank_accounts_total", "Number of opened accounts", float64(accounts))
	writeGauge(&b, "cryptobank_deposit_addresses_total", "Number of derived deposit addresses", float64(addresses))
	writeGauge(&b, "cryptobank_refresh_tokens_active", "Refresh tokens that can still be redeemed", float64(activeTokens))
	writeGauge(&b, "cryptobank_refresh_tokens_stored", "Refresh tokens kept for reuse detection", float64(storedTokens))
	writeGauge(&b, "cryptobank_refresh_tokens_rejected_24h", "Rejected refresh token redemptions in the last 24 hours", float64(rejected24h))

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
