package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cryptobank/backend/internal/models"
	"github.com/cryptobank/backend/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestParseRouteInfo(t *testing.T) {
	tests := []struct {
		path, method       string
		wantModule, action string
	}{
		{"/users/update-role", "PUT", "Users", "Update"},
		{"/accounts", "POST", "Accounts", "Create"},
		{"/system-logs/:id", "DELETE", "System-Logs", "Delete"},
		{"", "PATCH", "unknown", "PATCH"},
	}
	for _, tt := range tests {
		module, action := parseRouteInfo(tt.path, tt.method)
		if module != tt.wantModule || action != tt.action {
			t.Errorf("parseRouteInfo(%q, %q) = %q, %q", tt.path, tt.method, module, action)
		}
	}
}

func TestMaskSensitiveFields(t *testing.T) {
	body := `{"email":"a@b.c","password" : "hunter2","refreshToken":"abc+/=","nested":{"Token":"t"}}`
	masked := maskSensitiveFields(body)

	for _, secret := range []string{"hunter2", "abc+/=", `"t"`} {
		if strings.Contains(masked, secret) {
			t.Errorf("%s leaked in %s", secret, masked)
		}
	}
	if !strings.Contains(masked, `"email":"a@b.c"`) {
		t.Errorf("non-sensitive field altered: %s", masked)
	}
}

func TestFormatAuditMessage(t *testing.T) {
	if got := formatAuditMessage("admin@example.com", "PUT", "/users/update-role", 200); got != "[Audit] admin@example.com PUT /users/update-role → OK" {
		t.Errorf("unexpected message %q", got)
	}
	if got := formatAuditMessage("admin@example.com", "PUT", "/users/update-role", 422); !strings.HasSuffix(got, "Failed") {
		t.Errorf("unexpected message %q", got)
	}
}

func TestAuditLog_RecordsWrites(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:audit_log?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&models.SystemLog{}); err != nil {
		t.Fatal(err)
	}
	services.InitSystemLogger(db)
	t.Cleanup(func() { services.InitSystemLogger(nil) })

	router := gin.New()
	router.Use(RequestID(), func(c *gin.Context) {
		c.Set(ContextUserID, uint(1))
		c.Set(ContextEmail, "admin@example.com")
		c.Next()
	}, AuditLog())
	router.PUT("/users/update-role", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/users/get-info", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/users/update-role", strings.NewReader(`{"email":"bob@example.com","role":"AnalystRole","password":"x"}`))
	req.Header.Set(RequestIDHeader, "audit-1")
	router.ServeHTTP(w, req)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/users/get-info", nil)
	router.ServeHTTP(w, req)

	var logs []models.SystemLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected only the write to be audited, got %d entries", len(logs))
	}
	entry := logs[0]
	if entry.Module != "Users" || entry.Action != "Update" || entry.RequestID != "audit-1" {
		t.Errorf("unexpected audit entry: %+v", entry)
	}
	if !strings.Contains(entry.Extra, "***") {
		t.Errorf("password not masked: %s", entry.Extra)
	}
}
