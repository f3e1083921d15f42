package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cryptobank/backend/internal/config"
	"github.com/cryptobank/backend/internal/models"
	"github.com/cryptobank/backend/internal/utils"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB returns a migrated in-memory database private to the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.PasswordHashing = config.PasswordHashingConfig{
		MemoryKiB:   1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.RefreshToken.ValidityPeriod = time.Hour
	cfg.RefreshToken.StoragePeriod = 24 * time.Hour
	cfg.RefreshToken.LengthBytes = 64
	return cfg
}

func testHasher(cfg *config.Config) *utils.PasswordHasher {
	ph := cfg.PasswordHashing
	return utils.NewPasswordHasher(utils.HashParams{
		MemoryKiB:   ph.MemoryKiB,
		Iterations:  ph.Iterations,
		Parallelism: ph.Parallelism,
	}, ph.SaltLength, ph.KeyLength)
}

func testSigner(cfg *config.Config) *utils.TokenSigner {
	key, _ := cfg.JWT.SigningKeyBytes()
	return utils.NewTokenSigner(key, cfg.JWT.Issuer, cfg.JWT.Audience)
}

// testClock is a controllable UTC clock.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestIssuer(db *gorm.DB, cfg *config.Config, clock *testClock) *SessionIssuer {
	issuer := NewSessionIssuer(db, testSigner(cfg), &cfg.JWT, &cfg.RefreshToken)
	issuer.now = clock.Now
	return issuer
}

// createUser inserts a user with the given roles and a password of "password".
func createUser(t *testing.T, db *gorm.DB, email string, roles ...models.UserRole) *models.User {
	t.Helper()

	hash, salt, params, err := testHasher(testConfig()).Hash("password")
	require.NoError(t, err)

	if len(roles) == 0 {
		roles = []models.UserRole{models.RoleUser}
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		MemoryKiB:    params.MemoryKiB,
		Iterations:   params.Iterations,
		Parallelism:  params.Parallelism,
		BirthDate:    time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, r := range roles {
		user.Roles = append(user.Roles, models.Role{Name: r})
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func findToken(t *testing.T, db *gorm.DB, value string) *models.RefreshToken {
	t.Helper()
	var token models.RefreshToken
	require.NoError(t, db.Where("token = ?", value).First(&token).Error)
	return &token
}

func countActive(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Where("user_id = ? AND revoked = ?", userID, false).Count(&n).Error)
	return n
}

func countTokens(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}
