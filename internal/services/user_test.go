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

func newTestUserService(db *gorm.DB) *UserService {
	cfg := testConfig()
	cfg.Users = config.UsersConfig{AdministratorEmail: "Admin@CryptoBank.test"}
	svc := NewUserService(db, testHasher(cfg), &cfg.Users)
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestRegister_CreatesUserWithUserRole(t *testing.T) {
	db := newTestDB(t)
	svc := newTestUserService(db)

	user, err := svc.Register(context.Background(), &RegisterRequest{
		Email:     "  New.User@Example.com ",
		Password:  "secret",
		BirthDate: "2000-01-01",
	})
	require.NoError(t, err)

	assert.Equal(t, "new.user@example.com", user.Email)
	assert.NotEqual(t, "secret", user.PasswordHash)
	assert.NotZero(t, user.MemoryKiB)
	require.Len(t, user.Roles, 1)
	assert.Equal(t, models.RoleUser, user.Roles[0].Name)

	info, err := svc.GetInfo(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"UserRole"}, info.RoleNames())
}

func TestRegister_AdministratorEmail(t *testing.T) {
	db := newTestDB(t)
	svc := newTestUserService(db)

	user, err := svc.Register(context.Background(), &RegisterRequest{
		Email:     "admin@cryptobank.test",
		Password:  "secret",
		BirthDate: "1980-05-05",
	})
	require.NoError(t, err)
	assert.True(t, user.HasRole(models.RoleAdministrator))
	assert.False(t, user.HasRole(models.RoleUser))
}

func TestRegister_AgeRestriction(t *testing.T) {
	db := newTestDB(t)
	svc := newTestUserService(db)

	tests := []struct {
		birthDate string
		wantErr   bool
	}{
		{"2006-06-15", false}, // eighteenth birthday today
		{"2006-06-16", true},
		{"2010-01-01", true},
	}

	for i, tt := range tests {
		_, err := svc.Register(context.Background(), &RegisterRequest{
			Email:     string(rune('a'+i)) + "@example.com",
			Password:  "secret",
			BirthDate: tt.birthDate,
		})
		if !tt.wantErr {
			assert.NoError(t, err, tt.birthDate)
			continue
		}
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), tt.birthDate)
		assert.Equal(t, "users_validation_age_restriction", verr.Code)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	svc := newTestUserService(db)
	req := &RegisterRequest{Email: "dup@example.com", Password: "secret", BirthDate: "1990-01-01"}

	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	req.Email = "DUP@example.com"
	_, err = svc.Register(context.Background(), req)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Field)
	assert.Equal(t, "users_validation_email_already_exists", verr.Code)
}

func TestInsertUser_EmailTakenAfterCheck(t *testing.T) {
	db := newTestDB(t)
	svc := newTestUserService(db)

	first, err := svc.Register(context.Background(), &RegisterRequest{
		Email: "race@example.com", Password: "secret", BirthDate: "1990-01-01",
	})
	require.NoError(t, err)

	// Same row a second registration builds after its existence check passed.
	second := &models.User{
		Email:        first.Email,
		PasswordHash: first.PasswordHash,
		PasswordSalt: first.PasswordSalt,
		MemoryKiB:    first.MemoryKiB,
		Iterations:   first.Iterations,
		Parallelism:  first.Parallelism,
		BirthDate:    first.BirthDate,
		Roles:        []models.Role{{Name: models.RoleUser, CreatedAt: time.Now().UTC()}},
	}
	err = svc.insertUser(context.Background(), second)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "email", verr.Field)
	assert.Equal(t, "users_validation_email_already_exists", verr.Code)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetInfo_UnknownUser(t *testing.T) {
	db := newTestDB(t)
	_, err := newTestUserService(db).GetInfo(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateRole(t *testing.T) {
	db := newTestDB(t)
	svc := newTestUserService(db)
	createUser(t, db, "analyst@example.com")

	user, err := svc.UpdateRole(context.Background(), &UpdateRoleRequest{Email: "Analyst@example.com", Role: "AnalystRole"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"UserRole", "AnalystRole"}, user.RoleNames())

	info, err := svc.GetInfo(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, info.Roles, 2)
}

func TestUpdateRole_Failures(t *testing.T) {
	db := newTestDB(t)
	svc := newTestUserService(db)
	createUser(t, db, "user@example.com")

	_, err := svc.UpdateRole(context.Background(), &UpdateRoleRequest{Email: "user@example.com", Role: "UserRole"})
	var conflict *LogicConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "users_role_already_used", conflict.Code)

	_, err = svc.UpdateRole(context.Background(), &UpdateRoleRequest{Email: "user@example.com", Role: "SuperRole"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "users_validation_role_invalid", verr.Code)

	_, err = svc.UpdateRole(context.Background(), &UpdateRoleRequest{Email: "ghost@example.com", Role: "AnalystRole"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "users_validation_user_not_exists", verr.Code)
}
