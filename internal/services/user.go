package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cryptobank/backend/internal/config"
	"github.com/cryptobank/backend/internal/models"
	"github.com/cryptobank/backend/internal/utils"
	"gorm.io/gorm"
)

const minimumAge = 18

type UserService struct {
	db     *gorm.DB
	hasher *utils.PasswordHasher
	cfg    *config.UsersConfig
	now    func() time.Time
}

func NewUserService(db *gorm.DB, hasher *utils.PasswordHasher, cfg *config.UsersConfig) *UserService {
	return &UserService{
		db:     db,
		hasher: hasher,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=3,max=128"`
	BirthDate string `json:"birth_date" binding:"required,datetime=2006-01-02"`
}

type UpdateRoleRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// Register creates a user. The configured administrator email receives
// AdministratorRole, everyone else UserRole.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		return nil, newValidationError("birth_date", "users_validation_birth_date_invalid", "Birth date must be in YYYY-MM-DD format")
	}
	if birthDate.AddDate(minimumAge, 0, 0).After(s.now()) {
		return nil, newValidationError("birth_date", "users_validation_age_restriction", fmt.Sprintf("User must be at least %d years old", minimumAge))
	}

	exists, err := s.emailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, newValidationError("email", "users_validation_email_already_exists", "Email is already registered")
	}

	hash, salt, params, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := models.RoleUser
	if s.cfg.AdministratorEmail != "" && email == strings.ToLower(s.cfg.AdministratorEmail) {
		role = models.RoleAdministrator
	}

	now := s.now()
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		MemoryKiB:    params.MemoryKiB,
		Iterations:   params.Iterations,
		Parallelism:  params.Parallelism,
		BirthDate:    birthDate,
		Roles:        []models.Role{{Name: role, CreatedAt: now}},
	}
	if err := s.insertUser(ctx, user); err != nil {
		return nil, err
	}

	LogInfo("Users", "Register", "user registered", &user.ID, "", "", map[string]interface{}{"role": role})
	return user, nil
}

// GetInfo returns the user with their roles.
func (s *UserService) GetInfo(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Roles").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateRole grants an additional role to the user with the given email.
func (s *UserService) UpdateRole(ctx context.Context, req *UpdateRoleRequest) (*models.User, error) {
	if !models.IsValidRole(req.Role) {
		return nil, newValidationError("role", "users_validation_role_invalid", "Role does not exist")
	}
	role := models.UserRole(req.Role)

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found models.User
		err := forUpdate(tx).
			Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
			First(&found).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newValidationError("email", "users_validation_user_not_exists", "User does not exist")
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&found).Association("Roles").Find(&found.Roles); err != nil {
			return err
		}
		if found.HasRole(role) {
			return &LogicConflictError{Code: "users_role_already_used", Message: "User already has this role"}
		}

		granted := models.Role{UserID: found.ID, Name: role, CreatedAt: s.now()}
		if err := tx.Create(&granted).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &LogicConflictError{Code: "users_role_already_used", Message: "User already has this role"}
			}
			return err
		}
		found.Roles = append(found.Roles, granted)
		user = &found
		return nil
	})
	if err != nil {
		return nil, err
	}

	LogInfo("Users", "UpdateRole", fmt.Sprintf("role %s granted", role), &user.ID, "", "", nil)
	return user, nil
}

// insertUser creates the user row. A concurrent registration of the same
// email loses on the unique index and gets the same validation error as the
// pre-check.
func (s *UserService) insertUser(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return newValidationError("email", "users_validation_email_already_exists", "Email is already registered")
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *UserService) emailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
