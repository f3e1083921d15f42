package services

import (
	"context"
	"errors"
	"strings"

	"github.com/cryptobank/backend/internal/models"
	"github.com/cryptobank/backend/internal/utils"
	"github.com/cryptobank/backend/pkg/logger"
	"gorm.io/gorm"
)

type AuthService struct {
	db       *gorm.DB
	hasher   *utils.PasswordHasher
	sessions *SessionIssuer
}

func NewAuthService(db *gorm.DB, hasher *utils.PasswordHasher, sessions *SessionIssuer) *AuthService {
	return &AuthService{
		db:       db,
		hasher:   hasher,
		sessions: sessions,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=3"`
}

// Login checks the credentials and issues a token pair. A password hashed with
// outdated argon2 parameters is rehashed with the current ones.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*TokenPair, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Roles").
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	stored := utils.HashParams{
		MemoryKiB:   user.MemoryKiB,
		Iterations:  user.Iterations,
		Parallelism: user.Parallelism,
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash, user.PasswordSalt, stored) {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(stored) {
		if err := s.rehash(ctx, &user, req.Password); err != nil {
			return nil, err
		}
	}

	return s.sessions.IssueTokens(ctx, &user)
}

// Refresh rotates the presented refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.sessions.RedeemRefreshToken(ctx, refreshToken)
}

// Logout revokes the presented refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	err := s.sessions.RevokeRefreshToken(ctx, refreshToken)
	if errors.Is(err, ErrRefreshTokenNotFound) || errors.Is(err, ErrRefreshTokenRequired) {
		return nil
	}
	return err
}

func (s *AuthService) rehash(ctx context.Context, user *models.User, password string) error {
	hash, salt, params, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"password_hash": hash,
		"password_salt": salt,
		"memory_kib":    params.MemoryKiB,
		"iterations":    params.Iterations,
		"parallelism":   params.Parallelism,
	}).Error
	if err != nil {
		return err
	}

	logger.Info().Uint("user_id", user.ID).Msg("password rehashed with current parameters")
	return nil
}
