package services

import (
	"context"
	"errors"
	"time"

	"github.com/cryptobank/backend/internal/models"
	"gorm.io/gorm"
)

// RefreshTokenStore persists refresh tokens. Implementations are bound to a
// database handle, which may be an open transaction.
type RefreshTokenStore interface {
	FindByToken(ctx context.Context, value string) (*models.RefreshToken, error)
	FindActiveForUser(ctx context.Context, userID uint) (*models.RefreshToken, error)
	Insert(ctx context.Context, token *models.RefreshToken) error
	Update(ctx context.Context, token *models.RefreshToken) error
	DeleteExpired(ctx context.Context, userID uint, asOf time.Time) (int64, error)
}

// GormRefreshTokenStore is the gorm backed RefreshTokenStore.
type GormRefreshTokenStore struct {
	db *gorm.DB
}

func NewRefreshTokenStore(db *gorm.DB) *GormRefreshTokenStore {
	return &GormRefreshTokenStore{db: db}
}

// FindByToken returns ErrRefreshTokenNotFound when no row matches value exactly.
func (s *GormRefreshTokenStore) FindByToken(ctx context.Context, value string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token = ?", value).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// FindActiveForUser returns the user's non-revoked token, or
// ErrRefreshTokenNotFound if there is none.
func (s *GormRefreshTokenStore) FindActiveForUser(ctx context.Context, userID uint) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND revoked = ?", userID, false).
		Order("id DESC").
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (s *GormRefreshTokenStore) Insert(ctx context.Context, token *models.RefreshToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

// Update writes the mutable columns of token.
func (s *GormRefreshTokenStore) Update(ctx context.Context, token *models.RefreshToken) error {
	return s.db.WithContext(ctx).
		Model(token).
		Select("revoked", "replaced_by_next_token").
		Updates(token).Error
}

// DeleteExpired removes the user's tokens whose storage period ended at or before asOf.
func (s *GormRefreshTokenStore) DeleteExpired(ctx context.Context, userID uint, asOf time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND token_storage_period <= ?", userID, asOf.UTC()).
		Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}

// DeleteAllExpired removes every token whose storage period ended at or before asOf.
func (s *GormRefreshTokenStore) DeleteAllExpired(ctx context.Context, asOf time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("token_storage_period <= ?", asOf.UTC()).
		Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}
