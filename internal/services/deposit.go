package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cryptobank/backend/internal/models"
	"github.com/cryptobank/backend/pkg/logger"
	"gorm.io/gorm"
)

type DepositService struct {
	db      *gorm.DB
	deriver AddressDeriver
}

func NewDepositService(db *gorm.DB, deriver AddressDeriver) *DepositService {
	return &DepositService{db: db, deriver: deriver}
}

type DepositAddressRequest struct {
	CurrencyCode string `form:"currency_code" binding:"required,min=3,max=10"`
}

// EnsureTpub stores a new extended public key for currencyCode unless one exists.
func (s *DepositService) EnsureTpub(ctx context.Context, currencyCode string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Tpub{}).Where("currency_code = ?", currencyCode).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	value, err := s.deriver.NewExtendedPublicKey()
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&models.Tpub{CurrencyCode: currencyCode, Value: value}).Error; err != nil {
		return fmt.Errorf("store tpub for %s: %w", currencyCode, err)
	}

	logger.Info().Str("currency", currencyCode).Msg("generated deposit tpub")
	return nil
}

// GetDepositAddress returns the user's deposit address for the currency,
// deriving the next unused one on first request.
func (s *DepositService) GetDepositAddress(ctx context.Context, userID uint, currencyCode string) (*models.DepositAddress, error) {
	var address *models.DepositAddress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tpub models.Tpub
		err := forUpdate(tx).Where("currency_code = ?", currencyCode).First(&tpub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTpubNotFound
		}
		if err != nil {
			return err
		}

		var existing models.DepositAddress
		err = tx.Where("user_id = ? AND tpub_id = ?", userID, tpub.ID).First(&existing).Error
		if err == nil {
			address = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var used int64
		if err := tx.Model(&models.DepositAddress{}).Where("tpub_id = ?", tpub.ID).Count(&used).Error; err != nil {
			return err
		}
		index := uint32(used + 1)

		crypto, err := s.deriver.DeriveAddress(tpub.Value, index)
		if err != nil {
			return fmt.Errorf("derive deposit address: %w", err)
		}

		created := models.DepositAddress{
			CurrencyCode:    currencyCode,
			UserID:          userID,
			TpubID:          tpub.ID,
			DerivationIndex: index,
			CryptoAddress:   crypto,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		address = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return address, nil
}
