package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cryptobank/backend/internal/config"
	"github.com/cryptobank/backend/internal/models"
	"gorm.io/gorm"
)

type AccountService struct {
	db  *gorm.DB
	cfg *config.AccountsConfig
	now func() time.Time
}

func NewAccountService(db *gorm.DB, cfg *config.AccountsConfig) *AccountService {
	return &AccountService{
		db:  db,
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type CreateAccountRequest struct {
	Number   string `json:"number" binding:"required,max=64"`
	Currency string `json:"currency" binding:"required,max=10"`
}

type AccountsByPeriodRequest struct {
	Start string `form:"start" binding:"required,datetime=2006-01-02"`
	End   string `form:"end" binding:"required,datetime=2006-01-02"`
}

// AccountsOpened is the number of accounts opened on one UTC day.
type AccountsOpened struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Create opens an account for the user.
func (s *AccountService) Create(ctx context.Context, userID uint, req *CreateAccountRequest) (*models.Account, error) {
	if !s.isSupportedCurrency(req.Currency) {
		return nil, newValidationError("currency", "accounts_validation_currency_invalid", "Currency is not supported")
	}

	account := &models.Account{
		Number:        req.Number,
		Currency:      req.Currency,
		DateOfOpening: s.now(),
		UserID:        userID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}

		var taken int64
		if err := tx.Model(&models.Account{}).Where("number = ?", req.Number).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return newValidationError("number", "accounts_validation_number_exists", "Account number already exists")
		}

		var owned int64
		if err := tx.Model(&models.Account{}).Where("user_id = ?", userID).Count(&owned).Error; err != nil {
			return err
		}
		if owned >= int64(s.cfg.MaxAccountsPerUser) {
			return &LogicConflictError{
				Code:    "accounts_exceeding_the_number_of_accounts",
				Message: fmt.Sprintf("A user may have at most %d accounts", s.cfg.MaxAccountsPerUser),
			}
		}

		return tx.Create(account).Error
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListOwn returns the user's accounts.
func (s *AccountService) ListOwn(ctx context.Context, userID uint) ([]models.Account, error) {
	var accounts []models.Account
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date_of_opening, id").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// CountByPeriod counts accounts opened per day between start and end, both inclusive.
func (s *AccountService) CountByPeriod(ctx context.Context, req *AccountsByPeriodRequest) ([]AccountsOpened, error) {
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		return nil, newValidationError("start", "accounts_validation_start_invalid", "Start must be in YYYY-MM-DD format")
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		return nil, newValidationError("end", "accounts_validation_end_invalid", "End must be in YYYY-MM-DD format")
	}
	if !start.Before(end) {
		return nil, newValidationError("start", "accounts_validation_start_after_end", "Start must be before end")
	}

	var opened []time.Time
	err = s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("date_of_opening >= ? AND date_of_opening < ?", start, end.AddDate(0, 0, 1)).
		Pluck("date_of_opening", &opened).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, t := range opened {
		counts[t.UTC().Format("2006-01-02")]++
	}

	result := make([]AccountsOpened, 0, len(counts))
	for date, count := range counts {
		result = append(result, AccountsOpened{Date: date, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

func (s *AccountService) isSupportedCurrency(currency string) bool {
	for _, c := range s.cfg.Currencies {
		if c == currency {
			return true
		}
	}
	return false
}
