package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cryptobank/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestAccountService(db *gorm.DB, clock *testClock) *AccountService {
	cfg := testConfig()
	cfg.Accounts.MaxAccountsPerUser = 2
	svc := NewAccountService(db, &cfg.Accounts)
	svc.now = clock.Now
	return svc
}

func TestCreateAccount(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	svc := newTestAccountService(db, clock)
	user := createUser(t, db, "alice@example.com")

	account, err := svc.Create(context.Background(), user.ID, &CreateAccountRequest{Number: "ACC-1", Currency: "BTC"})
	require.NoError(t, err)
	assert.NotZero(t, account.ID)
	assert.Equal(t, user.ID, account.UserID)
	assert.Zero(t, account.Amount)
	assert.True(t, account.DateOfOpening.Equal(clock.Now()))
}

func TestCreateAccount_Rules(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAccountService(db, newTestClock())
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")
	ctx := context.Background()

	_, err := svc.Create(ctx, alice.ID, &CreateAccountRequest{Number: "ACC-1", Currency: "ETH"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "accounts_validation_currency_invalid", verr.Code)

	_, err = svc.Create(ctx, alice.ID, &CreateAccountRequest{Number: "ACC-1", Currency: "BTC"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, bob.ID, &CreateAccountRequest{Number: "ACC-1", Currency: "BTC"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "accounts_validation_number_exists", verr.Code)

	_, err = svc.Create(ctx, alice.ID, &CreateAccountRequest{Number: "ACC-2", Currency: "BTC"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, alice.ID, &CreateAccountRequest{Number: "ACC-3", Currency: "BTC"})
	var conflict *LogicConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "accounts_exceeding_the_number_of_accounts", conflict.Code)

	// The limit is per user.
	_, err = svc.Create(ctx, bob.ID, &CreateAccountRequest{Number: "ACC-3", Currency: "BTC"})
	assert.NoError(t, err)
}

func TestListOwn_OnlyCallersAccounts(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAccountService(db, newTestClock())
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")
	ctx := context.Background()

	_, err := svc.Create(ctx, alice.ID, &CreateAccountRequest{Number: "A-1", Currency: "BTC"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob.ID, &CreateAccountRequest{Number: "B-1", Currency: "BTC"})
	require.NoError(t, err)

	accounts, err := svc.ListOwn(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "A-1", accounts[0].Number)
}

func TestCountByPeriod(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAccountService(db, newTestClock())
	user := createUser(t, db, "analyst@example.com")

	day := func(d, h int) time.Time { return time.Date(2024, 1, d, h, 0, 0, 0, time.UTC) }
	for i, opened := range []time.Time{day(1, 9), day(1, 23), day(2, 0), day(5, 12), day(10, 8)} {
		require.NoError(t, db.Create(&models.Account{
			Number:        string(rune('A'+i)) + "-acc",
			Currency:      "BTC",
			DateOfOpening: opened,
			UserID:        user.ID,
		}).Error)
	}

	result, err := svc.CountByPeriod(context.Background(), &AccountsByPeriodRequest{Start: "2024-01-01", End: "2024-01-05"})
	require.NoError(t, err)
	assert.Equal(t, []AccountsOpened{
		{Date: "2024-01-01", Count: 2},
		{Date: "2024-01-02", Count: 1},
		{Date: "2024-01-05", Count: 1},
	}, result)
}

func TestCountByPeriod_InvalidRange(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAccountService(db, newTestClock())

	for _, req := range []AccountsByPeriodRequest{
		{Start: "2024-01-05", End: "2024-01-05"},
		{Start: "2024-01-06", End: "2024-01-05"},
		{Start: "yesterday", End: "2024-01-05"},
	} {
		_, err := svc.CountByPeriod(context.Background(), &req)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "%+v", req)
	}
}
