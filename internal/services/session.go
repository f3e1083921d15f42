package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cryptobank/backend/internal/config"
	"github.com/cryptobank/backend/internal/models"
	"github.com/cryptobank/backend/internal/utils"
	"github.com/cryptobank/backend/pkg/logger"
	"gorm.io/gorm"
)

// TokenPair is an access token together with the refresh token that can
// replace it.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// SessionIssuer issues token pairs and rotates refresh tokens.
//
// A user has at most one active refresh token. Issuing a new one revokes the
// previous token and links it to its successor, so a rotated token presented
// again is recognised as reuse rather than as an unknown token.
type SessionIssuer struct {
	db       *gorm.DB
	signer   *utils.TokenSigner
	jwtCfg   *config.JWTConfig
	tokenCfg *config.RefreshTokenConfig
	newStore func(*gorm.DB) RefreshTokenStore
	now      func() time.Time
}

func NewSessionIssuer(db *gorm.DB, signer *utils.TokenSigner, jwtCfg *config.JWTConfig, tokenCfg *config.RefreshTokenConfig) *SessionIssuer {
	return &SessionIssuer{
		db:       db,
		signer:   signer,
		jwtCfg:   jwtCfg,
		tokenCfg: tokenCfg,
		newStore: func(tx *gorm.DB) RefreshTokenStore { return NewRefreshTokenStore(tx) },
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IssueTokens mints an access token and a fresh refresh token for user. The
// new token is stored, the user's previous token is revoked and the user's
// storage-expired tokens are deleted in one transaction. Nothing is returned
// unless that transaction commits.
func (s *SessionIssuer) IssueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	var pair *TokenPair
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, user.ID); err != nil {
			return err
		}
		var err error
		pair, err = s.issueInTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("issue tokens for user %d: %w", user.ID, err)
	}
	return pair, nil
}

// issueInTx expects the user's row to be locked by tx.
func (s *SessionIssuer) issueInTx(ctx context.Context, tx *gorm.DB, user *models.User) (*TokenPair, error) {
	now := s.now()

	accessExpiresAt := now.Add(s.jwtCfg.Expiration)
	accessToken, err := s.signer.Sign(user.ID, user.Email, user.RoleNames(), accessExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	value, err := utils.RandomToken(s.tokenCfg.LengthBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	store := s.newStore(tx)

	previous, err := store.FindActiveForUser(ctx, user.ID)
	if err != nil && !errors.Is(err, ErrRefreshTokenNotFound) {
		return nil, err
	}

	record := &models.RefreshToken{
		Token:               value,
		UserID:              user.ID,
		CreatedAt:           now,
		TokenValidityPeriod: now.Add(s.tokenCfg.ValidityPeriod),
		TokenStoragePeriod:  now.Add(s.tokenCfg.StoragePeriod),
	}
	if err := store.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("insert refresh token: %w", err)
	}

	if previous != nil {
		previous.Revoked = true
		previous.ReplacedByNextToken = &record.ID
		if err := store.Update(ctx, previous); err != nil {
			return nil, fmt.Errorf("revoke refresh token %d: %w", previous.ID, err)
		}
	}

	if _, err := store.DeleteExpired(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     value,
		RefreshExpiresAt: record.TokenValidityPeriod,
	}, nil
}

// RedeemRefreshToken exchanges a refresh token for a new pair.
//
// A revoked or expired token fails with ErrInvalidRefreshToken. Because a
// revoked token being presented means it may have leaked, the user's current
// active token is revoked as well, which forces a new login.
func (s *SessionIssuer) RedeemRefreshToken(ctx context.Context, value string) (*TokenPair, error) {
	if value == "" {
		return nil, ErrRefreshTokenRequired
	}

	var (
		pair      *TokenPair
		rejected  *models.RefreshToken
		contained *models.RefreshToken
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.newStore(tx)

		record, err := store.FindByToken(ctx, value)
		if err != nil {
			return err
		}
		if err := lockUser(tx, record.UserID); err != nil {
			return err
		}
		// Read again under the lock; a concurrent redemption may have rotated it.
		if record, err = store.FindByToken(ctx, value); err != nil {
			return err
		}

		if !record.IsRedeemable(s.now()) {
			rejected = record

			active, err := store.FindActiveForUser(ctx, record.UserID)
			if errors.Is(err, ErrRefreshTokenNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			active.Revoked = true
			if err := store.Update(ctx, active); err != nil {
				return fmt.Errorf("revoke active refresh token %d: %w", active.ID, err)
			}
			contained = active
			return nil
		}

		var user models.User
		if err := tx.Preload("Roles").First(&user, record.UserID).Error; err != nil {
			return err
		}
		pair, err = s.issueInTx(ctx, tx, &user)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("redeem refresh token: %w", err)
	}

	if rejected != nil {
		s.reportRejected(rejected, contained)
		return nil, ErrInvalidRefreshToken
	}
	return pair, nil
}

// RevokeRefreshToken revokes the presented token if it is still active.
func (s *SessionIssuer) RevokeRefreshToken(ctx context.Context, value string) error {
	if value == "" {
		return ErrRefreshTokenRequired
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.newStore(tx)

		record, err := store.FindByToken(ctx, value)
		if err != nil {
			return err
		}
		if err := lockUser(tx, record.UserID); err != nil {
			return err
		}
		if record, err = store.FindByToken(ctx, value); err != nil {
			return err
		}
		if record.Revoked {
			return nil
		}
		record.Revoked = true
		return store.Update(ctx, record)
	})
	if err != nil && !errors.Is(err, ErrRefreshTokenNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return err
}

func (s *SessionIssuer) reportRejected(rejected, contained *models.RefreshToken) {
	reason := "expired"
	if rejected.Revoked {
		reason = "reused"
	}

	event := logger.Warn().
		Uint("user_id", rejected.UserID).
		Uint("token_id", rejected.ID).
		Str("reason", reason)
	extra := map[string]interface{}{
		"token_id": rejected.ID,
		"reason":   reason,
	}
	if contained != nil {
		event = event.Uint("revoked_token_id", contained.ID)
		extra["revoked_token_id"] = contained.ID
	}
	event.Msg("refresh token rejected")

	userID := rejected.UserID
	LogWarning("Auth", "RefreshTokenRejected",
		fmt.Sprintf("refresh token %d rejected (%s)", rejected.ID, reason),
		&userID, "", "", extra)
}
