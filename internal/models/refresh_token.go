package models

import "time"

// RefreshToken is one issued refresh token. Revoked only ever moves from false
// to true; ReplacedByNextToken points at the token issued in its place.
// Rows are kept until TokenStoragePeriod so reuse of a rotated token can be
// told apart from an unknown one.
type RefreshToken struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Token               string    `gorm:"uniqueIndex;size:255;not null" json:"-"` // config.MaxRefreshTokenChars
	UserID              uint      `gorm:"index;not null" json:"user_id"`
	CreatedAt           time.Time `gorm:"not null" json:"created_at"`
	TokenValidityPeriod time.Time `gorm:"not null" json:"token_validity_period"`
	TokenStoragePeriod  time.Time `gorm:"index;not null" json:"token_storage_period"`
	Revoked             bool      `gorm:"not null;default:false" json:"revoked"`
	ReplacedByNextToken *uint     `json:"replaced_by_next_token,omitempty"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// IsRedeemable reports whether the token may still be exchanged at now.
func (t *RefreshToken) IsRedeemable(now time.Time) bool {
	return !t.Revoked && t.TokenValidityPeriod.After(now)
}
