package models

import "time"

// Account is a currency account. Amount is kept in minor units and is not
// changed by this service.
type Account struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Number        string    `gorm:"uniqueIndex;size:64;not null" json:"number"`
	Currency      string    `gorm:"size:10;not null" json:"currency"`
	Amount        int64     `gorm:"not null;default:0" json:"amount"`
	DateOfOpening time.Time `gorm:"index;not null" json:"date_of_opening"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
}

func (Account) TableName() string { return "accounts" }
