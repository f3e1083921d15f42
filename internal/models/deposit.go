package models

// Tpub is the extended public key deposit addresses are derived from.
type Tpub struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	CurrencyCode string `gorm:"uniqueIndex;size:10;not null" json:"currency_code"`
	Value        string `gorm:"size:255;not null" json:"-"`
}

func (Tpub) TableName() string { return "tpubs" }

type DepositAddress struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	CurrencyCode    string `gorm:"size:10;not null" json:"currency_code"`
	UserID          uint   `gorm:"uniqueIndex:idx_deposit_user_tpub;not null" json:"user_id"`
	TpubID          uint   `gorm:"uniqueIndex:idx_deposit_user_tpub;uniqueIndex:idx_deposit_tpub_index;not null" json:"-"`
	DerivationIndex uint32 `gorm:"uniqueIndex:idx_deposit_tpub_index;not null" json:"derivation_index"`
	CryptoAddress   string `gorm:"size:100;not null" json:"crypto_address"`
}

func (DepositAddress) TableName() string { return "deposit_addresses" }
