package services

import (
	"errors"

	"github.com/cryptobank/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate adds a row lock to the query. sqlite has no row locks; its
// transactions already serialize writers.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockUser locks the user's row for the rest of tx. Every change to a user's
// refresh tokens goes through this lock, which keeps at most one token active.
func lockUser(tx *gorm.DB, userID uint) error {
	var user models.User
	err := forUpdate(tx).Select("id").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
