package models

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrate applies every pending schema migration.
func Migrate(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, migrations()).Migrate()
}

// RollbackLast reverts the most recently applied migration.
func RollbackLast(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, migrations()).RollbackLast()
}

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "202307010001_users_and_roles",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&User{}, &Role{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&Role{}, &User{})
			},
		},
		{
			ID: "202307010002_refresh_tokens",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&RefreshToken{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&RefreshToken{})
			},
		},
		{
			ID: "202307150001_accounts",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Account{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&Account{})
			},
		},
		{
			ID: "202308010001_deposit_addresses",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Tpub{}, &DepositAddress{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&DepositAddress{}, &Tpub{})
			},
		},
		{
			ID: "202308200001_system_logs_and_scheduler_locks",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&SystemLog{}, &SchedulerLock{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&SchedulerLock{}, &SystemLog{})
			},
		},
	}
}
