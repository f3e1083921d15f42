package models

import "time"

// UserRole is the closed set of roles a user can hold.
type UserRole string

const (
	RoleUser          UserRole = "UserRole"
	RoleAnalyst       UserRole = "AnalystRole"
	RoleAdministrator UserRole = "AdministratorRole"
)

// AllRoles lists every valid role.
var AllRoles = []UserRole{RoleUser, RoleAnalyst, RoleAdministrator}

// IsValidRole reports whether name belongs to the closed role set.
func IsValidRole(name string) bool {
	for _, r := range AllRoles {
		if string(r) == name {
			return true
		}
	}
	return false
}

// User represents a bank customer. The argon2id cost parameters used for
// PasswordHash are stored alongside it so they can be raised later.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	PasswordSalt string    `gorm:"size:255;not null" json:"-"`
	MemoryKiB    uint32    `gorm:"column:memory_kib;not null" json:"-"`
	Iterations   uint32    `gorm:"not null" json:"-"`
	Parallelism  uint8     `gorm:"not null" json:"-"`
	BirthDate    time.Time `gorm:"not null" json:"birth_date"`
	Roles        []Role    `gorm:"constraint:OnDelete:CASCADE" json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// RoleNames returns the user's roles as plain strings.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, string(r.Name))
	}
	return names
}

// HasRole reports whether the user already holds role.
func (u *User) HasRole(role UserRole) bool {
	for _, r := range u.Roles {
		if r.Name == role {
			return true
		}
	}
	return false
}

// Role is one granted role. A user holds each role at most once.
type Role struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_roles_user_name;not null" json:"-"`
	Name      UserRole  `gorm:"uniqueIndex:idx_roles_user_name;size:50;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (Role) TableName() string { return "roles" }
