package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role names used by the authorization layer. A cliente submits and tracks
// orders; a pizzaiolo works the preparation line.
const (
	RoleCliente   = "cliente"
	RolePizzaiolo = "pizzaiolo"
	RoleAdmin     = "admin"
)

type User struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Name      string
	Password  string `gorm:"not null"` // bcrypt hash, never the plain text
	Role      string `gorm:"default:'cliente'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HashPassword replaces the plain-text password with its bcrypt hash.
func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

// CheckPassword verifies a plain-text password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}
