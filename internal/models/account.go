package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account role, closed set
type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleAdmin
}

type Account struct {
	ID          uuid.UUID
	Email       string
	Role        Role
	IsActive    bool
	LastLoginAt *time.Time // nil until first successful sign in
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NormalizeEmail lowercases and trims an address.
// Every email that reaches storage must pass through here first,
// accounts are unique by the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
