package models

import (
	"time"

	"github.com/google/uuid"
)

// Session holds one outstanding refresh credential.
// The row is rotated in place on refresh: same ID, new Token and ExpiresAt.
type Session struct {
	ID        uuid.UUID
	Token     string
	AccountID uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
