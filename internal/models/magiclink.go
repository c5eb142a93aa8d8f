package models

import (
	"time"

	"github.com/google/uuid"
)

type MagicLink struct {
	ID         uuid.UUID
	Token      string
	Email      string
	AccountID  *uuid.UUID // nil until bound at redemption
	ExpiresAt  time.Time
	ConsumedAt *time.Time // nil if link not redeemed yet
	CreatedAt  time.Time
}

// Redeemable reports whether the link may still be consumed at the given moment.
func (l MagicLink) Redeemable(now time.Time) bool {
	return l.ConsumedAt == nil && now.Before(l.ExpiresAt)
}
