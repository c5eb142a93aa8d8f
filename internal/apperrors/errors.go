package apperrors

import (
	"errors"
)

var (
	ErrAccountExists      = errors.New("account already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountDeactivated = errors.New("account is deactivated")

	ErrLinkNotFound    = errors.New("magic link not found")
	ErrLinkExpired     = errors.New("magic link is expired")
	ErrLinkAlreadyUsed = errors.New("magic link is already used")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session is expired")

	ErrInvalidCredential = errors.New("credential is invalid")
	ErrSelfActionDenied  = errors.New("administrators may not modify their own account")
)
