package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/models"
)

// Account repository interface
type AccountRepo interface {
	// Create account with standard role and active state
	// If account with the same email exists already has to return apperrors.ErrAccountExists
	Create(ctx context.Context, email string) (models.Account, error)

	// GetOrCreate returns the account for the email, creating it if absent.
	// Safe to call inside a transaction: losing a concurrent create race
	// must not abort the transaction, the winner's row is returned instead
	GetOrCreate(ctx context.Context, email string) (models.Account, error)

	// Get account by id or email
	// If account not found must return apperrors.ErrAccountNotFound
	GetByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)

	// List all accounts ordered by creation time
	List(ctx context.Context) ([]models.Account, error)

	// Primitive mutations composed by the admin service.
	// All of them must return apperrors.ErrAccountNotFound for an unknown id
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) (models.Account, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (models.Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// MagicLink repository interface
type MagicLinkRepo interface {
	// Save stores a new link; the token must be unique
	Save(ctx context.Context, link models.MagicLink) (models.MagicLink, error)

	// Get returns the link no matter its state (consumed or expired)
	// If link not found must return apperrors.ErrLinkNotFound
	Get(ctx context.Context, token string) (models.MagicLink, error)

	// Consume marks the link consumed and binds the account, but only
	// if it is not consumed yet. This is the linearization point of the
	// redemption flow: of two concurrent calls exactly one succeeds, the
	// other gets apperrors.ErrLinkAlreadyUsed
	Consume(ctx context.Context, token string, accountID uuid.UUID, at time.Time) (models.MagicLink, error)

	// DeleteExpired removes links whose expiry passed before the given moment
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Session repository interface
type SessionRepo interface {
	Save(ctx context.Context, session models.Session) (models.Session, error)

	// Get returns the session no matter its expiry state
	// If session not found must return apperrors.ErrSessionNotFound
	Get(ctx context.Context, token string) (models.Session, error)

	// Rotate replaces the token and expiry of the row holding oldToken,
	// keeping the row id. If no row holds oldToken (a concurrent rotation
	// won) must return apperrors.ErrSessionNotFound
	Rotate(ctx context.Context, oldToken string, newToken string, expiresAt time.Time) (models.Session, error)

	// Delete removes the session; absence is not an error
	Delete(ctx context.Context, token string) error

	// DeleteByAccount removes every session owned by the account
	DeleteByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)

	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Storage aggregates the repositories and runs them transactionally
type Storage interface {
	Accounts() AccountRepo
	MagicLinks() MagicLinkRepo
	Sessions() SessionRepo

	// InTx runs fn against a Storage bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
