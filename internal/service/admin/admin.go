package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/apperrors"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/models"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/repository"
)

// AdminService composes the directory primitives into administrative
// actions and enforces the policy rules around them.
// The actor is always the authenticated administrator making the call
type AdminService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) (*AdminService, error) {
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}

	return &AdminService{storage: storage}, nil
}

func (s *AdminService) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return s.storage.Accounts().List(ctx)
}

func (s *AdminService) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	return s.storage.Accounts().GetByID(ctx, id)
}

// SetRole changes the role of the target account.
// An administrator may never change their own role, whatever the requested value
func (s *AdminService) SetRole(ctx context.Context, actorID uuid.UUID, targetID uuid.UUID, role models.Role) (models.Account, error) {
	if actorID == targetID {
		return models.Account{}, apperrors.ErrSelfActionDenied
	}
	if !role.Valid() {
		return models.Account{}, fmt.Errorf("unknown role: %q", role)
	}

	return s.storage.Accounts().SetRole(ctx, targetID, role)
}

// SetActive toggles the activation state of the target account.
// Deactivation purges every standing session in the same transaction:
// a deactivated account loses access immediately, not at next login
func (s *AdminService) SetActive(ctx context.Context, actorID uuid.UUID, targetID uuid.UUID, active bool) (models.Account, error) {
	if actorID == targetID {
		return models.Account{}, apperrors.ErrSelfActionDenied
	}

	var account models.Account
	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error
		account, err = store.Accounts().SetActive(ctx, targetID, active)
		if err != nil {
			return err
		}

		if !active {
			if _, err := store.Sessions().DeleteByAccount(ctx, targetID); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return models.Account{}, err
	}

	return account, nil
}

// DeleteAccount removes the target account for good.
// Sessions and magic link back references go with it (FK cascade),
// the session purge is still explicit so the intent survives schema changes
func (s *AdminService) DeleteAccount(ctx context.Context, actorID uuid.UUID, targetID uuid.UUID) error {
	if actorID == targetID {
		return apperrors.ErrSelfActionDenied
	}

	return s.storage.InTx(ctx, func(store repository.Storage) error {
		if _, err := store.Sessions().DeleteByAccount(ctx, targetID); err != nil {
			return err
		}

		return store.Accounts().Delete(ctx, targetID)
	})
}

// EnsureAdmin pre-seeds an administrator account for the address,
// promoting the account if it already exists. Used at startup by operators
func (s *AdminService) EnsureAdmin(ctx context.Context, email string) (models.Account, error) {
	email = models.NormalizeEmail(email)

	account, err := s.storage.Accounts().GetOrCreate(ctx, email)
	if err != nil {
		return models.Account{}, err
	}

	if account.Role == models.RoleAdmin {
		return account, nil
	}

	return s.storage.Accounts().SetRole(ctx, account.ID, models.RoleAdmin)
}
