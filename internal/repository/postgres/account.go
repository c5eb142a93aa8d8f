package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/apperrors"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/models"
)

type AccountRepo struct {
	DB DBTX
}

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (id, email)
VALUES ($1, $2)
RETURNING id, email, role, is_active, last_login_at, created_at, updated_at
`

func (r *AccountRepo) Create(ctx context.Context, email string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, createAccount, uuid.New(), email)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return account, apperrors.ErrAccountExists
		}

		return account, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

const getOrCreateAccount = `-- name: GetOrCreateAccount
INSERT INTO accounts (id, email)
VALUES ($1, $2)
ON CONFLICT (email) DO NOTHING
RETURNING id, email, role, is_active, last_login_at, created_at, updated_at
`

// GetOrCreate resolves the account for the address, inserting it if absent.
// DO NOTHING keeps a conflicting insert from aborting the surrounding
// transaction, so losing a create race degrades to reading the winner's row
func (r *AccountRepo) GetOrCreate(ctx context.Context, email string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getOrCreateAccount, uuid.New(), email)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Conflict: the row exists already, somebody else created it
		return r.GetByEmail(ctx, email)
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const getAccountByID = `-- name: GetAccountByID
SELECT id, email, role, is_active, last_login_at, created_at, updated_at
FROM accounts
WHERE id = $1
`

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByID, id)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const getAccountByEmail = `-- name: GetAccountByEmail
SELECT id, email, role, is_active, last_login_at, created_at, updated_at
FROM accounts
WHERE email = $1
`

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByEmail, email)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const listAccounts = `-- name: ListAccounts
SELECT id, email, role, is_active, last_login_at, created_at, updated_at
FROM accounts
ORDER BY created_at
`

func (r *AccountRepo) List(ctx context.Context) ([]models.Account, error) {
	rows, _ := r.DB.Query(ctx, listAccounts)
	accounts, err := pgx.CollectRows(rows, rowToAccount)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return accounts, nil
}

const setAccountRole = `-- name: SetAccountRole
UPDATE accounts
SET role = $2, updated_at = now()
WHERE id = $1
RETURNING id, email, role, is_active, last_login_at, created_at, updated_at
`

func (r *AccountRepo) SetRole(ctx context.Context, id uuid.UUID, role models.Role) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, setAccountRole, id, role)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const setAccountActive = `-- name: SetAccountActive
UPDATE accounts
SET is_active = $2, updated_at = now()
WHERE id = $1
RETURNING id, email, role, is_active, last_login_at, created_at, updated_at
`

func (r *AccountRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, setAccountActive, id, active)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const deleteAccount = `-- name: DeleteAccount
DELETE FROM accounts
WHERE id = $1
`

func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteAccount, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}

	return nil
}

const touchLastLogin = `-- name: TouchLastLogin
UPDATE accounts
SET last_login_at = $2, updated_at = now()
WHERE id = $1
`

func (r *AccountRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.DB.Exec(ctx, touchLastLogin, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}

	return nil
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.Role, &a.IsActive, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
