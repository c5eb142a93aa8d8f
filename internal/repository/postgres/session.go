package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/apperrors"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/models"
)

type SessionRepo struct {
	DB DBTX
}

const saveSession = `-- name: SaveSession
INSERT INTO sessions (id, token, account_id, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
RETURNING id, token, account_id, expires_at, created_at, updated_at
`

func (r *SessionRepo) Save(ctx context.Context, session models.Session) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, saveSession,
		session.ID, session.Token, session.AccountID, session.ExpiresAt, session.CreatedAt)
	saved, err := pgx.CollectOneRow(rows, rowToSession)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}

	return saved, nil
}

const getSession = `-- name: GetSession by refresh token
SELECT id, token, account_id, expires_at, created_at, updated_at
FROM sessions
WHERE token = $1
`

// Get the session
// It returns the row even if it expired already
func (r *SessionRepo) Get(ctx context.Context, token string) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, getSession, token)
	session, err := pgx.CollectOneRow(rows, rowToSession)

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, fmt.Errorf("repo error: %w", apperrors.ErrSessionNotFound)
	default:
		return session, fmt.Errorf("db error: %w", err)
	}
}

const rotateSession = `-- name: RotateSession in place
UPDATE sessions
SET token = $2, expires_at = $3, updated_at = now()
WHERE token = $1
RETURNING id, token, account_id, expires_at, created_at, updated_at
`

// Rotate replaces the refresh token of the row keeping its id.
// A caller presenting a stale token matches zero rows and fails cleanly,
// this is what invalidates the previous credential the moment rotation happens.
func (r *SessionRepo) Rotate(ctx context.Context, oldToken string, newToken string, expiresAt time.Time) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, rotateSession, oldToken, newToken, expiresAt)
	session, err := pgx.CollectOneRow(rows, rowToSession)

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, fmt.Errorf("repo error: %w", apperrors.ErrSessionNotFound)
	default:
		return session, fmt.Errorf("db error: %w", err)
	}
}

const deleteSession = `-- name: DeleteSession
DELETE FROM sessions
WHERE token = $1
`

// Delete is idempotent: removing an absent session is not an error
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.DB.Exec(ctx, deleteSession, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const deleteSessionsByAccount = `-- name: DeleteSessionsByAccount
DELETE FROM sessions
WHERE account_id = $1
`

func (r *SessionRepo) DeleteByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteSessionsByAccount, accountID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}

const deleteExpiredSessions = `-- name: DeleteExpiredSessions
DELETE FROM sessions
WHERE expires_at <= $1
`

func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredSessions, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}

func rowToSession(row pgx.CollectableRow) (models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.Token, &s.AccountID, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
