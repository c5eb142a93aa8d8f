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

type MagicLinkRepo struct {
	DB DBTX
}

const saveLink = `-- name: SaveMagicLink
INSERT INTO magic_links (id, token, email, account_id, expires_at, consumed_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, token, email, account_id, expires_at, consumed_at, created_at
`

func (r *MagicLinkRepo) Save(ctx context.Context, link models.MagicLink) (models.MagicLink, error) {
	rows, _ := r.DB.Query(ctx, saveLink,
		link.ID, link.Token, link.Email, link.AccountID, link.ExpiresAt, link.ConsumedAt, link.CreatedAt)
	saved, err := pgx.CollectOneRow(rows, rowToMagicLink)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}

	return saved, nil
}

const getLink = `-- name: GetMagicLink by token itself
SELECT id, token, email, account_id, expires_at, consumed_at, created_at
FROM magic_links
WHERE token = $1
`

// Get the link
// It returns the row even if it expired or consumed already
func (r *MagicLinkRepo) Get(ctx context.Context, token string) (models.MagicLink, error) {
	rows, _ := r.DB.Query(ctx, getLink, token)
	link, err := pgx.CollectOneRow(rows, rowToMagicLink)

	switch {
	case err == nil:
		return link, nil
	case errors.Is(err, pgx.ErrNoRows):
		return link, fmt.Errorf("repo error: %w", apperrors.ErrLinkNotFound)
	default:
		return link, fmt.Errorf("db error: %w", err)
	}
}

const consumeLink = `-- name: ConsumeMagicLink only if not consumed yet
UPDATE magic_links
SET consumed_at = $2, account_id = $3
WHERE token = $1 AND consumed_at IS NULL
RETURNING id, token, email, account_id, expires_at, consumed_at, created_at
`

// Consume marks the link consumed and binds the account id.
// The conditional update is atomic: a concurrent attempt that lost the race
// matches zero rows and the loser is told the link is already used.
func (r *MagicLinkRepo) Consume(ctx context.Context, token string, accountID uuid.UUID, at time.Time) (models.MagicLink, error) {
	rows, _ := r.DB.Query(ctx, consumeLink, token, at, accountID)
	link, err := pgx.CollectOneRow(rows, rowToMagicLink)

	switch {
	case err == nil:
		return link, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Either the token never existed or someone consumed it first
		if _, getErr := r.Get(ctx, token); errors.Is(getErr, apperrors.ErrLinkNotFound) {
			return link, fmt.Errorf("repo error: %w", apperrors.ErrLinkNotFound)
		}
		return link, fmt.Errorf("repo error: %w", apperrors.ErrLinkAlreadyUsed)
	default:
		return link, fmt.Errorf("db error: %w", err)
	}
}

const deleteExpiredLinks = `-- name: DeleteExpiredMagicLinks
DELETE FROM magic_links
WHERE expires_at <= $1
`

func (r *MagicLinkRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredLinks, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}

func rowToMagicLink(row pgx.CollectableRow) (models.MagicLink, error) {
	var l models.MagicLink
	err := row.Scan(&l.ID, &l.Token, &l.Email, &l.AccountID, &l.ExpiresAt, &l.ConsumedAt, &l.CreatedAt)
	return l, err
}
