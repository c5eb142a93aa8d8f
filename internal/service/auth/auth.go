package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/apperrors"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/logger"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/models"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/repository"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/service/auth/tokenmanager"
)

const defaultLinkTTL = 5 * time.Minute

// Sender is the out of band delivery channel for magic links.
// Formatting and retry policy belong to the implementation,
// the service only needs the outcome
type Sender interface {
	Send(ctx context.Context, email string, token string) error
}

type Config struct {
	// Magic link lifetime
	// If not set then default is used
	LinkTTL time.Duration
}

// AuthService owns the magic link and session lifecycle
type AuthService struct {
	tokens  *tokenmanager.TokenManager
	storage repository.Storage
	sender  Sender
	linkTTL time.Duration
	logger  logger.Logger
}

func NewService(cfg Config, tokens *tokenmanager.TokenManager, storage repository.Storage, sender Sender, log logger.Logger) (*AuthService, error) {
	if tokens == nil {
		return nil, errors.New("token manager must not be nil")
	}
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}
	if sender == nil {
		return nil, errors.New("sender must not be nil")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	if cfg.LinkTTL == 0 {
		cfg.LinkTTL = defaultLinkTTL
	}

	return &AuthService{
		tokens:  tokens,
		storage: storage,
		sender:  sender,
		linkTTL: cfg.LinkTTL,
		logger:  log,
	}, nil
}

// RequestLink issues a magic link for the address and attempts delivery.
// The outcome visible to the caller is the same whether the address belongs
// to an account, to nobody, or delivery failed: anything else would let an
// attacker enumerate registered addresses. Only a storage failure is surfaced
func (s *AuthService) RequestLink(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)

	token, err := tokenmanager.NewLinkToken()
	if err != nil {
		return err
	}

	now := time.Now().Truncate(time.Second)
	link := models.MagicLink{
		ID:        uuid.New(),
		Token:     token,
		Email:     email,
		ExpiresAt: now.Add(s.linkTTL),
		CreatedAt: now,
	}

	if _, err := s.storage.MagicLinks().Save(ctx, link); err != nil {
		return fmt.Errorf("error while saving magic link. Err: %w", err)
	}

	if err := s.sender.Send(ctx, email, token); err != nil {
		// Deliberately swallowed: surfacing it would leak whether the address exists
		s.logger.Error("magic link delivery failed", "email", email, "error", err.Error())
	}

	return nil
}

// Redeem exchanges an unconsumed, unexpired magic link for a token pair.
// Runs in a transaction, the conditional consume write is the linearization
// point: of two concurrent redemptions of one token exactly one succeeds
func (s *AuthService) Redeem(ctx context.Context, token string) (models.Account, models.TokenPair, error) {
	var account models.Account
	var pair models.TokenPair

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		link, err := store.MagicLinks().Get(ctx, token)
		if err != nil {
			return err
		}

		now := time.Now().Truncate(time.Second)
		if !now.Before(link.ExpiresAt) {
			return apperrors.ErrLinkExpired
		}
		if link.ConsumedAt != nil {
			return apperrors.ErrLinkAlreadyUsed
		}

		account, err = store.Accounts().GetOrCreate(ctx, link.Email)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return apperrors.ErrAccountDeactivated
		}

		if _, err := store.MagicLinks().Consume(ctx, token, account.ID, now); err != nil {
			return err
		}

		pair, err = s.tokens.GeneratePair(account)
		if err != nil {
			return err
		}

		_, err = store.Sessions().Save(ctx, models.Session{
			ID:        uuid.New(),
			Token:     pair.Refresh.Value,
			AccountID: account.ID,
			ExpiresAt: pair.Refresh.ExpiresAt,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		if err := store.Accounts().TouchLastLogin(ctx, account.ID, now); err != nil {
			return err
		}
		account.LastLoginAt = &now

		return nil
	})
	if err != nil {
		return models.Account{}, models.TokenPair{}, err
	}

	return account, pair, nil
}

// Refresh exchanges a refresh token for a fresh pair, rotating the session
// row in place. The presenter of a stale (already rotated) token matches no
// row and fails cleanly instead of silently minting a second lineage
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	claims, err := s.tokens.VerifyRefresh(refresh)
	if err != nil {
		return pair, err
	}

	err = s.storage.InTx(ctx, func(store repository.Storage) error {
		session, err := store.Sessions().Get(ctx, refresh)
		if err != nil {
			return err
		}
		if session.AccountID != claims.AccountID {
			return fmt.Errorf("%w: session owner mismatch", apperrors.ErrInvalidCredential)
		}

		now := time.Now()
		if !now.Before(session.ExpiresAt) {
			_ = store.Sessions().Delete(ctx, refresh)
			return apperrors.ErrSessionExpired
		}

		account, err := store.Accounts().GetByID(ctx, session.AccountID)
		if err != nil {
			return err
		}
		// Deactivation purges sessions already, this guards the race between
		// the purge and a refresh in flight
		if !account.IsActive {
			return apperrors.ErrAccountDeactivated
		}

		pair, err = s.tokens.GeneratePair(account)
		if err != nil {
			return err
		}

		_, err = store.Sessions().Rotate(ctx, refresh, pair.Refresh.Value, pair.Refresh.ExpiresAt)
		return err
	})
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Logout drops the session matching the refresh token, absence is not an error
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	return s.storage.Sessions().Delete(ctx, refresh)
}

// LogoutAll drops every session of the account
func (s *AuthService) LogoutAll(ctx context.Context, accountID uuid.UUID) error {
	_, err := s.storage.Sessions().DeleteByAccount(ctx, accountID)
	return err
}

// Authenticate resolves a bearer access token into the current account state.
// Verification is stateless but the account row is re-read so a deactivated
// account stops passing the gate no later than its next request
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.Account, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return models.Account{}, err
	}

	account, err := s.getAccountByID(ctx, claims.AccountID)
	if err != nil {
		return models.Account{}, err
	}
	if !account.IsActive {
		return models.Account{}, apperrors.ErrAccountDeactivated
	}

	return account, nil
}

// PurgeExpired removes expired magic links and sessions.
// Housekeeping only: correctness never depends on it, every read
// re-checks the stored expiry
func (s *AuthService) PurgeExpired(ctx context.Context) (links int64, sessions int64, err error) {
	now := time.Now()

	links, err = s.storage.MagicLinks().DeleteExpired(ctx, now)
	if err != nil {
		return links, sessions, err
	}

	sessions, err = s.storage.Sessions().DeleteExpired(ctx, now)
	return links, sessions, err
}

// getAccountByID retries the idempotent read a bounded number of times,
// business outcomes (not found) are terminal and never retried
func (s *AuthService) getAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	var account models.Account

	backoff := retry.WithMaxRetries(2, retry.NewConstant(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		account, err = s.storage.Accounts().GetByID(ctx, id)
		if err != nil && !errors.Is(err, apperrors.ErrAccountNotFound) {
			return retry.RetryableError(err)
		}
		return err
	})

	return account, err
}
