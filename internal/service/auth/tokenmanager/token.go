package tokenmanager

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/apperrors"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultSigningMethod   = "HS256"

	// Tolerated clock skew between the signer and the verifier
	expiryLeeway = 5 * time.Second

	// Discriminator values, verification rejects a token presented
	// for the wrong purpose even if the signature checks out
	typeAccess  = "access"
	typeRefresh = "refresh"

	linkTokenBytesLen = 32
)

type Claims struct {
	jwt.RegisteredClaims
	AccountID uuid.UUID   `json:"uid"`
	Email     string      `json:"eml,omitempty"`
	Role      models.Role `json:"rol,omitempty"`
	TokenType string      `json:"tkn"`
}

// Token manager with sensible defaults
type Config struct {
	// Secrets to sign access and refresh tokens.
	// Both required and must differ: compromise of one key
	// must not compromise the other token type
	AccessSecret  string
	RefreshSecret string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set then default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set then default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	accessKey  string
	refreshKey string

	alg jwt.SigningMethod

	accessTTL  time.Duration
	refreshTTL time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("both signing secrets must not be empty")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh signing secrets must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		accessKey:  cfg.AccessSecret,
		refreshKey: cfg.RefreshSecret,
		alg:        jwt.GetSigningMethod(cfg.Alg),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// NewLinkToken returns a high entropy single use token for a magic link.
// 32 random bytes hex encoded, collisions are not a practical concern
func NewLinkToken() (string, error) {
	b := make([]byte, linkTokenBytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating link token. Err: %w", err)
	}

	return hex.EncodeToString(b), nil
}

// SignAccess issues a short lived token carrying identity and role
func (m *TokenManager) SignAccess(account models.Account) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(m.accessTTL)

	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			AccountID: account.ID,
			Email:     account.Email,
			Role:      account.Role,
			TokenType: typeAccess,
		},
	)
	signed, err := token.SignedString([]byte(m.accessKey))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// SignRefresh issues a long lived token carrying the account id only
func (m *TokenManager) SignRefresh(accountID uuid.UUID) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(m.refreshTTL)

	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			AccountID: accountID,
			TokenType: typeRefresh,
		},
	)
	signed, err := token.SignedString([]byte(m.refreshKey))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// GeneratePair mints a fresh access and refresh token for the account.
// Persisting the refresh token is the caller's concern
func (m *TokenManager) GeneratePair(account models.Account) (models.TokenPair, error) {
	access, err := m.SignAccess(account)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := m.SignRefresh(account.ID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// VerifyAccess parses and validates an access token.
// Any failure (malformed input, bad signature, expiry, wrong discriminator)
// comes back as apperrors.ErrInvalidCredential, callers must treat them
// uniformly as "unauthenticated"
func (m *TokenManager) VerifyAccess(value string) (Claims, error) {
	return m.verify(value, m.accessKey, typeAccess)
}

// VerifyRefresh is symmetric to VerifyAccess with the refresh key and tag
func (m *TokenManager) VerifyRefresh(value string) (Claims, error) {
	return m.verify(value, m.refreshKey, typeRefresh)
}

func (m *TokenManager) verify(value string, key string, tokenType string) (Claims, error) {
	claims := Claims{}

	_, err := jwt.ParseWithClaims(
		value,
		&claims,
		func(t *jwt.Token) (any, error) { return []byte(key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(expiryLeeway),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredential, err)
	}

	if claims.TokenType != tokenType {
		return Claims{}, fmt.Errorf("%w: token type %q presented where %q expected",
			apperrors.ErrInvalidCredential, claims.TokenType, tokenType)
	}

	return claims, nil
}
