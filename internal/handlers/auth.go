package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/apperrors"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/middleware"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/render"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/userctx"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/models"
)

// The identical response for every link request, whatever happened inside
const linkRequestedMessage = "If the address exists, a sign-in link has been sent"

// Auth service
type AuthService interface {
	// Issue a magic link and attempt delivery
	// The error is nil for unknown addresses and failed deliveries alike
	RequestLink(ctx context.Context, email string) error

	// Exchange a link token for an account and a token pair
	// Has to return apperrors.ErrLinkNotFound, ErrLinkExpired,
	// ErrLinkAlreadyUsed or ErrAccountDeactivated on failures
	Redeem(ctx context.Context, token string) (models.Account, models.TokenPair, error)

	// Exchange a refresh token for a fresh pair, rotating the session
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Drop the session for the refresh token, idempotent
	Logout(ctx context.Context, refresh string) error

	// Drop every session of the account
	LogoutAll(ctx context.Context, accountID uuid.UUID) error
}

type AuthHandler struct {
	auth AuthService
}

func NewAuth(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /link", h.requestLink)
	mux.HandleFunc("POST /redeem", h.redeem)
	mux.HandleFunc("POST /refresh", h.refresh)
	mux.HandleFunc("POST /logout", h.logout)
	mux.Handle("POST /logout-all", middleware.RequireAuth(http.HandlerFunc(h.logoutAll)))
	mux.Handle("GET /me", middleware.RequireAuth(http.HandlerFunc(h.me)))

	return mux
}

type accountResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func toAccountResponse(a models.Account) accountResponse {
	return accountResponse{
		ID:          a.ID.String(),
		Email:       a.Email,
		Role:        string(a.Role),
		IsActive:    a.IsActive,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}

func toTokenPairResponse(pair models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.Access.Value,
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshToken:     pair.Refresh.Value,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
	}
}

func (h *AuthHandler) requestLink(w http.ResponseWriter, r *http.Request) {
	type LinkRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
	type LinkSuccessResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[LinkRequest](w, r)
	if err != nil {
		return
	}

	if err := h.auth.RequestLink(r.Context(), data.Email); err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, LinkSuccessResponse{Message: linkRequestedMessage})
}

func (h *AuthHandler) redeem(w http.ResponseWriter, r *http.Request) {
	type RedeemRequest struct {
		Token string `json:"token" validate:"required"`
	}
	type RedeemSuccessResponse struct {
		Account accountResponse   `json:"account"`
		Tokens  tokenPairResponse `json:"tokens"`
	}

	data, err := render.BindAndValidate[RedeemRequest](w, r)
	if err != nil {
		return
	}

	account, pair, err := h.auth.Redeem(r.Context(), data.Token)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrLinkNotFound):
			render.ServiceError(w, "Link not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrLinkExpired):
			render.ServiceError(w, "Link expired, request a new one", http.StatusGone)
		case errors.Is(err, apperrors.ErrLinkAlreadyUsed):
			render.ServiceError(w, "Link already used, request a new one", http.StatusConflict)
		case errors.Is(err, apperrors.ErrAccountDeactivated):
			render.ServiceError(w, "Account is deactivated", http.StatusForbidden)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, RedeemSuccessResponse{
		Account: toAccountResponse(account),
		Tokens:  toTokenPairResponse(pair),
	})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshRequest struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	data, err := render.BindAndValidate[RefreshRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.auth.Refresh(r.Context(), data.RefreshToken)
	if err != nil {
		// One message for every refresh failure: the caller never
		// learns whether the token was malformed, stale or expired
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredential),
			errors.Is(err, apperrors.ErrSessionNotFound),
			errors.Is(err, apperrors.ErrSessionExpired),
			errors.Is(err, apperrors.ErrAccountDeactivated),
			errors.Is(err, apperrors.ErrAccountNotFound):
			render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, toTokenPairResponse(pair))
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutRequest struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	type LogoutSuccessResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[LogoutRequest](w, r)
	if err != nil {
		return
	}

	if err := h.auth.Logout(r.Context(), data.RefreshToken); err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, LogoutSuccessResponse{Message: "Logged out"})
}

func (h *AuthHandler) logoutAll(w http.ResponseWriter, r *http.Request) {
	type LogoutAllSuccessResponse struct {
		Message string `json:"message"`
	}

	account, _ := userctx.FromContext(r.Context())

	if err := h.auth.LogoutAll(r.Context(), account.ID); err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, LogoutAllSuccessResponse{Message: "All sessions revoked"})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	account, _ := userctx.FromContext(r.Context())
	render.JSON(w, toAccountResponse(account))
}
