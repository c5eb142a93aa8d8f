package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/render"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/userctx"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/models"
)

const bearerScheme = "Bearer "

type authService interface {
	Authenticate(ctx context.Context, accessToken string) (models.Account, error)
}

// Authenticate resolves the bearer access token into an account and stores
// it in the request context. A missing, malformed or invalid token resolves
// to anonymous, never to an error: only the Require* gates reject, and they
// reject all three cases identically so the response never tells why
func Authenticate(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			account, err := as.Authenticate(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), account)))
		})
	}
}

// RequireAuth rejects anonymous requests
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userctx.FromContext(r.Context()); !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous requests and authenticated
// accounts without the administrator role
func RequireAdmin(next http.Handler) http.Handler {
	return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, _ := userctx.FromContext(r.Context())
		if account.Role != models.RoleAdmin {
			render.ServiceError(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	}))
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerScheme) {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, bearerScheme))
	return token, token != ""
}
