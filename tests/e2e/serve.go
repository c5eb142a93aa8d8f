package e2e

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stretchr/testify/require"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/middleware"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/repository/postgres"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/service/admin"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/service/auth"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/service/auth/tokenmanager"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/testutil"
)

// Sender stands in for the mail provider and keeps what would have been sent
type Sender struct {
	Emails []string
	Tokens []string
}

func (s *Sender) Send(_ context.Context, email string, token string) error {
	s.Emails = append(s.Emails, email)
	s.Tokens = append(s.Tokens, token)
	return nil
}

func (s *Sender) LastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.Tokens, "a link should have been delivered")
	return s.Tokens[len(s.Tokens)-1]
}

type Services struct {
	AuthService  *auth.AuthService
	AdminService *admin.AdminService
	Sender       *Sender
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// Rollback when the test stops, so the database stays clean between scenarios
func ServeWithTx(dbpool *pgxpool.Pool, t *testing.T, fn func(srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		// Initialize repositories
		storage := postgres.NewStorage(tx)

		// Initialize services
		tokenManager, err := tokenmanager.New(tokenmanager.Config{
			AccessSecret:  "test-access-secret",
			RefreshSecret: "test-refresh-secret",
		})
		require.NoError(t, err, "token manager should be created without errors")

		sender := &Sender{}
		as, err := auth.NewService(auth.Config{}, tokenManager, storage, sender, nil)
		require.NoError(t, err, "auth service starting error", err)

		ads, err := admin.NewService(storage)
		require.NoError(t, err, "admin service starting error", err)

		// Initialize handlers
		authHandler := handlers.NewAuth(as)
		adminHandler := handlers.NewAdmin(ads)

		// Complete all together as router
		router := handlers.NewRouter(
			authHandler,
			adminHandler,
			handlers.NewHealth(tx.Conn()),
			middleware.Authenticate(as),
		)

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(srv.URL, Services{
			AuthService:  as,
			AdminService: ads,
			Sender:       sender,
		})
	})
}
