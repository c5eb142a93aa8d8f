package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/middleware"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/models"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/repository"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/repository/postgres"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/service/admin"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/service/auth"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/service/auth/tokenmanager"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/testutil"
)

func Test_AdminHandler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	type env struct {
		url     string
		storage repository.Storage
		tokens  *tokenmanager.TokenManager
	}

	// Run http server with the admin routes behind the production gate chain
	withTx := func(dbpool *pgxpool.Pool, t *testing.T, fn func(e env)) {
		testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			tokenManager, err := tokenmanager.New(tokenmanager.Config{
				AccessSecret:  "test-access-secret",
				RefreshSecret: "test-refresh-secret",
			})
			require.NoError(t, err, "token manager should be created without errors")

			authService, err := auth.NewService(auth.Config{}, tokenManager, storage, &captureSender{}, nil)
			require.NoError(t, err, "auth service starting error", err)

			adminService, err := admin.NewService(storage)
			require.NoError(t, err, "admin service starting error", err)

			h := NewAdmin(adminService)
			chain := middleware.Authenticate(authService)(middleware.RequireAdmin(h.Handler()))
			srv := httptest.NewServer(chain)
			defer srv.Close()

			fn(env{url: srv.URL, storage: storage, tokens: tokenManager})
		})
	}

	// Create an account and mint a bearer access token for it
	makeAccount := func(t *testing.T, e env, email string, role models.Role) (models.Account, string) {
		t.Helper()

		account, err := e.storage.Accounts().Create(t.Context(), email)
		require.NoError(t, err)
		if role != models.RoleStandard {
			account, err = e.storage.Accounts().SetRole(t.Context(), account.ID, role)
			require.NoError(t, err)
		}

		access, err := e.tokens.SignAccess(account)
		require.NoError(t, err)
		return account, access.Value
	}

	do := func(t *testing.T, method string, url string, bearer string, data string) (int, string) {
		t.Helper()

		var reqBody io.Reader
		if data != "" {
			reqBody = strings.NewReader(data)
		}
		req, err := http.NewRequest(method, url, reqBody)
		require.NoError(t, err)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		if data != "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		return resp.StatusCode, string(body)
	}

	t.Run("list accounts", func(t *testing.T) {
		withTx(pg.Pool, t, func(e env) {
			_, bearer := makeAccount(t, e, "admin@example.com", models.RoleAdmin)
			makeAccount(t, e, "user@example.com", models.RoleStandard)

			status, body := do(t, http.MethodGet, e.url+"/accounts", bearer, "")

			require.Equalf(t, http.StatusOK, status, "not expected code. Body: %s", body)
			require.Contains(t, body, `"admin@example.com"`)
			require.Contains(t, body, `"user@example.com"`)
		})
	})

	t.Run("gate", func(t *testing.T) {
		withTx(pg.Pool, t, func(e env) {
			_, standardBearer := makeAccount(t, e, "user@example.com", models.RoleStandard)

			t.Run("anonymous is unauthorized", func(t *testing.T) {
				status, body := do(t, http.MethodGet, e.url+"/accounts", "", "")
				require.Equalf(t, http.StatusUnauthorized, status, "not expected code. Body: %s", body)
			})

			t.Run("standard account is forbidden", func(t *testing.T) {
				status, body := do(t, http.MethodGet, e.url+"/accounts", standardBearer, "")
				require.Equalf(t, http.StatusForbidden, status, "not expected code. Body: %s", body)
			})
		})
	})

	t.Run("set role", func(t *testing.T) {
		withTx(pg.Pool, t, func(e env) {
			admin, bearer := makeAccount(t, e, "admin@example.com", models.RoleAdmin)
			target, _ := makeAccount(t, e, "user@example.com", models.RoleStandard)

			t.Run("promote target", func(t *testing.T) {
				status, body := do(t, http.MethodPut,
					fmt.Sprintf("%s/accounts/%s/role", e.url, target.ID), bearer, `{"role": "admin"}`)

				require.Equalf(t, http.StatusOK, status, "not expected code. Body: %s", body)
				require.Contains(t, body, `"role":"admin"`)
			})

			t.Run("own role is denied", func(t *testing.T) {
				status, body := do(t, http.MethodPut,
					fmt.Sprintf("%s/accounts/%s/role", e.url, admin.ID), bearer, `{"role": "admin"}`)

				require.Equalf(t, http.StatusConflict, status, "not expected code. Body: %s", body)
				require.JSONEq(t, `
					{
						"error": "service_error",
						"message": "You may not modify your own account"
					}`, body)
			})

			t.Run("unknown role rejected", func(t *testing.T) {
				status, body := do(t, http.MethodPut,
					fmt.Sprintf("%s/accounts/%s/role", e.url, target.ID), bearer, `{"role": "superuser"}`)

				require.Equalf(t, http.StatusBadRequest, status, "not expected code. Body: %s", body)
			})

			t.Run("malformed id rejected", func(t *testing.T) {
				status, body := do(t, http.MethodPut,
					e.url+"/accounts/not-a-uuid/role", bearer, `{"role": "admin"}`)

				require.Equalf(t, http.StatusBadRequest, status, "not expected code. Body: %s", body)
			})
		})
	})

	t.Run("set active", func(t *testing.T) {
		withTx(pg.Pool, t, func(e env) {
			admin, bearer := makeAccount(t, e, "admin@example.com", models.RoleAdmin)
			target, _ := makeAccount(t, e, "user@example.com", models.RoleStandard)

			t.Run("deactivate target", func(t *testing.T) {
				status, body := do(t, http.MethodPut,
					fmt.Sprintf("%s/accounts/%s/active", e.url, target.ID), bearer, `{"active": false}`)

				require.Equalf(t, http.StatusOK, status, "not expected code. Body: %s", body)
				require.Contains(t, body, `"is_active":false`)
			})

			t.Run("own account is denied", func(t *testing.T) {
				status, body := do(t, http.MethodPut,
					fmt.Sprintf("%s/accounts/%s/active", e.url, admin.ID), bearer, `{"active": false}`)

				require.Equalf(t, http.StatusConflict, status, "not expected code. Body: %s", body)
			})

			t.Run("missing active field rejected", func(t *testing.T) {
				status, body := do(t, http.MethodPut,
					fmt.Sprintf("%s/accounts/%s/active", e.url, target.ID), bearer, `{}`)

				require.Equalf(t, http.StatusBadRequest, status, "not expected code. Body: %s", body)
			})
		})
	})

	t.Run("delete account", func(t *testing.T) {
		withTx(pg.Pool, t, func(e env) {
			admin, bearer := makeAccount(t, e, "admin@example.com", models.RoleAdmin)
			target, _ := makeAccount(t, e, "user@example.com", models.RoleStandard)

			t.Run("delete target", func(t *testing.T) {
				status, body := do(t, http.MethodDelete,
					fmt.Sprintf("%s/accounts/%s", e.url, target.ID), bearer, "")

				require.Equalf(t, http.StatusOK, status, "not expected code. Body: %s", body)
				require.JSONEq(t, `
					{
						"message": "Account deleted"
					}`, body)
			})

			t.Run("missing target is not found", func(t *testing.T) {
				status, body := do(t, http.MethodDelete,
					fmt.Sprintf("%s/accounts/%s", e.url, uuid.New()), bearer, "")

				require.Equalf(t, http.StatusNotFound, status, "not expected code. Body: %s", body)
			})

			t.Run("own account is denied", func(t *testing.T) {
				status, body := do(t, http.MethodDelete,
					fmt.Sprintf("%s/accounts/%s", e.url, admin.ID), bearer, "")

				require.Equalf(t, http.StatusConflict, status, "not expected code. Body: %s", body)
			})
		})
	})
}
