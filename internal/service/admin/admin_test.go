package admin

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/apperrors"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/models"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/repository"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/repository/postgres"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/testutil"
)

func Test_AdminService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withService := func(t *testing.T, fn func(s *AdminService, storage repository.Storage)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			s, err := NewService(storage)
			require.NoError(t, err, "admin service couldn't be started")

			fn(s, storage)
		})
	}

	mustCreate := func(t *testing.T, storage repository.Storage, email string) models.Account {
		t.Helper()
		account, err := storage.Accounts().Create(t.Context(), email)
		require.NoError(t, err)
		return account
	}

	t.Run("ListAccounts returns the directory", func(t *testing.T) {
		withService(t, func(s *AdminService, storage repository.Storage) {
			mustCreate(t, storage, "a@example.com")
			mustCreate(t, storage, "b@example.com")

			accounts, err := s.ListAccounts(t.Context())

			require.NoError(t, err)
			assert.Len(t, accounts, 2)
		})
	})

	t.Run("GetAccount", func(t *testing.T) {
		withService(t, func(s *AdminService, storage repository.Storage) {
			created := mustCreate(t, storage, "a@example.com")

			got, err := s.GetAccount(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)

			_, err = s.GetAccount(t.Context(), uuid.New())
			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})

	t.Run("SetRole", func(t *testing.T) {
		t.Run("promotes and demotes others", func(t *testing.T) {
			withService(t, func(s *AdminService, storage repository.Storage) {
				actor := mustCreate(t, storage, "admin@example.com")
				target := mustCreate(t, storage, "user@example.com")

				updated, err := s.SetRole(t.Context(), actor.ID, target.ID, models.RoleAdmin)
				require.NoError(t, err)
				assert.Equal(t, models.RoleAdmin, updated.Role)

				updated, err = s.SetRole(t.Context(), actor.ID, target.ID, models.RoleStandard)
				require.NoError(t, err)
				assert.Equal(t, models.RoleStandard, updated.Role)
			})
		})

		t.Run("denied on own account", func(t *testing.T) {
			withService(t, func(s *AdminService, storage repository.Storage) {
				actor := mustCreate(t, storage, "admin@example.com")

				_, err := s.SetRole(t.Context(), actor.ID, actor.ID, models.RoleStandard)
				require.ErrorIs(t, err, apperrors.ErrSelfActionDenied)

				// Denied even when the requested value matches the current one
				_, err = s.SetRole(t.Context(), actor.ID, actor.ID, models.RoleAdmin)
				require.ErrorIs(t, err, apperrors.ErrSelfActionDenied)
			})
		})

		t.Run("rejects unknown role", func(t *testing.T) {
			withService(t, func(s *AdminService, storage repository.Storage) {
				actor := mustCreate(t, storage, "admin@example.com")
				target := mustCreate(t, storage, "user@example.com")

				_, err := s.SetRole(t.Context(), actor.ID, target.ID, models.Role("superuser"))
				require.Error(t, err)
			})
		})
	})

	t.Run("SetActive", func(t *testing.T) {
		saveSession := func(t *testing.T, storage repository.Storage, accountID uuid.UUID, token string) {
			t.Helper()
			_, err := storage.Sessions().Save(t.Context(), models.Session{
				ID:        uuid.New(),
				Token:     token,
				AccountID: accountID,
				ExpiresAt: time.Now().Add(time.Hour),
				CreatedAt: time.Now(),
			})
			require.NoError(t, err)
		}

		t.Run("deactivation purges every session", func(t *testing.T) {
			withService(t, func(s *AdminService, storage repository.Storage) {
				actor := mustCreate(t, storage, "admin@example.com")
				target := mustCreate(t, storage, "user@example.com")
				saveSession(t, storage, target.ID, "session-one")
				saveSession(t, storage, target.ID, "session-two")

				updated, err := s.SetActive(t.Context(), actor.ID, target.ID, false)

				require.NoError(t, err)
				assert.False(t, updated.IsActive)

				_, err = storage.Sessions().Get(t.Context(), "session-one")
				require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
				_, err = storage.Sessions().Get(t.Context(), "session-two")
				require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
			})
		})

		t.Run("reactivation does not touch sessions", func(t *testing.T) {
			withService(t, func(s *AdminService, storage repository.Storage) {
				actor := mustCreate(t, storage, "admin@example.com")
				target := mustCreate(t, storage, "user@example.com")
				saveSession(t, storage, target.ID, "session-one")

				updated, err := s.SetActive(t.Context(), actor.ID, target.ID, true)

				require.NoError(t, err)
				assert.True(t, updated.IsActive)

				_, err = storage.Sessions().Get(t.Context(), "session-one")
				require.NoError(t, err)
			})
		})

		t.Run("denied on own account", func(t *testing.T) {
			withService(t, func(s *AdminService, storage repository.Storage) {
				actor := mustCreate(t, storage, "admin@example.com")

				_, err := s.SetActive(t.Context(), actor.ID, actor.ID, false)
				require.ErrorIs(t, err, apperrors.ErrSelfActionDenied)
			})
		})
	})

	t.Run("DeleteAccount", func(t *testing.T) {
		t.Run("removes the account and its sessions", func(t *testing.T) {
			withService(t, func(s *AdminService, storage repository.Storage) {
				actor := mustCreate(t, storage, "admin@example.com")
				target := mustCreate(t, storage, "user@example.com")

				_, err := storage.Sessions().Save(t.Context(), models.Session{
					ID:        uuid.New(),
					Token:     "session-one",
					AccountID: target.ID,
					ExpiresAt: time.Now().Add(time.Hour),
					CreatedAt: time.Now(),
				})
				require.NoError(t, err)

				err = s.DeleteAccount(t.Context(), actor.ID, target.ID)
				require.NoError(t, err)

				_, err = storage.Accounts().GetByID(t.Context(), target.ID)
				require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
				_, err = storage.Sessions().Get(t.Context(), "session-one")
				require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
			})
		})

		t.Run("denied on own account", func(t *testing.T) {
			withService(t, func(s *AdminService, storage repository.Storage) {
				actor := mustCreate(t, storage, "admin@example.com")

				err := s.DeleteAccount(t.Context(), actor.ID, actor.ID)
				require.ErrorIs(t, err, apperrors.ErrSelfActionDenied)
			})
		})

		t.Run("missing target reported as not found", func(t *testing.T) {
			withService(t, func(s *AdminService, storage repository.Storage) {
				actor := mustCreate(t, storage, "admin@example.com")

				err := s.DeleteAccount(t.Context(), actor.ID, uuid.New())
				require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})
	})

	t.Run("EnsureAdmin", func(t *testing.T) {
		t.Run("creates the account when absent", func(t *testing.T) {
			withService(t, func(s *AdminService, _ repository.Storage) {
				account, err := s.EnsureAdmin(t.Context(), "Root@Example.com")

				require.NoError(t, err)
				assert.Equal(t, "root@example.com", account.Email)
				assert.Equal(t, models.RoleAdmin, account.Role)
			})
		})

		t.Run("promotes an existing standard account", func(t *testing.T) {
			withService(t, func(s *AdminService, storage repository.Storage) {
				created := mustCreate(t, storage, "root@example.com")
				require.Equal(t, models.RoleStandard, created.Role)

				account, err := s.EnsureAdmin(t.Context(), "root@example.com")

				require.NoError(t, err)
				assert.Equal(t, created.ID, account.ID)
				assert.Equal(t, models.RoleAdmin, account.Role)
			})
		})

		t.Run("idempotent for an existing admin", func(t *testing.T) {
			withService(t, func(s *AdminService, _ repository.Storage) {
				first, err := s.EnsureAdmin(t.Context(), "root@example.com")
				require.NoError(t, err)

				second, err := s.EnsureAdmin(t.Context(), "root@example.com")
				require.NoError(t, err)

				assert.Equal(t, first.ID, second.ID)
				assert.Equal(t, models.RoleAdmin, second.Role)
			})
		})
	})
}
