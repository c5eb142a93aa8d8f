package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/db"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/middleware"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/logger"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/mail"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/repository/postgres"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/service/admin"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/service/auth"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/service/auth/tokenmanager"
)

const purgeInterval = time.Hour

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	authService *auth.AuthService
	logger      logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize the token manager, fatal on misconfigured secrets
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     c.AccessTokenTTL,
		RefreshTTL:    c.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	// Pick the delivery channel: Postmark when configured, log output otherwise
	var sender auth.Sender = mail.LogSender{Logger: log}
	if c.PostmarkToken != "" {
		sender = mail.NewPostmarkClient(c.PostmarkToken, c.MailFrom, c.PublicURL)
	}

	// Initialize services
	authService, err := auth.NewService(
		auth.Config{LinkTTL: c.MagicLinkTTL},
		tokenManager,
		storage,
		sender,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	adminService, err := admin.NewService(storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating admin service. Err: %w", err)
	}

	// Pre-seed the operator's administrator account if requested
	if c.AdminEmail != "" {
		account, err := adminService.EnsureAdmin(ctx, c.AdminEmail)
		if err != nil {
			return nil, fmt.Errorf("error while seeding admin account. Err: %w", err)
		}
		log.Info("admin account ensured", "email", account.Email, "id", account.ID)
	}

	// Initialize handlers
	authHandler := handlers.NewAuth(authService)
	adminHandler := handlers.NewAdmin(adminService)

	router := handlers.NewRouter(
		authHandler,
		adminHandler,
		handlers.NewHealth(pool),
		middleware.LoggerMiddleware(log),
		middleware.Authenticate(authService),
	)

	return &ServerApp{
		ListenAddr:  c.ListenAddr,
		Handler:     router,
		authService: authService,
		logger:      log,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	// Garbage collect expired links and sessions in the background.
	// Correctness never depends on it, expiry is checked on every read
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-srvCtx.Done():
				return
			case <-ticker.C:
				links, sessions, err := s.authService.PurgeExpired(srvCtx)
				if err != nil {
					s.logger.Warn("purging expired records failed", "error", err.Error())
					continue
				}
				s.logger.Debug("purged expired records", "links", links, "sessions", sessions)
			}
		}
	}()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
