package handlers

import (
	"net/http"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/middleware"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// NewRouter mounts the handlers under /api and wraps the whole tree with
// the given middlewares (request logging, identity resolution).
// Tier gates sit per route: the admin subtree behind RequireAdmin,
// per-route RequireAuth inside the auth handler
func NewRouter(
	authHandler *AuthHandler,
	adminHandler *AdminHandler,
	health http.Handler,
	middlewares ...func(next http.Handler) http.Handler,
) http.Handler {
	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", authHandler.Handler()))
	root.Handle("/api/admin/", http.StripPrefix("/api/admin", middleware.RequireAdmin(adminHandler.Handler())))
	root.Handle("GET /api/health", health)

	return chain(root, middlewares...)
}
