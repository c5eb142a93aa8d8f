package handlers

import (
	"context"
	"net/http"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/render"
)

// Pinger is satisfied by pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealth reports whether the service and its database are reachable.
// Deploy scripts and the container orchestrator poll it
func NewHealth(db Pinger) http.Handler {
	type HealthResponse struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			render.ServiceError(w, "Database unreachable", http.StatusServiceUnavailable)
			return
		}

		render.JSON(w, HealthResponse{Status: "ok"})
	})
}
