package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/apperrors"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/render"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/handlers/userctx"
	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/models"
)

// Admin service
type AdminService interface {
	ListAccounts(ctx context.Context) ([]models.Account, error)

	// Mutations take the acting administrator's id so the self action
	// rule can be enforced, all return apperrors.ErrSelfActionDenied
	// when actor and target match
	SetRole(ctx context.Context, actorID uuid.UUID, targetID uuid.UUID, role models.Role) (models.Account, error)
	SetActive(ctx context.Context, actorID uuid.UUID, targetID uuid.UUID, active bool) (models.Account, error)
	DeleteAccount(ctx context.Context, actorID uuid.UUID, targetID uuid.UUID) error
}

type AdminHandler struct {
	admin AdminService
}

func NewAdmin(admin AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Handler returns the admin route set. The administrator gate is mounted
// by the router, every route here already assumes an admin caller
func (h *AdminHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts", h.listAccounts)
	mux.HandleFunc("PUT /accounts/{id}/role", h.setRole)
	mux.HandleFunc("PUT /accounts/{id}/active", h.setActive)
	mux.HandleFunc("DELETE /accounts/{id}", h.deleteAccount)

	return mux
}

func (h *AdminHandler) listAccounts(w http.ResponseWriter, r *http.Request) {
	type ListSuccessResponse struct {
		Accounts []accountResponse `json:"accounts"`
	}

	accounts, err := h.admin.ListAccounts(r.Context())
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := ListSuccessResponse{Accounts: make([]accountResponse, 0, len(accounts))}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, toAccountResponse(a))
	}

	render.JSON(w, resp)
}

func (h *AdminHandler) setRole(w http.ResponseWriter, r *http.Request) {
	type SetRoleRequest struct {
		Role string `json:"role" validate:"required,oneof=standard admin"`
	}

	targetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	data, err := render.BindAndValidate[SetRoleRequest](w, r)
	if err != nil {
		return
	}

	actor, _ := userctx.FromContext(r.Context())

	account, err := h.admin.SetRole(r.Context(), actor.ID, targetID, models.Role(data.Role))
	if err != nil {
		writeAdminError(w, err)
		return
	}

	render.JSON(w, toAccountResponse(account))
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request) {
	type SetActiveRequest struct {
		Active *bool `json:"active" validate:"required"`
	}

	targetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	data, err := render.BindAndValidate[SetActiveRequest](w, r)
	if err != nil {
		return
	}

	actor, _ := userctx.FromContext(r.Context())

	account, err := h.admin.SetActive(r.Context(), actor.ID, targetID, *data.Active)
	if err != nil {
		writeAdminError(w, err)
		return
	}

	render.JSON(w, toAccountResponse(account))
}

func (h *AdminHandler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	type DeleteSuccessResponse struct {
		Message string `json:"message"`
	}

	targetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	actor, _ := userctx.FromContext(r.Context())

	if err := h.admin.DeleteAccount(r.Context(), actor.ID, targetID); err != nil {
		writeAdminError(w, err)
		return
	}

	render.JSON(w, DeleteSuccessResponse{Message: "Account deleted"})
}

func writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrSelfActionDenied):
		render.ServiceError(w, "You may not modify your own account", http.StatusConflict)
	case errors.Is(err, apperrors.ErrAccountNotFound):
		render.ServiceError(w, "Account not found", http.StatusNotFound)
	default:
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
