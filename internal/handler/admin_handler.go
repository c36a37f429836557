package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/modfusion/accounts/internal/service"
)

// AdminHandler serves the user-management endpoints. Authorization is
// enforced by the service: every operation requires an authenticated admin
// session.
type AdminHandler struct {
	auth   *service.AuthService
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(auth *service.AuthService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		auth:   auth,
		logger: logger.With().Str("handler", "admin").Logger(),
	}
}

// RegisterRoutes registers the user-management routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/users", h.handleListUsers)
	r.Post("/api/users/{id}/promote", h.handlePromote)
	r.Post("/api/users/{id}/demote", h.handleDemote)
	r.Delete("/api/users/{id}", h.handleDelete)
	r.Post("/api/reset", h.handleReset)
}

type usersResponse struct {
	Users []*accountView `json:"users"`
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.auth.ListAccounts(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			writeJSON(w, http.StatusForbidden, resultResponse{Error: err.Error()})
			return
		}
		h.logger.Error().Err(err).Msg("failed to list accounts")
		writeJSON(w, http.StatusInternalServerError, resultResponse{Error: "failed to list accounts"})
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: viewsOf(accounts)})
}

func (h *AdminHandler) handlePromote(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, h.auth.PromoteAccount(r.Context(), chi.URLParam(r, "id")))
}

func (h *AdminHandler) handleDemote(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, h.auth.DemoteAccount(r.Context(), chi.URLParam(r, "id")))
}

func (h *AdminHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, h.auth.DeleteAccount(r.Context(), chi.URLParam(r, "id")))
}

func (h *AdminHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, h.auth.ResetDirectory(r.Context()))
}

func (h *AdminHandler) writeResult(w http.ResponseWriter, res service.Result) {
	if !res.Success {
		status := http.StatusOK
		if res.Error == service.ErrForbidden.Error() {
			status = http.StatusForbidden
		}
		writeJSON(w, status, resultResponse{Error: res.Error})
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true})
}
