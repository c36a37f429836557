package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/modfusion/accounts/internal/domain"
	"github.com/modfusion/accounts/internal/service"
)

// AuthHandler serves the session and profile endpoints consumed by the SPA.
type AuthHandler struct {
	auth   *service.AuthService
	logger zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With().Str("handler", "auth").Logger(),
	}
}

// RegisterRoutes registers the session and profile routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/login", h.handleLogin)
	r.Post("/api/register", h.handleRegister)
	r.Post("/api/logout", h.handleLogout)
	r.Get("/api/session", h.handleSession)
	r.Patch("/api/profile", h.handleUpdateProfile)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email           string `json:"email"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type profileRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Password  *string `json:"password"`
	Avatar    *string `json:"avatar"`
}

// resultResponse is the envelope every mutating endpoint returns. Account is
// present when the operation leaves an authenticated session behind.
type resultResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Account *accountView `json:"account,omitempty"`
}

// sessionResponse reflects the reactive session flags of the service.
type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	IsAdmin       bool         `json:"isAdmin"`
	Loading       bool         `json:"loading"`
	State         string       `json:"state"`
	Account       *accountView `json:"account,omitempty"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "invalid request body"})
		return
	}

	res := h.auth.Login(r.Context(), req.Email, req.Password)
	if !res.Success {
		writeJSON(w, http.StatusOK, resultResponse{Error: res.Error})
		return
	}

	account, err := h.auth.CurrentSession(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("session resolution failed after login")
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true, Account: viewOf(account)})
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "invalid request body"})
		return
	}

	res := h.auth.Register(r.Context(), service.RegisterInput{
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if !res.Success {
		writeJSON(w, http.StatusOK, resultResponse{Error: res.Error})
		return
	}

	account, err := h.auth.CurrentSession(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("session resolution failed after registration")
	}
	writeJSON(w, http.StatusCreated, resultResponse{Success: true, Account: viewOf(account)})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, resultResponse{Error: "logout failed"})
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true})
}

// handleSession reports the current session state. An anonymous session is a
// normal answer here, not an authorization failure: the SPA needs it to
// decide what to render.
func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{
		Loading: h.auth.Loading(),
		State:   h.auth.State().String(),
	}

	account, err := h.auth.CurrentSession(r.Context())
	if err != nil {
		if !errors.Is(err, domain.ErrNoSession) {
			h.logger.Error().Err(err).Msg("session resolution failed")
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Authenticated = true
	resp.IsAdmin = account.IsAdmin()
	resp.Account = viewOf(account)
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "invalid request body"})
		return
	}

	res := h.auth.UpdateProfile(r.Context(), service.ProfileUpdate{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Avatar:    req.Avatar,
	})
	if !res.Success {
		writeJSON(w, http.StatusOK, resultResponse{Error: res.Error})
		return
	}

	account, err := h.auth.CurrentSession(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("session resolution failed after profile update")
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true, Account: viewOf(account)})
}
