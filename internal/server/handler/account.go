package handler

import (
	"log/slog"
	"net/http"

	"github.com/sevigo/archnet/internal/auth"
	"github.com/sevigo/archnet/internal/storage"
)

// AccountHandler serves login and the current user's profile.
type AccountHandler struct {
	auth   *auth.Service
	store  storage.Ledger
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(authService *auth.Service, store storage.Ledger, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{auth: authService, store: store, logger: logger}
}

type loginRequest struct {
	Email string `json:"email" validate:"required"`
}

// Login registers unknown emails and returns a session token.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if session.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, session)
}

// Me returns the acting user and their balance.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	email, _ := UserFromContext(r.Context())
	user, err := h.store.GetUser(r.Context(), email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
