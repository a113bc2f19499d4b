package api

import (
	"errors"
	"net/http"

	"github.com/sdnpulse/sdnpulse/internal/auth"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *auth.Service
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Login handles POST /api/v1/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[auth.LoginRequest](w, r)
	if !ok {
		return
	}

	response, err := h.authService.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		sendError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
		return
	case err != nil:
		sendError(w, r, http.StatusInternalServerError, "AUTH_ERROR", "Failed to issue token", nil)
		return
	}

	sendJSON(w, http.StatusOK, response)
}
