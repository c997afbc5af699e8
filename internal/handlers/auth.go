package handlers

import (
	"net/http"

	"github.com/bobmcallan/alpha-matrix/internal/auth"
	"github.com/bobmcallan/alpha-matrix/internal/common"
	"github.com/bobmcallan/alpha-matrix/internal/dashboard"
)

// AuthHandler handles the password form and logout.
type AuthHandler struct {
	logger *common.Logger
	gate   *auth.Gate
	boards *dashboard.Registry
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(logger *common.Logger, gate *auth.Gate, boards *dashboard.Registry) *AuthHandler {
	return &AuthHandler{
		logger: logger,
		gate:   gate,
		boards: boards,
	}
}

// HandleLogin handles POST /login with a form field "password".
// Match -> session cookie and redirect to /dashboard.
// Mismatch -> redirect to /?error=invalid_password with nothing stored.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/?error="+ErrorInvalidPassword, http.StatusSeeOther)
		return
	}

	ok, err := h.gate.Submit(w, r, r.PostFormValue("password"))
	if err != nil {
		if h.logger != nil {
			h.logger.Error().Str("error", err.Error()).Msg("failed to store session")
		}
		http.Redirect(w, r, "/?error="+ErrorUnavailable, http.StatusSeeOther)
		return
	}
	if !ok {
		http.Redirect(w, r, "/?error="+ErrorInvalidPassword, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// HandleLogout handles GET or POST /logout. It clears the session record,
// expires the cookie, drops the session's dashboard and returns to the gate.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if id := h.gate.Logout(w, r); id != "" && h.boards != nil {
		h.boards.Drop(id)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
