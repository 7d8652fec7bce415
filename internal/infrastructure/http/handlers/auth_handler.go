package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/carbonbits/farmdb/internal/application/auth"
	"github.com/carbonbits/farmdb/internal/application/ports"
	domerrors "github.com/carbonbits/farmdb/internal/domain/errors"
	"github.com/carbonbits/farmdb/internal/infrastructure/http/middleware"
)

// AuthHandler serves registration, password login, token refresh, logout,
// and the current-user endpoint.
type AuthHandler struct {
	register *auth.Register
	login    *auth.PasswordLogin
	refresh  *auth.Refresh
	logout   *auth.Logout
	emitter  ports.WebhookEmitter
	validate *validator.Validate
	log      zerolog.Logger
}

func NewAuthHandler(register *auth.Register, login *auth.PasswordLogin, refresh *auth.Refresh, logout *auth.Logout, emitter ports.WebhookEmitter, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		register: register,
		login:    login,
		refresh:  refresh,
		logout:   logout,
		emitter:  emitter,
		validate: validator.New(),
		log:      log,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email" validate:"required,email,max=254"`
		Password    string `json:"password" validate:"required,min=8,max=128"`
		DisplayName string `json:"display_name" validate:"max=128"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	email := SanitizeEmail(body.Email)
	password := SanitizePassword(body.Password)
	if email == "" || password == "" {
		writeErr(w, http.StatusBadRequest, "", "invalid email or password length")
		return
	}

	result, err := h.register.Execute(r.Context(), auth.RegisterInput{
		Email:       email,
		Password:    password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		AuditEmit(h.log, r, h.emitter, "auth.register", "", false, err.Error())
		middleware.RecordAuthAttempt("register", false)
		if errors.Is(err, domerrors.ErrEmailTaken) {
			writeErr(w, http.StatusBadRequest, ErrCodeEmailTaken, "email already registered")
			return
		}
		h.log.Error().Err(err).Msg("register failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	AuditEmit(h.log, r, h.emitter, "auth.register", result.User.ID, true, "")
	middleware.RecordAuthAttempt("register", true)
	writeJSON(w, http.StatusOK, result.Tokens)
}

func (h *AuthHandler) LoginPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email" validate:"required,email,max=254"`
		Password string `json:"password" validate:"required,max=128"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	email := SanitizeEmail(body.Email)
	password := SanitizePassword(body.Password)
	if email == "" || password == "" {
		writeErr(w, http.StatusBadRequest, "", "invalid email or password length")
		return
	}

	result, err := h.login.Execute(r.Context(), auth.PasswordLoginInput{Email: email, Password: password})
	if err != nil {
		AuditEmit(h.log, r, h.emitter, "auth.login.password", "", false, err.Error())
		middleware.RecordAuthAttempt("login_password", false)
		switch {
		case errors.Is(err, domerrors.ErrInvalidCredentials):
			writeErr(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid email or password")
		case errors.Is(err, domerrors.ErrAccountDisabled):
			writeErr(w, http.StatusUnauthorized, ErrCodeAccountDisabled, "account is disabled")
		default:
			h.log.Error().Err(err).Msg("password login failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
		}
		return
	}
	AuditEmit(h.log, r, h.emitter, "auth.login.password", result.User.ID, true, "")
	middleware.RecordAuthAttempt("login_password", true)
	writeJSON(w, http.StatusOK, result.Tokens)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token" validate:"required,max=2048"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}

	pair, err := h.refresh.Execute(r.Context(), body.RefreshToken)
	if err != nil {
		middleware.RecordAuthAttempt("refresh", false)
		if errors.Is(err, domerrors.ErrInvalidToken) {
			writeErr(w, http.StatusUnauthorized, ErrCodeInvalidToken, "invalid or expired refresh token")
			return
		}
		h.log.Error().Err(err).Msg("refresh failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	middleware.RecordAuthAttempt("refresh", true)
	writeJSON(w, http.StatusOK, pair)
}

// Logout revokes the presented refresh token. It always returns 204: a
// token that is unknown or already revoked leaves nothing to do.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token" validate:"required,max=2048"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	if err := h.logout.Execute(r.Context(), body.RefreshToken); err != nil {
		h.log.Error().Err(err).Msg("logout failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user's public profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}
