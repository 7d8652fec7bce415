package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/domain"
	domerrors "github.com/carbonbits/farmdb/internal/domain/errors"
	"github.com/carbonbits/farmdb/internal/infrastructure/http/middleware"
	"github.com/carbonbits/farmdb/internal/infrastructure/webauthn"
)

// PasskeyHandler serves the WebAuthn ceremonies: passkey login (options +
// verify, unauthenticated) and passkey management (register, list, delete,
// all behind a bearer token).
type PasskeyHandler struct {
	engine   *webauthn.Engine
	tokens   ports.TokenService
	passkeys ports.PasskeyCredentialRepository
	emitter  ports.WebhookEmitter
	validate *validator.Validate
	log      zerolog.Logger
}

func NewPasskeyHandler(engine *webauthn.Engine, tokens ports.TokenService, passkeys ports.PasskeyCredentialRepository, emitter ports.WebhookEmitter, log zerolog.Logger) *PasskeyHandler {
	return &PasskeyHandler{
		engine:   engine,
		tokens:   tokens,
		passkeys: passkeys,
		emitter:  emitter,
		validate: validator.New(),
		log:      log,
	}
}

// LoginOptions returns authentication options. The email is optional; the
// response shape is identical whether or not the account exists.
func (h *PasskeyHandler) LoginOptions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email" validate:"omitempty,email,max=254"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}

	options, err := h.engine.AuthenticationOptions(r.Context(), SanitizeEmail(body.Email))
	if err != nil {
		h.log.Error().Err(err).Msg("passkey login options failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"options": options})
}

// LoginVerify completes a passkey login and issues a token pair.
func (h *PasskeyHandler) LoginVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Credential json.RawMessage `json:"credential" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	var probe struct {
		ChallengeKey string `json:"_challenge_key"`
	}
	if err := json.Unmarshal(body.Credential, &probe); err != nil || probe.ChallengeKey == "" {
		writeErr(w, http.StatusBadRequest, ErrCodeChallengeMissing, "missing challenge key")
		return
	}

	user, err := h.engine.VerifyAuthentication(r.Context(), body.Credential)
	if err != nil {
		AuditEmit(h.log, r, h.emitter, "auth.login.passkey", "", false, err.Error())
		middleware.RecordAuthAttempt("login_passkey", false)
		switch {
		case errors.Is(err, domerrors.ErrNoChallenge),
			errors.Is(err, domerrors.ErrCredentialNotFound),
			errors.Is(err, domerrors.ErrUserNotFound),
			errors.Is(err, domerrors.ErrVerificationFailed):
			writeErr(w, http.StatusUnauthorized, ErrCodeVerificationFailed, "passkey verification failed")
		default:
			h.log.Error().Err(err).Msg("passkey login failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
		}
		return
	}
	if !user.IsActive {
		AuditEmit(h.log, r, h.emitter, "auth.login.passkey", user.ID, false, "account disabled")
		middleware.RecordAuthAttempt("login_passkey", false)
		writeErr(w, http.StatusUnauthorized, ErrCodeAccountDisabled, "account is disabled")
		return
	}

	pair, err := h.tokens.Issue(r.Context(), user)
	if err != nil {
		h.log.Error().Err(err).Msg("token issue failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	AuditEmit(h.log, r, h.emitter, "auth.login.passkey", user.ID, true, "")
	middleware.RecordAuthAttempt("login_passkey", true)
	writeJSON(w, http.StatusOK, pair)
}

// RegisterOptions returns registration options for adding a passkey to the
// authenticated account.
func (h *PasskeyHandler) RegisterOptions(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	options, err := h.engine.RegistrationOptions(r.Context(), user)
	if err != nil {
		h.log.Error().Err(err).Msg("passkey registration options failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"options": options})
}

// RegisterVerify completes a passkey registration and returns the new
// passkey's public metadata.
func (h *PasskeyHandler) RegisterVerify(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	var body struct {
		Credential   json.RawMessage `json:"credential" validate:"required"`
		FriendlyName string          `json:"friendly_name" validate:"max=128"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}

	record, err := h.engine.VerifyRegistration(r.Context(), user, body.FriendlyName, body.Credential)
	if err != nil {
		AuditEmit(h.log, r, h.emitter, "passkey.register", user.ID, false, err.Error())
		switch {
		case errors.Is(err, domerrors.ErrNoChallenge):
			writeErr(w, http.StatusBadRequest, ErrCodeChallengeMissing, "no registration challenge found")
		case errors.Is(err, domerrors.ErrVerificationFailed):
			writeErr(w, http.StatusBadRequest, ErrCodeVerificationFailed, "passkey verification failed")
		default:
			h.log.Error().Err(err).Msg("passkey registration failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
		}
		return
	}
	AuditEmit(h.log, r, h.emitter, "passkey.register", user.ID, true, "")
	writeJSON(w, http.StatusOK, record.Info())
}

// List returns the authenticated user's passkeys, newest first.
func (h *PasskeyHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	rows, err := h.passkeys.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("list passkeys failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	infos := make([]domain.PasskeyInfo, len(rows))
	for i, row := range rows {
		infos[i] = row.Info()
	}
	writeJSON(w, http.StatusOK, map[string][]domain.PasskeyInfo{"passkeys": infos})
}

// Delete removes one of the authenticated user's passkeys. Deleting a
// passkey owned by someone else is indistinguishable from deleting one that
// does not exist.
func (h *PasskeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	passkeyID := chi.URLParam(r, "passkeyID")
	deleted, err := h.passkeys.Delete(r.Context(), user.ID, passkeyID)
	if err != nil {
		h.log.Error().Err(err).Msg("delete passkey failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	if !deleted {
		writeErr(w, http.StatusNotFound, "", "passkey not found")
		return
	}
	AuditEmit(h.log, r, h.emitter, "passkey.delete", user.ID, true, "")
	w.WriteHeader(http.StatusNoContent)
}
