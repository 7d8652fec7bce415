// Package webauthn runs passkey ceremonies: registration and authentication
// options are issued with a server-side challenge, and the matching verify
// step consumes that challenge exactly once.
package webauthn

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/domain"
	domerrors "github.com/carbonbits/farmdb/internal/domain/errors"
	"github.com/carbonbits/farmdb/internal/infrastructure/challenge"
)

// challengeKeyField carries the authentication challenge key inside the
// options payload; the client echoes it back in the assertion it submits.
const challengeKeyField = "_challenge_key"

// Config identifies the relying party.
type Config struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
}

// Engine wraps go-webauthn with challenge tracking and credential storage.
type Engine struct {
	wa         *webauthn.WebAuthn
	challenges challenge.Store
	users      ports.UserRepository
	passkeys   ports.PasskeyCredentialRepository
}

func NewEngine(cfg Config, challenges challenge.Store, users ports.UserRepository, passkeys ports.PasskeyCredentialRepository) (*Engine, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementPreferred,
			UserVerification: protocol.VerificationPreferred,
		},
		AttestationPreference: protocol.PreferNoAttestation,
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return &Engine{wa: wa, challenges: challenges, users: users, passkeys: passkeys}, nil
}

func (e *Engine) ServiceSignature() string { return "webauthn_engine" }

// ceremonyUser adapts a domain user and their stored credentials to
// webauthn.User. The user handle is the user id.
type ceremonyUser struct {
	user  *domain.User
	creds []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte { return []byte(u.user.ID) }
func (u *ceremonyUser) WebAuthnName() string { return u.user.Email }
func (u *ceremonyUser) WebAuthnDisplayName() string {
	if u.user.DisplayName != "" {
		return u.user.DisplayName
	}
	return u.user.Email
}
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

// RegistrationOptions starts a registration ceremony for an authenticated
// user. Existing credentials go on the exclusion list so an authenticator
// refuses to enroll twice. The challenge is tracked under the user id,
// replacing any earlier unfinished registration.
func (e *Engine) RegistrationOptions(ctx context.Context, user *domain.User) (json.RawMessage, error) {
	creds, err := e.credentialsFor(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	u := &ceremonyUser{user: user, creds: creds}
	creation, session, err := e.wa.BeginRegistration(u,
		webauthn.WithExclusions(webauthn.Credentials(creds).CredentialDescriptors()))
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}
	if err := e.challenges.Put(ctx, user.ID, *session); err != nil {
		return nil, fmt.Errorf("store registration challenge: %w", err)
	}
	return json.Marshal(creation.Response)
}

// VerifyRegistration consumes the user's pending registration challenge,
// verifies the attestation, and stores the new credential.
func (e *Engine) VerifyRegistration(ctx context.Context, user *domain.User, friendlyName string, credentialJSON []byte) (*domain.PasskeyCredential, error) {
	session, ok, err := e.challenges.Pop(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load registration challenge: %w", err)
	}
	if !ok {
		return nil, domerrors.ErrNoChallenge
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(credentialJSON))
	if err != nil {
		return nil, domerrors.ErrVerificationFailed
	}

	creds, err := e.credentialsFor(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	cred, err := e.wa.CreateCredential(&ceremonyUser{user: user, creds: creds}, session, parsed)
	if err != nil {
		return nil, domerrors.ErrVerificationFailed
	}

	record := &domain.PasskeyCredential{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		CredentialID: cred.ID,
		PublicKey:    cred.PublicKey,
		SignCount:    cred.Authenticator.SignCount,
		DeviceType:   deviceType(cred.Flags.BackupEligible),
		BackedUp:     cred.Flags.BackupState,
		Transports:   transportStrings(cred.Transport),
		AAGUID:       formatAAGUID(cred.Authenticator.AAGUID),
		FriendlyName: friendlyName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.passkeys.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store passkey: %w", err)
	}
	return record, nil
}

// AuthenticationOptions starts an authentication ceremony. With a known
// email the allow list names that user's credentials; otherwise (unknown
// email, no passkeys, or no email at all) the options invite a discoverable
// credential, so the response does not reveal whether the account exists.
// The challenge key rides along in the payload under "_challenge_key".
func (e *Engine) AuthenticationOptions(ctx context.Context, email string) (json.RawMessage, error) {
	var (
		assertion *protocol.CredentialAssertion
		session   *webauthn.SessionData
	)

	if email != "" {
		user, err := e.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if user != nil {
			creds, err := e.credentialsFor(ctx, user.ID)
			if err != nil {
				return nil, err
			}
			if len(creds) > 0 {
				assertion, session, err = e.wa.BeginLogin(&ceremonyUser{user: user, creds: creds})
				if err != nil {
					return nil, fmt.Errorf("begin login: %w", err)
				}
			}
		}
	}
	if assertion == nil {
		var err error
		assertion, session, err = e.wa.BeginDiscoverableLogin()
		if err != nil {
			return nil, fmt.Errorf("begin discoverable login: %w", err)
		}
	}

	key := newChallengeKey()
	if err := e.challenges.Put(ctx, key, *session); err != nil {
		return nil, fmt.Errorf("store authentication challenge: %w", err)
	}

	payload, err := json.Marshal(assertion.Response)
	if err != nil {
		return nil, err
	}
	var options map[string]any
	if err := json.Unmarshal(payload, &options); err != nil {
		return nil, err
	}
	options[challengeKeyField] = key
	return json.Marshal(options)
}

// VerifyAuthentication consumes the challenge named inside the assertion,
// verifies the signature against the stored credential, updates the sign
// counter, and returns the credential's owner. A sign counter that does not
// advance is treated as a cloned authenticator and fails verification.
func (e *Engine) VerifyAuthentication(ctx context.Context, credentialJSON []byte) (*domain.User, error) {
	var probe struct {
		ChallengeKey string `json:"_challenge_key"`
	}
	if err := json.Unmarshal(credentialJSON, &probe); err != nil || probe.ChallengeKey == "" {
		return nil, domerrors.ErrNoChallenge
	}
	session, ok, err := e.challenges.Pop(ctx, probe.ChallengeKey)
	if err != nil {
		return nil, fmt.Errorf("load authentication challenge: %w", err)
	}
	if !ok {
		return nil, domerrors.ErrNoChallenge
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(credentialJSON))
	if err != nil {
		return nil, domerrors.ErrVerificationFailed
	}

	row, err := e.passkeys.GetByCredentialID(ctx, parsed.RawID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domerrors.ErrCredentialNotFound
	}
	user, err := e.users.GetByID(ctx, row.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domerrors.ErrUserNotFound
	}

	creds, err := e.credentialsFor(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	u := &ceremonyUser{user: user, creds: creds}

	var validated *webauthn.Credential
	if len(session.UserID) == 0 {
		validated, err = e.wa.ValidateDiscoverableLogin(func(rawID, userHandle []byte) (webauthn.User, error) {
			return u, nil
		}, session, parsed)
	} else {
		validated, err = e.wa.ValidateLogin(u, session, parsed)
	}
	if err != nil {
		return nil, domerrors.ErrVerificationFailed
	}
	if validated.Authenticator.CloneWarning {
		return nil, domerrors.ErrVerificationFailed
	}

	if err := e.passkeys.UpdateSignCount(ctx, row.ID, validated.Authenticator.SignCount); err != nil {
		return nil, fmt.Errorf("update sign count: %w", err)
	}
	return user, nil
}

func (e *Engine) credentialsFor(ctx context.Context, userID string) ([]webauthn.Credential, error) {
	rows, err := e.passkeys.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	creds := make([]webauthn.Credential, len(rows))
	for i, row := range rows {
		transports := make([]protocol.AuthenticatorTransport, len(row.Transports))
		for j, t := range row.Transports {
			transports[j] = protocol.AuthenticatorTransport(t)
		}
		creds[i] = webauthn.Credential{
			ID:        row.CredentialID,
			PublicKey: row.PublicKey,
			Transport: transports,
			Authenticator: webauthn.Authenticator{
				SignCount: row.SignCount,
			},
		}
	}
	return creds, nil
}

func deviceType(backupEligible bool) string {
	if backupEligible {
		return "multi_device"
	}
	return "single_device"
}

func transportStrings(transports []protocol.AuthenticatorTransport) []string {
	out := make([]string, len(transports))
	for i, t := range transports {
		out[i] = string(t)
	}
	return out
}

func formatAAGUID(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if id, err := uuid.FromBytes(raw); err == nil {
		return id.String()
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func newChallengeKey() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
