package webauthn

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/descope/virtualwebauthn"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonbits/farmdb/internal/domain"
	domerrors "github.com/carbonbits/farmdb/internal/domain/errors"
	"github.com/carbonbits/farmdb/internal/infrastructure/challenge"
	"github.com/carbonbits/farmdb/internal/infrastructure/persistence/sqlite"
)

var testRP = virtualwebauthn.RelyingParty{
	Name:   "FarmDB",
	ID:     "localhost",
	Origin: "http://localhost:5700",
}

type engineFixture struct {
	engine   *Engine
	users    *sqlite.UserRepository
	passkeys *sqlite.PasskeyCredentialRepository
	user     *domain.User
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(context.Background(), db))

	users := sqlite.NewUserRepository(db)
	passkeys := sqlite.NewPasskeyCredentialRepository(db)

	now := time.Now().UTC()
	user := &domain.User{
		ID:          uuid.NewString(),
		Email:       "alice@example.com",
		DisplayName: "Alice",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, users.Create(context.Background(), user))

	engine, err := NewEngine(Config{
		RPID:          testRP.ID,
		RPDisplayName: testRP.Name,
		RPOrigins:     []string{testRP.Origin},
	}, challenge.NewMemoryStore(time.Minute), users, passkeys)
	require.NoError(t, err)

	return &engineFixture{engine: engine, users: users, passkeys: passkeys, user: user}
}

// registerPasskey drives a full registration ceremony with a virtual
// authenticator and returns the enrolled credential.
func registerPasskey(t *testing.T, f *engineFixture, auth *virtualwebauthn.Authenticator, name string) *virtualwebauthn.Credential {
	t.Helper()
	ctx := context.Background()

	options, err := f.engine.RegistrationOptions(ctx, f.user)
	require.NoError(t, err)

	parsed, err := virtualwebauthn.ParseAttestationOptions(string(options))
	require.NoError(t, err)

	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	attestation := virtualwebauthn.CreateAttestationResponse(testRP, *auth, cred, *parsed)

	record, err := f.engine.VerifyRegistration(ctx, f.user, name, []byte(attestation))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, name, record.FriendlyName)

	auth.AddCredential(cred)
	return &cred
}

func withChallengeKey(t *testing.T, assertion, key string) []byte {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(assertion), &m))
	m["_challenge_key"] = key
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return out
}

func popChallengeKey(t *testing.T, options []byte) string {
	t.Helper()
	var m struct {
		Key string `json:"_challenge_key"`
	}
	require.NoError(t, json.Unmarshal(options, &m))
	require.NotEmpty(t, m.Key)
	return m.Key
}

func TestRegistrationCeremony(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	auth := virtualwebauthn.NewAuthenticator()

	registerPasskey(t, f, &auth, "yubikey")

	rows, err := f.passkeys.ListByUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].CredentialID)
	assert.NotEmpty(t, rows[0].PublicKey)
	assert.Nil(t, rows[0].LastUsedAt)
}

func TestRegistrationExclusionListGrows(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	auth := virtualwebauthn.NewAuthenticator()

	registerPasskey(t, f, &auth, "first")

	options, err := f.engine.RegistrationOptions(ctx, f.user)
	require.NoError(t, err)

	var opts struct {
		ExcludeCredentials []struct {
			ID string `json:"id"`
		} `json:"excludeCredentials"`
	}
	require.NoError(t, json.Unmarshal(options, &opts))
	assert.Len(t, opts.ExcludeCredentials, 1)
}

func TestRegistrationChallengeConsumedOnce(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	auth := virtualwebauthn.NewAuthenticator()

	options, err := f.engine.RegistrationOptions(ctx, f.user)
	require.NoError(t, err)
	parsed, err := virtualwebauthn.ParseAttestationOptions(string(options))
	require.NoError(t, err)
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	attestation := virtualwebauthn.CreateAttestationResponse(testRP, auth, cred, *parsed)

	_, err = f.engine.VerifyRegistration(ctx, f.user, "", []byte(attestation))
	require.NoError(t, err)

	// Replay after the challenge has been consumed.
	_, err = f.engine.VerifyRegistration(ctx, f.user, "", []byte(attestation))
	assert.ErrorIs(t, err, domerrors.ErrNoChallenge)
}

func TestRegistrationWithoutChallenge(t *testing.T) {
	f := setupEngine(t)
	_, err := f.engine.VerifyRegistration(context.Background(), f.user, "", []byte(`{}`))
	assert.ErrorIs(t, err, domerrors.ErrNoChallenge)
}

func TestAuthenticationByEmail(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	auth := virtualwebauthn.NewAuthenticator()
	cred := registerPasskey(t, f, &auth, "laptop")

	options, err := f.engine.AuthenticationOptions(ctx, f.user.Email)
	require.NoError(t, err)

	var opts struct {
		AllowCredentials []struct {
			ID string `json:"id"`
		} `json:"allowCredentials"`
	}
	require.NoError(t, json.Unmarshal(options, &opts))
	assert.Len(t, opts.AllowCredentials, 1)

	key := popChallengeKey(t, options)
	parsed, err := virtualwebauthn.ParseAssertionOptions(string(options))
	require.NoError(t, err)

	cred.Counter++
	assertion := virtualwebauthn.CreateAssertionResponse(testRP, auth, *cred, *parsed)

	got, err := f.engine.VerifyAuthentication(ctx, withChallengeKey(t, assertion, key))
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, got.ID)

	rows, err := f.passkeys.ListByUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, cred.Counter, rows[0].SignCount)
	assert.NotNil(t, rows[0].LastUsedAt)
}

func TestAuthenticationDiscoverable(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticatorWithOptions(virtualwebauthn.AuthenticatorOptions{
		UserHandle: []byte(f.user.ID),
	})
	cred := registerPasskey(t, f, &auth, "phone")

	// No email: the options carry no allow list.
	options, err := f.engine.AuthenticationOptions(ctx, "")
	require.NoError(t, err)

	var opts map[string]any
	require.NoError(t, json.Unmarshal(options, &opts))
	assert.NotContains(t, opts, "allowCredentials")

	key := popChallengeKey(t, options)
	parsed, err := virtualwebauthn.ParseAssertionOptions(string(options))
	require.NoError(t, err)

	cred.Counter++
	assertion := virtualwebauthn.CreateAssertionResponse(testRP, auth, *cred, *parsed)

	got, err := f.engine.VerifyAuthentication(ctx, withChallengeKey(t, assertion, key))
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, got.ID)
}

func TestAuthenticationUnknownEmailFallsBackToDiscoverable(t *testing.T) {
	f := setupEngine(t)

	options, err := f.engine.AuthenticationOptions(context.Background(), "nobody@example.com")
	require.NoError(t, err)

	var opts map[string]any
	require.NoError(t, json.Unmarshal(options, &opts))
	assert.NotContains(t, opts, "allowCredentials")
	popChallengeKey(t, options)
}

func TestAuthenticationChallengeConsumedOnce(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	auth := virtualwebauthn.NewAuthenticator()
	cred := registerPasskey(t, f, &auth, "")

	options, err := f.engine.AuthenticationOptions(ctx, f.user.Email)
	require.NoError(t, err)
	key := popChallengeKey(t, options)
	parsed, err := virtualwebauthn.ParseAssertionOptions(string(options))
	require.NoError(t, err)

	cred.Counter++
	assertion := virtualwebauthn.CreateAssertionResponse(testRP, auth, *cred, *parsed)
	body := withChallengeKey(t, assertion, key)

	_, err = f.engine.VerifyAuthentication(ctx, body)
	require.NoError(t, err)

	_, err = f.engine.VerifyAuthentication(ctx, body)
	assert.ErrorIs(t, err, domerrors.ErrNoChallenge)
}

func TestAuthenticationMissingChallengeKey(t *testing.T) {
	f := setupEngine(t)
	_, err := f.engine.VerifyAuthentication(context.Background(), []byte(`{"rawId":"abc"}`))
	assert.ErrorIs(t, err, domerrors.ErrNoChallenge)
}

func TestAuthenticationUnknownCredential(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	// A valid ceremony signed by an authenticator whose credential was
	// never enrolled.
	auth := virtualwebauthn.NewAuthenticatorWithOptions(virtualwebauthn.AuthenticatorOptions{
		UserHandle: []byte(f.user.ID),
	})
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	auth.AddCredential(cred)

	options, err := f.engine.AuthenticationOptions(ctx, "")
	require.NoError(t, err)
	key := popChallengeKey(t, options)
	parsed, err := virtualwebauthn.ParseAssertionOptions(string(options))
	require.NoError(t, err)

	assertion := virtualwebauthn.CreateAssertionResponse(testRP, auth, cred, *parsed)
	_, err = f.engine.VerifyAuthentication(ctx, withChallengeKey(t, assertion, key))
	assert.ErrorIs(t, err, domerrors.ErrCredentialNotFound)
}

func TestAuthenticationRejectsSignCountRegression(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	auth := virtualwebauthn.NewAuthenticator()
	cred := registerPasskey(t, f, &auth, "")

	// Pretend the credential has already been used many times elsewhere; a
	// cloned authenticator would present a smaller counter.
	rows, err := f.passkeys.ListByUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, f.passkeys.UpdateSignCount(ctx, rows[0].ID, 1000))

	options, err := f.engine.AuthenticationOptions(ctx, f.user.Email)
	require.NoError(t, err)
	key := popChallengeKey(t, options)
	parsed, err := virtualwebauthn.ParseAssertionOptions(string(options))
	require.NoError(t, err)

	cred.Counter++
	assertion := virtualwebauthn.CreateAssertionResponse(testRP, auth, *cred, *parsed)

	_, err = f.engine.VerifyAuthentication(ctx, withChallengeKey(t, assertion, key))
	assert.ErrorIs(t, err, domerrors.ErrVerificationFailed)

	// The regressed counter must not be persisted.
	rows, err = f.passkeys.ListByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), rows[0].SignCount)
}
