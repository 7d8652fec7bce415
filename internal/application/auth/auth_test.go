package auth

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/carbonbits/farmdb/internal/domain/errors"
	infraauth "github.com/carbonbits/farmdb/internal/infrastructure/auth"
	"github.com/carbonbits/farmdb/internal/infrastructure/persistence/sqlite"
	"github.com/carbonbits/farmdb/internal/infrastructure/security"
)

// testParams keeps hashing cheap in tests.
var testParams = security.Argon2Params{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type fixture struct {
	users     *sqlite.UserRepository
	passwords *sqlite.PasswordCredentialRepository
	hasher    *security.Argon2Hasher
	tokens    *infraauth.TokenService

	register *Register
	login    *PasswordLogin
	refresh  *Refresh
	logout   *Logout
	current  *CurrentUser
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(context.Background(), db))

	users := sqlite.NewUserRepository(db)
	passwords := sqlite.NewPasswordCredentialRepository(db)
	hasher := security.NewArgon2Hasher(testParams)
	tokens := infraauth.NewTokenService([]byte("test-secret"), 15*time.Minute, time.Hour, sqlite.NewTokenStore(db), users)

	return &fixture{
		users:     users,
		passwords: passwords,
		hasher:    hasher,
		tokens:    tokens,
		register:  NewRegister(users, passwords, hasher, tokens),
		login:     NewPasswordLogin(users, passwords, hasher, tokens),
		refresh:   NewRefresh(tokens),
		logout:    NewLogout(tokens),
		current:   NewCurrentUser(tokens, users),
	}
}

func TestRegisterIssuesTokens(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.register.Execute(ctx, RegisterInput{
		Email:       "Alice@Example.com",
		Password:    "correct horse",
		DisplayName: "Alice",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, "bearer", res.Tokens.TokenType)
	assert.True(t, res.User.IsActive)
	assert.False(t, res.User.IsVerified)

	// Stored lower-cased; lookup is case-insensitive.
	user, err := f.users.GetByEmail(ctx, "ALICE@example.COM")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestRegisterRejectsTakenEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.register.Execute(ctx, RegisterInput{Email: "alice@example.com", Password: "pw-one-two"})
	require.NoError(t, err)

	_, err = f.register.Execute(ctx, RegisterInput{Email: "ALICE@example.com", Password: "other-pw-34"})
	assert.ErrorIs(t, err, domerrors.ErrEmailTaken)
}

func TestPasswordLogin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.register.Execute(ctx, RegisterInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)

	res, err := f.login.Execute(ctx, PasswordLoginInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)

	_, err = f.login.Execute(ctx, PasswordLoginInput{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, domerrors.ErrInvalidCredentials)

	_, err = f.login.Execute(ctx, PasswordLoginInput{Email: "nobody@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, domerrors.ErrInvalidCredentials)
}

func TestPasswordLoginDisabledAccount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.register.Execute(ctx, RegisterInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
	require.NoError(t, f.users.SetActive(ctx, res.User.ID, false))

	_, err = f.login.Execute(ctx, PasswordLoginInput{Email: "alice@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, domerrors.ErrAccountDisabled)
}

func TestPasswordLoginUpgradesLegacyHash(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.register.Execute(ctx, RegisterInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)

	// Store a hash produced with outdated parameters.
	legacy := security.NewArgon2Hasher(security.Argon2Params{
		Memory:      4 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	legacyHash, err := legacy.Hash("correct horse")
	require.NoError(t, err)
	require.NoError(t, f.passwords.Upsert(ctx, res.User.ID, legacyHash))

	_, err = f.login.Execute(ctx, PasswordLoginInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)

	stored, err := f.passwords.GetHash(ctx, res.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, legacyHash, stored)
	assert.False(t, f.hasher.NeedsRehash(stored))
	assert.True(t, f.hasher.Verify("correct horse", stored))
}

func TestRefreshRotatesOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.register.Execute(ctx, RegisterInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)

	fresh, err := f.refresh.Execute(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, fresh.RefreshToken)

	_, err = f.refresh.Execute(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)
}

func TestLogoutIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.register.Execute(ctx, RegisterInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)

	require.NoError(t, f.logout.Execute(ctx, res.Tokens.RefreshToken))
	require.NoError(t, f.logout.Execute(ctx, res.Tokens.RefreshToken))
	require.NoError(t, f.logout.Execute(ctx, "never-issued"))

	_, err = f.refresh.Execute(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)
}

func TestCurrentUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.register.Execute(ctx, RegisterInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)

	user, err := f.current.Execute(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)

	_, err = f.current.Execute(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)

	require.NoError(t, f.users.SetActive(ctx, user.ID, false))
	_, err = f.current.Execute(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)
}
