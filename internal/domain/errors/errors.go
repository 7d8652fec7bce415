package errors

import "errors"

// Sentinel errors for handlers to map to HTTP status.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrPasskeyNotFound    = errors.New("passkey not found")

	// WebAuthn ceremony failures. All three surface to clients as a single
	// authentication-rejected outcome; the distinction exists for logging
	// and tests only.
	ErrNoChallenge        = errors.New("no challenge found")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrVerificationFailed = errors.New("webauthn verification failed")
)
