package handlers

// API error codes returned in JSON { "error": "...", "code": "..." } for
// stable client handling.
const (
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeAccountDisabled    = "account_disabled"
	ErrCodeEmailTaken         = "email_taken"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeInvalidToken       = "invalid_token"
	ErrCodeNotFound           = "not_found"
	ErrCodeChallengeMissing   = "challenge_missing"
	ErrCodeVerificationFailed = "verification_failed"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInternal           = "internal_error"
)
