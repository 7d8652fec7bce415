package domain

import "time"

// RefreshToken is the stored record of an issued refresh token. Only the
// SHA-256 digest of the encoded token is persisted, never the token itself.
// Revoked transitions false to true exactly once (rotation or logout) and
// rows are never deleted.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	Revoked    bool
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// TokenPair is an issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AccessClaims are the verified claims of an access token.
type AccessClaims struct {
	UserID string
	Email  string
}

// FarmField is a named field managed by the application.
type FarmField struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
