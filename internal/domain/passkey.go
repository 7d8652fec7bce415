package domain

import "time"

// PasskeyCredential is a stored WebAuthn credential. CredentialID is the
// authenticator-issued handle and is globally unique; PublicKey is the COSE
// public key used to verify assertions. SignCount is the authenticator's
// monotonic counter, updated on every successful authentication.
type PasskeyCredential struct {
	ID           string
	UserID       string
	CredentialID []byte
	PublicKey    []byte
	SignCount    uint32
	DeviceType   string
	BackedUp     bool
	Transports   []string
	AAGUID       string
	FriendlyName string
	CreatedAt    time.Time
	LastUsedAt   *time.Time
}

// PasskeyInfo is the public metadata of a passkey. The public key and raw
// credential id are never exposed.
type PasskeyInfo struct {
	ID           string     `json:"id"`
	FriendlyName string     `json:"friendly_name,omitempty"`
	DeviceType   string     `json:"device_type,omitempty"`
	BackedUp     bool       `json:"backed_up"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// Info returns the public metadata of c.
func (c *PasskeyCredential) Info() PasskeyInfo {
	return PasskeyInfo{
		ID:           c.ID,
		FriendlyName: c.FriendlyName,
		DeviceType:   c.DeviceType,
		BackedUp:     c.BackedUp,
		CreatedAt:    c.CreatedAt,
		LastUsedAt:   c.LastUsedAt,
	}
}
