// Package challenge provides ephemeral storage for in-flight WebAuthn
// ceremony state. A challenge is consumed (read-and-delete) exactly once by
// the verify step that matches it.
package challenge

import (
	"context"

	"github.com/go-webauthn/webauthn/webauthn"
)

// Store maps a challenge key (a user id for registration, a random token
// for authentication) to pending ceremony session data.
type Store interface {
	Put(ctx context.Context, key string, session webauthn.SessionData) error
	// Pop returns and removes the session for key. The removal is atomic:
	// of N concurrent Pops with the same key at most one observes ok=true.
	Pop(ctx context.Context, key string) (webauthn.SessionData, bool, error)
}
