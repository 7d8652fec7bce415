package ports

import "context"

// AuditEvent is an auth event mirrored to an external sink.
type AuditEvent struct {
	Event   string `json:"event"`
	UserID  string `json:"user_id,omitempty"`
	IP      string `json:"ip,omitempty"`
	Success bool   `json:"success"`
	Err     string `json:"error,omitempty"`
}

// WebhookEmitter forwards audit events to an external endpoint. Delivery is
// best effort; auth flows never fail on emitter errors.
type WebhookEmitter interface {
	Emit(ctx context.Context, event AuditEvent) error
}
