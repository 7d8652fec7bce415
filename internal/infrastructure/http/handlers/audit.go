package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/carbonbits/farmdb/internal/application/ports"
)

// AuditLog logs auth events with the acting user and client IP.
func AuditLog(log zerolog.Logger, r *http.Request, event, userID string, success bool, errMsg string) {
	ev := log.Info()
	if !success {
		ev = log.Warn()
	}
	ev.
		Str("event", event).
		Str("user_id", userID).
		Str("ip", getClientIP(r)).
		Str("request_id", middleware.GetReqID(r.Context())).
		Bool("success", success)
	if errMsg != "" {
		ev.Str("error", errMsg)
	}
	ev.Msg("auth_audit")
}

// AuditEmit logs the event and mirrors it to the webhook emitter. Emitter
// failures are logged and never surface to the request.
func AuditEmit(log zerolog.Logger, r *http.Request, emitter ports.WebhookEmitter, event, userID string, success bool, errMsg string) {
	AuditLog(log, r, event, userID, success, errMsg)
	if emitter == nil {
		return
	}
	if err := emitter.Emit(r.Context(), ports.AuditEvent{
		Event:   event,
		UserID:  userID,
		IP:      getClientIP(r),
		Success: success,
		Err:     errMsg,
	}); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("audit webhook emit failed")
	}
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	return r.RemoteAddr
}
