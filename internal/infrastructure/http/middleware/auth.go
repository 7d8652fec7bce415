package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/carbonbits/farmdb/internal/application/auth"
)

// BearerAuth validates the bearer access token and resolves it to an active
// user in the request context (see UserFromContext). Requests with a
// missing, malformed, expired, or wrong-type token get a 401, as do tokens
// whose account has been disabled since issuance.
type BearerAuth struct {
	current *auth.CurrentUser
}

func NewBearerAuth(current *auth.CurrentUser) *BearerAuth {
	return &BearerAuth{current: current}
}

func (m *BearerAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeErr(w, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		user, err := m.current.Execute(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeErr(w, http.StatusUnauthorized, "invalid_token", "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func writeErr(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": errCode})
}
