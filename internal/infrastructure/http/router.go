// Package http assembles the API surface: versioned auth and fields routes,
// operational endpoints, and the SPA fallback for everything else.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/carbonbits/farmdb/internal/infrastructure/http/handlers"
	"github.com/carbonbits/farmdb/internal/infrastructure/http/middleware"
)

type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	PasskeyHandler *handlers.PasskeyHandler
	FieldsHandler  *handlers.FieldsHandler
	HealthHandler  *handlers.HealthHandler
	SPAHandler     *handlers.SPAHandler
	RequireUser    func(http.Handler) http.Handler
	Log            zerolog.Logger
	Secure         func(http.Handler) http.Handler
	CORS           func(http.Handler) http.Handler
	IPRateLimit    func(http.Handler) http.Handler
	Metrics        bool // expose /metrics
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(loggerMiddleware(cfg.Log))
	r.Use(chimid.Recoverer)
	r.Use(middleware.APIVersion("v1"))
	if cfg.Metrics {
		r.Use(middleware.PrometheusMiddleware)
	}
	if cfg.Secure != nil {
		r.Use(cfg.Secure)
	}
	if cfg.CORS != nil {
		r.Use(cfg.CORS)
	}
	if cfg.IPRateLimit != nil {
		r.Use(cfg.IPRateLimit)
	}

	if cfg.HealthHandler != nil {
		r.Get("/health", cfg.HealthHandler.ServeHTTP)
	} else {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
	}
	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(chimid.AllowContentType("application/json"))

		// Credential-presenting routes: no bearer token required.
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login/password", cfg.AuthHandler.LoginPassword)
		r.Post("/login/passkey/options", cfg.PasskeyHandler.LoginOptions)
		r.Post("/login/passkey/verify", cfg.PasskeyHandler.LoginVerify)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
		r.Post("/logout", cfg.AuthHandler.Logout)

		// Routes that act on the authenticated account.
		r.Group(func(r chi.Router) {
			r.Use(cfg.RequireUser)
			r.Get("/me", cfg.AuthHandler.Me)
			r.Post("/passkeys/register/options", cfg.PasskeyHandler.RegisterOptions)
			r.Post("/passkeys/register/verify", cfg.PasskeyHandler.RegisterVerify)
			r.Get("/passkeys", cfg.PasskeyHandler.List)
			r.Delete("/passkeys/{passkeyID}", cfg.PasskeyHandler.Delete)
		})
	})

	if cfg.FieldsHandler != nil {
		r.Route("/v1/fields", func(r chi.Router) {
			r.Use(chimid.AllowContentType("application/json"))
			r.Post("/", cfg.FieldsHandler.Create)
			r.Get("/", cfg.FieldsHandler.List)
		})
	}

	if cfg.SPAHandler != nil {
		r.NotFound(cfg.SPAHandler.ServeHTTP)
	}

	return r
}

func loggerMiddleware(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := chimid.GetReqID(r.Context())
			log.Info().
				Str("request_id", reqID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("request")
			next.ServeHTTP(w, r)
		})
	}
}
