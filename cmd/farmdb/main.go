package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/carbonbits/farmdb/internal/application/auth"
	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/config"
	infraauth "github.com/carbonbits/farmdb/internal/infrastructure/auth"
	"github.com/carbonbits/farmdb/internal/infrastructure/challenge"
	httprouter "github.com/carbonbits/farmdb/internal/infrastructure/http"
	"github.com/carbonbits/farmdb/internal/infrastructure/http/handlers"
	"github.com/carbonbits/farmdb/internal/infrastructure/http/middleware"
	"github.com/carbonbits/farmdb/internal/infrastructure/persistence/sqlite"
	"github.com/carbonbits/farmdb/internal/infrastructure/security"
	webauthnsvc "github.com/carbonbits/farmdb/internal/infrastructure/webauthn"
	"github.com/carbonbits/farmdb/internal/infrastructure/webhook"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.JWT.GeneratedSecret {
		log.Warn().Msg("JWT_SECRET_KEY not set; generated a random secret, tokens will not survive a restart")
	}

	ctx := context.Background()
	db, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := sqlite.RunMigrations(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("parse REDIS_URL")
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed; continuing without redis")
			redisClient = nil
		}
	}

	userRepo := sqlite.NewUserRepository(db)
	passwordRepo := sqlite.NewPasswordCredentialRepository(db)
	passkeyRepo := sqlite.NewPasskeyCredentialRepository(db)
	tokenStore := sqlite.NewTokenStore(db)
	fieldRepo := sqlite.NewFieldRepository(db)

	hasher := security.NewArgon2Hasher(security.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  16,
		KeyLength:   32,
	})

	tokenService := infraauth.NewTokenService(
		[]byte(cfg.JWT.SecretKey),
		time.Duration(cfg.JWT.AccessExpiry)*time.Second,
		time.Duration(cfg.JWT.RefreshExpiry)*time.Second,
		tokenStore,
		userRepo,
	)

	var challengeStore challenge.Store
	if redisClient != nil {
		challengeStore = challenge.NewRedisStore(redisClient, 5*time.Minute)
	} else {
		challengeStore = challenge.NewMemoryStore(5 * time.Minute)
	}

	engine, err := webauthnsvc.NewEngine(webauthnsvc.Config{
		RPID:          cfg.WebAuthn.RPID,
		RPDisplayName: cfg.WebAuthn.RPName,
		RPOrigins:     []string{cfg.WebAuthn.Origin},
	}, challengeStore, userRepo, passkeyRepo)
	if err != nil {
		log.Fatal().Err(err).Msg("create webauthn engine")
	}

	registerUC := auth.NewRegister(userRepo, passwordRepo, hasher, tokenService)
	loginUC := auth.NewPasswordLogin(userRepo, passwordRepo, hasher, tokenService)
	refreshUC := auth.NewRefresh(tokenService)
	logoutUC := auth.NewLogout(tokenService)
	currentUserUC := auth.NewCurrentUser(tokenService, userRepo)

	var emitter ports.WebhookEmitter = webhook.NewNoopEmitter()
	if cfg.Audit.WebhookURL != "" {
		emitter = webhook.NewHTTPEmitter(cfg.Audit.WebhookURL)
		log.Info().Msg("audit webhook enabled")
	}

	authHandler := handlers.NewAuthHandler(registerUC, loginUC, refreshUC, logoutUC, emitter, log)
	passkeyHandler := handlers.NewPasskeyHandler(engine, tokenService, passkeyRepo, emitter, log)
	fieldsHandler := handlers.NewFieldsHandler(fieldRepo, log)
	healthHandler := handlers.NewHealthHandler(db, redisClient)
	spaHandler := handlers.NewSPAHandler(cfg.SPA.Dir)

	ipLimit, err := middleware.NewIPRateLimiter(cfg.RateLimit.PerMinute)
	if err != nil {
		log.Fatal().Err(err).Msg("create IP rate limiter")
	}
	secureMiddleware := middleware.NewSecure(middleware.SecureOptions(cfg.Server.DevMode))
	corsMiddleware := middleware.CORS([]string{cfg.WebAuthn.Origin}, nil, nil)

	router := httprouter.NewRouter(httprouter.RouterConfig{
		AuthHandler:    authHandler,
		PasskeyHandler: passkeyHandler,
		FieldsHandler:  fieldsHandler,
		HealthHandler:  healthHandler,
		SPAHandler:     spaHandler,
		RequireUser:    middleware.NewBearerAuth(currentUserUC).Handler,
		Log:            log,
		Secure:         secureMiddleware,
		CORS:           corsMiddleware,
		IPRateLimit:    ipLimit,
		Metrics:        true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}
