package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourorg/gatehouse/internal/biometric"
	"github.com/yourorg/gatehouse/internal/handler"
	"github.com/yourorg/gatehouse/internal/infrastructure/faceapi"
	"github.com/yourorg/gatehouse/internal/infrastructure/redis"
	"github.com/yourorg/gatehouse/internal/observability/metrics"
	"github.com/yourorg/gatehouse/internal/observability/tracing"
	"github.com/yourorg/gatehouse/internal/repository"
	"github.com/yourorg/gatehouse/internal/security/audit"
	"github.com/yourorg/gatehouse/internal/security/auth"
	"github.com/yourorg/gatehouse/internal/security/middleware"
	"github.com/yourorg/gatehouse/internal/security/ratelimit"
	"github.com/yourorg/gatehouse/internal/service"
	"github.com/yourorg/gatehouse/internal/vault"
	"github.com/yourorg/gatehouse/internal/worker"
	"github.com/yourorg/gatehouse/pkg/config"
	"github.com/yourorg/gatehouse/pkg/database"
	"github.com/yourorg/gatehouse/pkg/logger"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting gatehouse server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "gatehouse", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Initialize the credential vault
	v, err := vault.New(cfg.VaultMasterKey)
	if err != nil {
		log.Error("failed to initialize vault", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Connect to Postgres and apply migrations
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		Database:        cfg.DBName,
		SSLMode:         cfg.DBSSLMode,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool.GetDB()); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Redis embedding cache; the server runs without it
	var embeddingCache biometric.EmbeddingCache
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, embedding cache disabled", slog.String("error", err.Error()))
		} else {
			defer redisClient.Close()
			embeddingCache = redis.NewEmbeddingCache(redisClient, cfg.EmbedCacheTTL, log)
		}
	}

	// 7. Face embedding pipeline
	faceClient, err := faceapi.NewClient(cfg.FaceAPIURL, cfg.FaceMatchTimeout, log)
	if err != nil {
		log.Error("failed to initialize face API client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	matcher := biometric.NewMatcher(faceClient, embeddingCache, cfg.FaceMatchThreshold, cfg.FaceMatchTimeout, log)

	// 8. Repositories
	db := pool.GetDB()
	visitorRepo := repository.NewPostgresVisitorRepository(db, log)
	personnelRepo := repository.NewPostgresPersonnelRepository(db, log)
	visitRepo := repository.NewPostgresVisitRepository(db, log)
	banRepo := repository.NewPostgresBanRepository(db, log)
	incidentRepo := repository.NewPostgresIncidentRepository(db, log)

	// 9. Security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "gatehouse")
	auditLogger := audit.NewLogger(log)
	rateLimiter := ratelimit.NewLimiter(60, time.Minute) // per client address on gate endpoints

	// 10. Services
	authService := service.NewAuthService(personnelRepo, v, tokenManager, cfg.TokenTTL, auditLogger, log)
	activityHub := handler.NewActivityHub(cfg.CORSAllowedOrigins, log)
	visitorService := service.NewVisitorService(visitorRepo, banRepo, visitRepo, authService, v, matcher, auditLogger, log)
	gateService := service.NewGateService(visitorRepo, visitRepo, banRepo, incidentRepo, authService, activityHub, auditLogger, log)

	// 11. Handlers
	loginHandler := handler.NewLoginHandler(authService, log)
	registerHandler := handler.NewRegisterVisitorHandler(visitorService, log)
	identifyHandler := handler.NewIdentifyHandler(visitorService, log)
	checkInHandler := handler.NewCheckInHandler(gateService, log)
	checkOutHandler := handler.NewCheckOutHandler(gateService, log)
	banHandler := handler.NewBanHandler(gateService, log)
	liftBanHandler := handler.NewLiftBanHandler(gateService, log)
	incidentHandler := handler.NewIncidentHandler(gateService, log)
	visitDetailHandler := handler.NewVisitDetailHandler(gateService, log)
	visitorsHandler := handler.NewVisitorsHandler(visitorService, gateService, log)
	personnelHandler := handler.NewPersonnelHandler(authService, gateService, log)
	healthHandler := handler.NewHealthHandler(pool, redisClient, log)

	// 12. Routes
	mux := http.NewServeMux()
	mux.Handle("POST /api/login", loginHandler)
	mux.Handle("POST /api/visitors/register", registerHandler)
	mux.Handle("POST /api/identify", identifyHandler)
	mux.Handle("POST /api/checkin", checkInHandler)
	mux.Handle("POST /api/checkout", checkOutHandler)
	mux.Handle("POST /api/bans", banHandler)
	mux.Handle("POST /api/bans/lift", liftBanHandler)
	mux.Handle("POST /api/incidents", incidentHandler)
	mux.HandleFunc("GET /api/visits/{id}", visitDetailHandler.ServeHTTP)
	mux.HandleFunc("GET /api/visitors", visitorsHandler.List)
	mux.HandleFunc("GET /api/visitors/{id}", visitorsHandler.Profile)
	mux.HandleFunc("GET /api/visitors/{id}/visits", visitorsHandler.Visits)
	mux.HandleFunc("GET /api/visitors/{id}/bans", visitorsHandler.Bans)
	mux.HandleFunc("GET /api/visitors/{id}/incidents", visitorsHandler.Incidents)
	mux.HandleFunc("GET /api/onsite", visitorsHandler.OnSite)
	mux.HandleFunc("POST /api/personnel", personnelHandler.Register)
	mux.HandleFunc("GET /api/personnel", personnelHandler.List)
	mux.HandleFunc("GET /api/personnel/{id}", personnelHandler.Get)
	mux.HandleFunc("PUT /api/personnel/{id}/secret-code", personnelHandler.UpdateSecretCode)
	mux.HandleFunc("GET /api/personnel/{id}/activity", personnelHandler.Activity)
	mux.HandleFunc("DELETE /api/personnel/{id}", personnelHandler.Deactivate)
	mux.Handle("GET /ws/activity", activityHub)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> metrics -> CORS -> JWT -> rate limit
	rootHandler := middleware.RequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.RateLimitMiddleware(rateLimiter, log)(
				middleware.JWTMiddleware(tokenManager, log)(
					middleware.ValidateJSONContentType(log)(handlerWithCORS),
				),
			),
		),
	)

	// 13. Background embedding warmer
	warmer := worker.NewEmbeddingWarmer(visitorRepo, matcher, log, cfg.WarmInterval)
	go warmer.Start(ctx)

	// 14. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Float64("face_match_threshold", cfg.FaceMatchThreshold),
		slog.Bool("embedding_cache", embeddingCache != nil),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop the embedding warmer
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
