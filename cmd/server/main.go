package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AnshRaj112/lovedoctor-backend/internal/config"
	"github.com/AnshRaj112/lovedoctor-backend/internal/database"
	"github.com/AnshRaj112/lovedoctor-backend/internal/handlers"
	"github.com/AnshRaj112/lovedoctor-backend/internal/middleware"
	"github.com/AnshRaj112/lovedoctor-backend/internal/routes"
	"github.com/AnshRaj112/lovedoctor-backend/internal/services"
	"github.com/AnshRaj112/lovedoctor-backend/internal/telemetry"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/logger"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	lg, err := logger.Init(logger.Config{Level: cfg.Log.Level, Dev: cfg.Log.Dev})
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer lg.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		lg.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		lg.Warn("Tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	// Connect to PostgreSQL
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		lg.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		lg.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer database.DisconnectRedis()

	// MongoDB only holds analytics; without it events go to the log.
	var tracker services.EventTracker
	if err := database.Connect(cfg.MongoURI); err != nil {
		lg.Warn("⚠️  MongoDB unavailable, analytics events will only be logged", zap.Error(err))
		tracker = services.NewLogTracker(lg)
	} else {
		defer database.Disconnect()
		mongoTracker := services.NewMongoTracker(database.DB, cfg.Analytics.Collection, lg)
		if err := mongoTracker.EnsureIndexes(ctx); err != nil {
			lg.Warn("⚠️  Failed to ensure analytics indexes", zap.Error(err))
		}
		defer mongoTracker.Wait()
		tracker = mongoTracker
	}

	directory, err := services.ParseCoachDirectory(cfg.CoachDirectory)
	if err != nil {
		lg.Fatal("Invalid COACH_UID_MAP", zap.Error(err))
	}

	var uploader services.ImageUploader
	if cfg.Cloudinary.Enabled() {
		cld, err := services.NewCloudinaryService(cfg.Cloudinary)
		if err != nil {
			lg.Warn("Failed to initialize Cloudinary, image uploads disabled", zap.Error(err))
		} else {
			uploader = cld
			lg.Info("✅ Cloudinary service initialized")
		}
	} else {
		lg.Warn("Cloudinary credentials not found, image uploads disabled")
	}

	accounts := database.NewAccountRepository(database.PostgresDB)
	sessions := services.NewSessionManager(cfg.Session, services.NewRedisSessionRegistry(database.RedisClient), accounts, lg)

	chat := services.NewCometChatClient(cfg.Chat, lg)
	go func() {
		if err := chat.Run(ctx); err != nil && ctx.Err() == nil {
			lg.Warn("⚠️  Chat provider not configured, handoffs will fail", zap.Error(err))
		}
	}()

	leadFeed := services.NewLeadFeed(database.RedisClient, lg)
	leadFeed.Start(ctx)

	cookie := middleware.SessionCookie{Name: cfg.Session.CookieName, Secure: cfg.Session.Secure, TTL: cfg.Session.TTL}
	h := handlers.New(handlers.Deps{
		Verifier:  services.NewOTPlessVerifier(cfg.OTPless, lg),
		Resolver:  services.NewResolver(accounts, lg),
		Sessions:  sessions,
		Accounts:  services.NewAccountService(accounts),
		Handoff:   services.NewHandoff(accounts, chat, directory, tracker, leadFeed, cfg.HandoffTimeout, lg),
		Profiles:  services.NewCoachProfileService(accounts, uploader, lg),
		Directory: directory,
		Tracker:   tracker,
		Hasher:    services.NewIPHasher(cfg.Analytics.Salt),
		Leads:     leadFeed,
		Chat:      chat,
		HealthChecks: map[string]handlers.HealthCheck{
			"postgres": func(ctx context.Context) error { return database.PostgresDB.PingContext(ctx) },
			"redis":    func(ctx context.Context) error { return database.RedisClient.Ping(ctx).Err() },
		},
		Cookie:         cookie,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxy,
		Log:            lg,
	})

	router := routes.NewRouter(h, routes.Options{
		Production:      cfg.IsProduction(),
		ServiceName:     cfg.Telemetry.ServiceName,
		AllowedOrigins:  cfg.AllowedOrigins,
		AllowedHosts:    cfg.AllowedHosts,
		CoachHostPrefix: cfg.CoachHostPrefix,
		SiteDir:         cfg.SiteDir,
		CoachSiteDir:    cfg.CoachSiteDir,
		InternalAPIKey:  cfg.InternalAPIKey,
		TrustProxy:      cfg.TrustProxy,
		Redis:           database.RedisClient,
		VerifyLimit:     cfg.VerifyLimit,
		VerifyWindow:    cfg.VerifyWindow,
		Sessions:        sessions,
		Cookie:          cookie,
		Log:             lg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		lg.Info("🚀 Love Doctor backend running",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Environment),
			zap.Bool("production_security", cfg.IsProduction()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("Server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		lg.Warn("Tracer shutdown failed", zap.Error(err))
	}
}
