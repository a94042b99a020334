package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/raktaseva/blood-api/internal/config"
	"github.com/raktaseva/blood-api/internal/email"
	"github.com/raktaseva/blood-api/internal/handler"
	authhandler "github.com/raktaseva/blood-api/internal/handler/auth"
	donorhandler "github.com/raktaseva/blood-api/internal/handler/donor"
	hospitalhandler "github.com/raktaseva/blood-api/internal/handler/hospital"
	requesthandler "github.com/raktaseva/blood-api/internal/handler/request"
	"github.com/raktaseva/blood-api/internal/middleware"
	"github.com/raktaseva/blood-api/internal/repository/fallback"
	"github.com/raktaseva/blood-api/internal/repository/postgres"
	"github.com/raktaseva/blood-api/internal/router"
	authsvc "github.com/raktaseva/blood-api/internal/service/auth"
	donorsvc "github.com/raktaseva/blood-api/internal/service/donor"
	hospitalsvc "github.com/raktaseva/blood-api/internal/service/hospital"
	"github.com/raktaseva/blood-api/internal/service/match"
	"github.com/raktaseva/blood-api/internal/service/notification"
	requestsvc "github.com/raktaseva/blood-api/internal/service/request"
	"github.com/raktaseva/blood-api/pkg/auth"
	"github.com/raktaseva/blood-api/pkg/logger"
	"github.com/raktaseva/blood-api/pkg/messaging/redis"
	"github.com/raktaseva/blood-api/pkg/metrics"
	"github.com/raktaseva/blood-api/pkg/security"
	"github.com/raktaseva/blood-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:      parseLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Logging.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	requestRepo := postgres.NewRequestRepository(db)
	donorRepo := postgres.NewDonorRepository(db)
	hospitalRepo := postgres.NewHospitalRepository(db)
	userRepo := postgres.NewUserRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	fallbackStore := fallback.NewStore()

	m := metrics.New("raktaseva")
	validate := validator.New()
	hasher := security.NewBcryptHasher(0)
	jwtService := auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Expiry:        time.Duration(cfg.JWT.ExpiryHours) * time.Hour,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiryHours) * time.Hour,
	})

	requestService := requestsvc.NewService(
		requestRepo, fallbackStore, outboxRepo, auditRepo, hospitalRepo,
		validate, log, m,
	)
	matchService := match.NewService(requestRepo, donorRepo, log)
	mailSender := email.NewSMTPSender(cfg.SMTP)
	notificationService := notification.NewService(notificationRepo, mailSender, log, m)
	hospitalService := hospitalsvc.NewService(hospitalRepo, validate, log)
	donorService := donorsvc.NewService(donorRepo, userRepo, hasher, validate, log)
	authService := authsvc.NewService(userRepo, jwtService, hasher, validate, log)

	authMW := middleware.NewAuthMiddleware(jwtService)

	r := router.New(log.ZL, router.Config{
		RateLimit: rate.Limit(cfg.Server.RateLimitRPS),
		RateBurst: cfg.Server.RateLimitRPS * 2,
		Timeout:   time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		CORS:      middleware.DefaultCORSConfig(),
	},
		handler.NewHealthHandler(db, requestService),
		authhandler.NewHandler(authService),
		requesthandler.NewHandler(requestService, matchService, notificationService, auditRepo, authMW, log),
		donorhandler.NewHandler(donorService, authMW),
		hospitalhandler.NewHandler(hospitalService, authMW),
	)
	r.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The change feed is best effort: without Redis the API still serves,
	// clients just fall back to polling.
	feed := startFeed(ctx, cfg, requestService, log)
	if feed != nil {
		defer feed.Unsubscribe()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info("starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "graceful shutdown failed")
	}
}

func startFeed(ctx context.Context, cfg *config.Config, svc *requestsvc.Service, log *logger.Logger) *requestsvc.Feed {
	broker, err := redis.NewBroker(redis.Config{
		URL: fmt.Sprintf("redis://%s/%d", cfg.Redis.Addr, cfg.Redis.DB),
	}, &log.ZL)
	if err != nil {
		log.Error(err, "redis unavailable, change feed disabled")
		return nil
	}

	feed := requestsvc.NewFeed(broker, svc, log)
	if err := feed.Subscribe(ctx); err != nil {
		log.Error(err, "failed to subscribe to change feed")
		return nil
	}
	return feed
}

func parseLevel(level string) logger.Level {
	switch level {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
