package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/config"
	"github.com/taply/backend/internal/handlers"
	"github.com/taply/backend/internal/metrics"
	"github.com/taply/backend/internal/ratelimit"
	"github.com/taply/backend/internal/services"
	"github.com/taply/backend/internal/storage"
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := storage.Open(openCtx, cfg.Storage())
	cancel()
	if err != nil {
		log.WithError(err).Fatal("failed to open account store")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.WithError(err).Warn("failed to close account store")
		}
	}()

	var captcha services.CaptchaVerifier
	if cfg.RecaptchaSecret != "" {
		captcha = services.NewRecaptchaVerifier(cfg.RecaptchaSecret)
	}

	// Initialize services with persistent storage
	accountService := services.NewAccountService(store, services.NewPasswordHasher(cfg.PasswordSalt), services.NewTokenIssuer(cfg.JWTSecret), captcha)
	profileService := services.NewProfileService(store)
	analyticsService := services.NewAnalyticsService(store)
	imageService, err := services.NewImageService(cfg.UploadDir)
	if err != nil {
		log.WithError(err).Fatal("failed to prepare upload directory")
	}

	limiter := newLimiter(ctx, cfg)
	if closer, ok := limiter.(*ratelimit.RedisLimiter); ok {
		defer closer.Close()
	}

	metrics.InitMetrics()

	router := handlers.NewRouter(handlers.RouterConfig{
		Accounts:           accountService,
		Profiles:           profileService,
		Analytics:          analyticsService,
		Images:             imageService,
		MaxUploadSizeMB:    cfg.MaxUploadSizeMB,
		BodyLimitBytes:     config.BodyLimitBytes,
		CORSOrigins:        cfg.CORSOrigins,
		Limiter:            limiter,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		Metrics:            true,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
	}()

	log.WithFields(log.Fields{"addr": cfg.ServerAddress, "backend": cfg.Backend()}).Info("Taply API server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server failed to start")
	}
	log.Info("server stopped")
}

// newLimiter shares rate limit windows through Redis when REDIS_URL is set and
// falls back to a per-process limiter otherwise.
func newLimiter(ctx context.Context, cfg *config.Config) ratelimit.Limiter {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryLimiter()
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	l, err := ratelimit.NewRedisLimiter(pingCtx, cfg.RedisURL, "taply:ratelimit")
	if err != nil {
		log.WithError(err).Warn("redis unavailable, using in-memory rate limiting")
		return ratelimit.NewMemoryLimiter()
	}
	return l
}
