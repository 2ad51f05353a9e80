package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Renagang21/o4o-auth-service/config"
	"github.com/Renagang21/o4o-auth-service/db"
	"github.com/Renagang21/o4o-auth-service/internal/auth/authz"
	"github.com/Renagang21/o4o-auth-service/internal/auth/handler"
	repo "github.com/Renagang21/o4o-auth-service/internal/auth/repository/postgres"
	"github.com/Renagang21/o4o-auth-service/internal/auth/service"
	"github.com/Renagang21/o4o-auth-service/internal/auth/session"
	"github.com/Renagang21/o4o-auth-service/internal/mailer"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		// Missing signing secrets or broken limits are not recoverable
		// per-request; refuse to start.
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := db.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	store := repo.NewRepository(pool, cfg.StoreTimeout)
	sessions := session.NewRedisStore(redisClient, cfg.RefreshTokenTTL, cfg.MaxSessionsPerUser)
	matrix := authz.NewMatrix()

	var mail mailer.Mailer
	if cfg.SMTPAddr != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPFrom, cfg.FrontendURL)
	} else {
		mail = mailer.NewLogMailer(logger)
	}

	tokenService := service.NewTokenService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, store, matrix, logger)
	securityService := service.NewLoginSecurityService(store, store, mail, cfg, logger)
	oneTimeService := service.NewOneTimeTokenService(store, cfg.ResetTokenTTL, cfg.VerificationTokenTTL, logger)
	authService := service.NewAuthService(store, tokenService, securityService, sessions,
		oneTimeService, mail, cfg, logger)

	authHandler := handler.NewAuthHandler(authService, securityService, tokenService, cfg)

	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.IsProduction()})
	handler.RegisterRoutes(app, authHandler, tokenService, matrix, cfg)

	go runAttemptRetention(ctx, securityService, logger)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("auth service listening", "port", cfg.Port, "env", cfg.Env)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// runAttemptRetention purges old login-attempt rows once an hour.
func runAttemptRetention(ctx context.Context, security *service.LoginSecurityService, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := security.PurgeAttempts(ctx)
			if err != nil {
				logger.Warn("attempt retention purge failed", "error", err)
				continue
			}
			if purged > 0 {
				logger.Info("purged old login attempts", "rows", purged)
			}
		}
	}
}
