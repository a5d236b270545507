package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crimespot/backend/internal/app/migrate"
	httpx "github.com/crimespot/backend/internal/http"
	"github.com/crimespot/backend/internal/repository/postgres"
	"github.com/crimespot/backend/internal/service/auth"
	"github.com/crimespot/backend/internal/service/report"
	"github.com/crimespot/backend/internal/ws"
	"github.com/crimespot/backend/pkg/config"
	"github.com/crimespot/backend/pkg/crypto"
	"github.com/crimespot/backend/pkg/logger"
	"github.com/crimespot/backend/pkg/token"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(config.GetString("LOG_LEVEL", "info")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	reportHub := ws.NewHub()
	defer reportHub.Stop()

	authSvc := auth.New(
		repo,
		crypto.NewHasher(cfg.BcryptCost),
		token.NewManager(cfg.JWTSecret, cfg.TokenIssuer),
		log,
		auth.TokenTTL{Access: cfg.AccessTokenTTL, Login: cfg.LoginTokenTTL},
	)
	reportSvc := report.New(repo, reportHub, log)

	limiter := httpx.NewRateLimiter(cfg.RateLimitRedisAddr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)

	router := httpx.NewRouter(log, authSvc, reportSvc, limiter, cfg.CORSAllowedOrigin, cfg.UploadDir, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
