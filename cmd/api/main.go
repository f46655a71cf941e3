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

	"github.com/speedpay/speedpay-api/internal/config"
	"github.com/speedpay/speedpay-api/internal/handler"
	"github.com/speedpay/speedpay-api/internal/logging"
	"github.com/speedpay/speedpay-api/internal/middleware"
	"github.com/speedpay/speedpay-api/internal/repository"
	"github.com/speedpay/speedpay-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("speedpay-api", cfg.LogLevel, cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	users := repository.NewUserRepository(db)
	accounts := repository.NewAccountRepository(db)
	transactions := repository.NewTransactionRepository(db)
	refreshTokens := repository.NewRefreshTokenRepository(db)

	registration := service.NewRegistrationService(users, accounts, db)
	ledgerSvc := service.NewLedgerService(accounts, transactions, db)

	accessExpiry := time.Duration(cfg.AccessTokenExpiryM) * time.Minute
	refreshExpiry := time.Duration(cfg.RefreshTokenExpiryH) * time.Hour

	authHandler := handler.NewAuthHandler(registration, users, accounts, refreshTokens, cfg.JWTSecret, accessExpiry, refreshExpiry)
	userHandler := handler.NewUserHandler(registration)
	accountHandler := handler.NewAccountHandler(accounts, transactions)
	transactionHandler := handler.NewTransactionHandler(ledgerSvc, accounts)
	healthHandler := handler.NewHealthHandler(db)

	requireAuth := middleware.Auth(cfg.JWTSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)

	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)

	mux.Handle("GET /api/v1/users", requireAuth(http.HandlerFunc(userHandler.List)))
	mux.Handle("GET /api/v1/accounts/{id}", requireAuth(http.HandlerFunc(accountHandler.Get)))
	mux.Handle("GET /api/v1/accounts/{id}/transactions", requireAuth(http.HandlerFunc(accountHandler.ListTransactions)))
	mux.Handle("POST /api/v1/bank_transaction", requireAuth(http.HandlerFunc(transactionHandler.Create)))

	root := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
