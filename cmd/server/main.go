// cmd/server runs the Aurora backend: identity bridging, notifications, and
// the /api HTTP surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/auroralabs/aurora-backend/internal/accounts"
	"github.com/auroralabs/aurora-backend/internal/api"
	"github.com/auroralabs/aurora-backend/internal/config"
	"github.com/auroralabs/aurora-backend/internal/email"
	"github.com/auroralabs/aurora-backend/internal/iam"
	"github.com/auroralabs/aurora-backend/internal/notifications"
	"github.com/auroralabs/aurora-backend/internal/postgres"
	"github.com/auroralabs/aurora-backend/internal/session"
)

var version = "dev"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := postgres.Connect(ctx, cfg.Database.URL)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("connected to postgres")

	var mailer email.Sender
	if cfg.SMTP.Host != "" {
		mailer = email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		logger.Info("email: smtp sender", zap.String("host", cfg.SMTP.Host))
	} else {
		mailer = email.NewNoopSender(logger)
		logger.Warn("email: smtp not configured, codes are logged only")
	}

	iamRepo := iam.NewRepository(db)
	google := iam.NewGoogleVerifier(cfg.Google.ClientID, logger)
	authSvc := iam.NewAuthService(iamRepo, mailer, google, iam.Config{
		ServiceName:    cfg.IAM.ServiceName,
		TokenSecret:    cfg.IAM.TokenSecret,
		AccessTTL:      cfg.IAM.AccessTTL,
		RefreshTTL:     cfg.IAM.RefreshTTL,
		CodeTTL:        cfg.IAM.CodeTTL,
		CodeLength:     cfg.IAM.CodeLength,
		MinPasswordLen: cfg.IAM.MinPasswordLen,
	}, logger)

	bridge := accounts.NewBridge(accounts.NewRepository(db), logger)
	store := notifications.NewStore(notifications.NewRepository(db), logger)
	translator := session.NewTranslator(logger)
	orch := session.NewOrchestrator(authSvc, bridge, store, translator, logger)

	mw := api.NewMiddleware(orch)
	router := api.NewRouter(cfg.Server, api.RouterDeps{
		Auth: api.NewAuthHandler(orch, api.OAuthConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		}, logger),
		Notifications: api.NewNotificationHandler(store, translator, logger),
		Settings:      api.NewSettingsHandler(orch, logger),
		Status:        api.NewStatusHandler(db, version),
		Middleware:    mw,
	}, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Background: sweep expired access-token revocations hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 30*time.Second)
				if n, err := iamRepo.DeleteExpiredRevocations(sweepCtx); err != nil {
					logger.Warn("revocation sweep error", zap.Error(err))
				} else if n > 0 {
					logger.Info("swept expired revocations", zap.Int64("count", n))
				}
				sweepCancel()
			case <-quit:
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.Server.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http listen error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
