// Package main запускает HTTP-сервер автошколы.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/driveright-academy/internal/config"
	"github.com/mmeshcher/driveright-academy/internal/handler"
	"github.com/mmeshcher/driveright-academy/internal/metrics"
	"github.com/mmeshcher/driveright-academy/internal/middleware"
	"github.com/mmeshcher/driveright-academy/internal/paystack"
	"github.com/mmeshcher/driveright-academy/internal/repository"
	"github.com/mmeshcher/driveright-academy/internal/service"
	"github.com/mmeshcher/driveright-academy/internal/wizard"
)

var (
	_ handler.Service         = (*service.Service)(nil)
	_ handler.Wizard          = (*wizard.Wizard)(nil)
	_ wizard.PaymentProcessor = (*service.Service)(nil)
	_ service.Gateway         = (*paystack.Client)(nil)
	_ service.Repository      = (*repository.PostgresRepository)(nil)
	_ service.Repository      = (*repository.MongoRepository)(nil)
)

func openRepository(cfg *config.Config) (service.Repository, error) {
	if cfg.UseMongo() {
		repo, err := repository.NewMongoRepository(cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func settingsSeed(cfg *config.Config) map[string]string {
	return map[string]string{
		service.SettingPaystackSecretKey: cfg.PaystackSecretKey,
		service.SettingPaystackPublicKey: cfg.PaystackPublicKey,
		service.SettingCurrency:          cfg.Currency,
	}
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	metrics.Register()

	repo, err := openRepository(cfg)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error(), "mongo", cfg.UseMongo())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings := service.NewSettings(repo)
	if err := settings.Load(ctx, settingsSeed(cfg)); err != nil {
		sugar.Fatalw("settings initialization error", "error", err.Error())
	}

	gateway := paystack.NewClient(cfg.PaystackBaseURL, settings.SecretKey)

	svc := service.NewService(repo, gateway, settings, logger, service.Options{CallbackURL: cfg.APIURL})
	defer svc.Close()

	if err := svc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		sugar.Fatalw("admin account initialization error", "error", err.Error())
	}

	sessions := wizard.NewStore(cfg.WizardTTL)
	enrollWizard := wizard.New(svc, svc, sessions)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		sugar.Warn("JWT_SECRET is not set, tokens will not survive a restart")
	}

	h := handler.NewHandler(svc, enrollWizard, logger, authMiddleware, handler.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        promhttp.Handler(),
	})

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Сверка платежей, ожидающих подтверждения шлюза
	g.Go(func() error {
		svc.StartPaymentReconciliation(ctx, cfg.ReconcileInterval)
		return nil
	})

	// Очистка истёкших сессий мастера записи
	g.Go(func() error {
		sessions.Run(ctx, 0)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting driveright server",
			"addr", cfg.RunAddress,
			"mongo", cfg.UseMongo(),
			"gateway", svc.GatewayEnabled(),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
