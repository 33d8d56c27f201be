package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/bigkaa/onboarding-portal/internal/api/handlers"
	"github.com/bigkaa/onboarding-portal/internal/api/middleware"
	"github.com/bigkaa/onboarding-portal/internal/config"
	"github.com/bigkaa/onboarding-portal/internal/database"
	"github.com/bigkaa/onboarding-portal/internal/server"
	"github.com/bigkaa/onboarding-portal/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP API и периодический sweep приглашений",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, logger)
	},
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Onboarding Portal запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("OP_DEPHEALTH_GROUP") == "" {
		logger.Warn("OP_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	// Адаптер pgxpool → *sql.DB для topologymetrics: проверка идёт через
	// существующий пул и видит его исчерпание.
	pgDB := stdlib.OpenDBFromPool(a.pool)
	defer pgDB.Close()

	// Readiness checkers
	pgChecker := database.NewReadinessChecker(a.pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(
		cfg.JWTJWKSURL, cfg.KeycloakCACertPath, cfg.KeycloakReadinessTimeout,
	)
	if err != nil {
		return fmt.Errorf("создание Keycloak readiness checker: %w", err)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker).WithSweepChecker(a.sweep)

	apiHandler := handlers.NewAPIHandler(
		a.invitations,
		a.sweep,
		a.access,
		a.profiles,
		a.status,
		logger,
	)

	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.KeycloakCACertPath,
		cfg.JWTIssuer,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		return fmt.Errorf("создание JWT middleware: %w", err)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)
	requireAdmin := middleware.RequireAdmin(a.access, logger)

	// Периодический sweep
	a.sweep.Start(ctx)

	// topologymetrics — мониторинг PostgreSQL и Keycloak
	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:             "onboarding-portal",
		Group:                 cfg.DephealthGroup,
		DB:                    pgDB,
		PostgresURL:           cfg.DatabaseURL(),
		KeycloakJWKSURL:       cfg.JWTJWKSURL,
		CheckInterval:         cfg.DephealthCheckInterval,
		KeycloakTLSSkipVerify: cfg.KeycloakCACertPath != "",
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	} else {
		a.status.SetDependencyHealth(dephealthSvc)
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	srv := server.New(cfg, logger, apiHandler, healthHandler, jwtAuth, requireAdmin)
	runErr := srv.Run(ctx)

	logger.Info("Останавливаем фоновые задачи...")
	cancel()
	a.sweep.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("Onboarding Portal остановлен")
	return nil
}
