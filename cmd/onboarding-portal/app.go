package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/onboarding-portal/internal/api/middleware"
	"github.com/bigkaa/onboarding-portal/internal/config"
	"github.com/bigkaa/onboarding-portal/internal/database"
	"github.com/bigkaa/onboarding-portal/internal/identity"
	"github.com/bigkaa/onboarding-portal/internal/keycloak"
	"github.com/bigkaa/onboarding-portal/internal/lock"
	"github.com/bigkaa/onboarding-portal/internal/repository"
	"github.com/bigkaa/onboarding-portal/internal/service"
)

// app — собранный сервисный слой. Один движок reconciliation на процесс.
type app struct {
	pool     *pgxpool.Pool
	keycloak *keycloak.Client
	engine   *service.Engine

	invitations *service.InvitationService
	access      *service.AccessService
	profiles    *service.ProfileService
	sweep       *service.SweepService
	status      *service.StatusService
}

// buildApp применяет миграции, подключается к PostgreSQL и Keycloak
// и создаёт сервисы. Вызывающий закрывает app.pool.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return nil, fmt.Errorf("миграции БД: %w", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	kcHTTP := &http.Client{Timeout: cfg.KeycloakTimeout}
	if cfg.KeycloakCACertPath != "" {
		kcHTTP, err = middleware.HTTPClientWithCA(cfg.KeycloakCACertPath, cfg.KeycloakTimeout)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", cfg.KeycloakCACertPath, err)
		}
		logger.Info("CA-сертификат загружен", slog.String("path", cfg.KeycloakCACertPath))
	}

	kcClient := keycloak.New(
		cfg.KeycloakURL,
		cfg.KeycloakRealm,
		cfg.KeycloakClientID,
		cfg.KeycloakClientSecret,
		kcHTTP,
		logger,
	)
	logger.Info("Keycloak клиент создан",
		slog.String("url", cfg.KeycloakURL),
		slog.String("realm", cfg.KeycloakRealm),
	)

	// Reconciliation сверяет email приглашения с текущим email identity,
	// поэтому движок и sweep читают IdP напрямую. Кэш обслуживает только
	// административные операции над профилями.
	directory := identity.NewKeycloakDirectory(kcClient, cfg.IdentityPageSize, logger)
	cachedDirectory := identity.NewCachedDirectory(directory, cfg.IdentityCacheSize, cfg.IdentityCacheTTL)

	var locker service.Locker
	switch cfg.LockMode {
	case config.LockModeLocal:
		locker = lock.NewLocal()
	default:
		locker = lock.NewAdvisory(pool, logger)
	}
	logger.Info("Per-email блокировка", slog.String("mode", cfg.LockMode))

	invitationRepo := repository.NewInvitationRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	sweepStateRepo := repository.NewSweepStateRepository(pool)

	engine := service.NewEngine(directory, invitationRepo, profileRepo, locker, logger)
	sweep := service.NewSweepService(
		engine, directory, sweepStateRepo,
		cfg.InvitationPageSize, cfg.SweepInterval,
		logger,
	)

	return &app{
		pool:        pool,
		keycloak:    kcClient,
		engine:      engine,
		invitations: service.NewInvitationService(engine, logger),
		access:      service.NewAccessService(engine, profileRepo, cfg.RoleAdminGroups, logger),
		profiles:    service.NewProfileService(profileRepo, cachedDirectory, logger),
		sweep:       sweep,
		status: service.NewStatusService(
			kcClient, engine, sweep,
			cfg.KeycloakURL, cfg.KeycloakRealm,
			logger,
		),
	}, nil
}
