// status.go — сводный статус сверки для администратора.
// Подключение к Keycloak, число identity в realm, ожидающие приглашения, итоги последнего sweep.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/onboarding-portal/internal/keycloak"
)

// RealmInspector — операции Keycloak для статуса.
type RealmInspector interface {
	RealmInfo(ctx context.Context) (*keycloak.RealmRepresentation, error)
	CountUsers(ctx context.Context) (int, error)
}

// DependencyHealth — состояние зависимостей по данным topologymetrics.
type DependencyHealth interface {
	Health() map[string]bool
}

// StatusService — сервис статуса.
type StatusService struct {
	deps        DependencyHealth
	realm       RealmInspector
	engine      *Engine
	sweep       *SweepService
	keycloakURL string
	realmName   string
	logger      *slog.Logger
}

// Status — сводный статус.
type Status struct {
	Connected          bool
	Realm              string
	KeycloakURL        string
	UsersCount         *int
	PendingInvitations *int
	LastSweepAt        *time.Time
	LastSweepApplied   int
	LastSweepPending   int
	LastSweepFailed    int
	// Dependencies — зависимость → ok, nil без topologymetrics
	Dependencies map[string]bool
	Error        *string
}

// NewStatusService создаёт сервис статуса.
func NewStatusService(
	realm RealmInspector,
	engine *Engine,
	sweep *SweepService,
	keycloakURL, realmName string,
	logger *slog.Logger,
) *StatusService {
	return &StatusService{
		realm:       realm,
		engine:      engine,
		sweep:       sweep,
		keycloakURL: keycloakURL,
		realmName:   realmName,
		logger:      logger.With(slog.String("component", "status_service")),
	}
}

// SetDependencyHealth подключает источник состояния зависимостей.
// Вызывается при старте, до обработки запросов.
func (s *StatusService) SetDependencyHealth(deps DependencyHealth) {
	s.deps = deps
}

// GetStatus собирает статус. Недоступность отдельных источников не является ошибкой.
func (s *StatusService) GetStatus(ctx context.Context) *Status {
	status := &Status{
		Realm:       s.realmName,
		KeycloakURL: s.keycloakURL,
	}

	if _, err := s.realm.RealmInfo(ctx); err != nil {
		errMsg := fmt.Sprintf("Keycloak недоступен: %v", err)
		status.Error = &errMsg
	} else {
		status.Connected = true
		usersCount, err := s.realm.CountUsers(ctx)
		if err != nil {
			s.logger.Warn("Ошибка подсчёта пользователей", slog.String("error", err.Error()))
		} else {
			status.UsersCount = &usersCount
		}
	}

	pending, err := s.engine.CountInvitations(ctx)
	if err != nil {
		s.logger.Warn("Ошибка подсчёта приглашений", slog.String("error", err.Error()))
	} else {
		status.PendingInvitations = &pending
	}

	state, err := s.sweep.LastState(ctx)
	if err != nil {
		s.logger.Warn("Ошибка получения sweep_state", slog.String("error", err.Error()))
	} else {
		status.LastSweepAt = state.LastSweepAt
		status.LastSweepApplied = state.LastApplied
		status.LastSweepPending = state.LastPending
		status.LastSweepFailed = state.LastFailed
	}

	if s.deps != nil {
		status.Dependencies = s.deps.Health()
	}

	return status
}
