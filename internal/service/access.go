// access.go — проверка доступа к защищённой области (claim-on-access).
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bigkaa/onboarding-portal/internal/domain/access"
	"github.com/bigkaa/onboarding-portal/internal/domain/model"
	"github.com/bigkaa/onboarding-portal/internal/repository"
)

// AccessService — Access Gate с попыткой применить ожидающее приглашение.
type AccessService struct {
	engine      *Engine
	profiles    repository.ProfileRepository
	adminGroups []string
	logger      *slog.Logger
}

// AccessResult — итог проверки доступа.
type AccessResult struct {
	Granted bool
	// Profile — профиль после проверки, nil если профиля нет
	Profile *model.Profile
	// Reconcile — итог claim-on-access, nil если доступ был и без него
	Reconcile *model.ReconcileResult
}

// NewAccessService создаёт сервис проверки доступа.
// adminGroups — группы IdP, дающие роль admin.
func NewAccessService(engine *Engine, profiles repository.ProfileRepository, adminGroups []string, logger *slog.Logger) *AccessService {
	return &AccessService{
		engine:      engine,
		profiles:    profiles,
		adminGroups: adminGroups,
		logger:      logger.With(slog.String("component", "access_service")),
	}
}

// Check проверяет доступ identity. Если доступа нет, запускает reconcile по ID
// и перечитывает профиль. Сбой claim-on-access не ошибка: результат — отказ
// в доступе, приглашение остаётся для следующей попытки или sweep.
// Ошибкой возвращается только сбой первичного чтения профиля.
func (s *AccessService) Check(ctx context.Context, identityID string) (*AccessResult, error) {
	profile, err := s.getProfile(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if access.HasAccess(profile) {
		return &AccessResult{Granted: true, Profile: profile}, nil
	}

	rec, err := s.engine.ReconcileByIdentity(ctx, model.TriggerClaimOnAccess, identityID)
	if err != nil {
		s.logger.Warn("Claim-on-access не удался, доступ отклонён",
			slog.String("identity_id", identityID),
			slog.String("error", err.Error()),
		)
		return &AccessResult{Profile: profile}, nil
	}

	result := &AccessResult{Profile: profile, Reconcile: rec}
	if rec.Applied {
		fresh, err := s.getProfile(ctx, identityID)
		if err != nil {
			s.logger.Warn("Не удалось перечитать профиль после claim-on-access",
				slog.String("identity_id", identityID),
				slog.String("error", err.Error()),
			)
			return result, nil
		}
		profile = fresh
		result.Profile = profile
		s.logger.Info("Доступ открыт по приглашению",
			slog.String("identity_id", identityID),
			slog.String("email", rec.Email),
		)
	}
	result.Granted = access.HasAccess(profile)
	return result, nil
}

// IsAdmin возвращает true, если identity — администратор по группам IdP или по роли профиля.
func (s *AccessService) IsAdmin(ctx context.Context, identityID string, groups []string) (bool, error) {
	idpRole := access.MapGroupsToRole(groups, s.adminGroups)
	if idpRole == access.RoleAdmin {
		return true, nil
	}

	profile, err := s.getProfile(ctx, identityID)
	if err != nil {
		return false, err
	}
	profileRole := ""
	if profile != nil {
		profileRole = profile.Role
	}
	return access.EffectiveRole(profileRole, idpRole) == access.RoleAdmin, nil
}

func (s *AccessService) getProfile(ctx context.Context, id string) (*model.Profile, error) {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, storeErr(err)
	}
	return p, nil
}
