// invitations.go — сервис приглашений для администратора.
// Create — upsert приглашения и немедленный reconcile по email (триггер admin_create).
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
)

// InvitationService — сервис управления приглашениями.
type InvitationService struct {
	engine *Engine
	logger *slog.Logger
}

// CreateInvitationResult — результат создания приглашения.
type CreateInvitationResult struct {
	Invitation *model.Invitation
	// Reconcile — итог немедленного применения, nil при ошибке применения
	Reconcile *model.ReconcileResult
	// Warning — описание ошибки применения; приглашение при этом сохранено
	Warning string
}

// NewInvitationService создаёт сервис приглашений.
func NewInvitationService(engine *Engine, logger *slog.Logger) *InvitationService {
	return &InvitationService{
		engine: engine,
		logger: logger.With(slog.String("component", "invitation_service")),
	}
}

// Create сохраняет приглашение и сразу пытается применить его к существующей identity.
// Отсутствие identity не ошибка: приглашение остаётся ожидающим.
func (s *InvitationService) Create(ctx context.Context, email, salary, role, createdBy string) (*CreateInvitationResult, error) {
	inv := &model.Invitation{
		Email:     email,
		Salary:    salary,
		Role:      role,
		CreatedBy: createdBy,
	}
	if err := s.engine.UpsertInvitation(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("Приглашение сохранено",
		slog.String("email", inv.Email),
		slog.String("role", inv.Role),
		slog.String("created_by", createdBy),
	)

	result := &CreateInvitationResult{Invitation: inv}

	rec, err := s.engine.ReconcileByEmail(ctx, model.TriggerAdminCreate, inv.Email)
	if err != nil {
		s.logger.Warn("Приглашение сохранено, но не применено",
			slog.String("email", inv.Email),
			slog.String("error", err.Error()),
		)
		result.Warning = warningFor(err)
		return result, nil
	}
	result.Reconcile = rec
	return result, nil
}

// List возвращает страницу приглашений в порядке email и общее количество.
func (s *InvitationService) List(ctx context.Context, after string, limit int) ([]*model.Invitation, int, error) {
	list, err := s.engine.ListInvitations(ctx, after, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.engine.CountInvitations(ctx)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Delete удаляет приглашение администратором.
func (s *InvitationService) Delete(ctx context.Context, email string) error {
	if err := s.engine.DeleteInvitation(ctx, email); err != nil {
		return err
	}
	s.logger.Info("Приглашение удалено", slog.String("email", model.NormalizeEmail(email)))
	return nil
}

// warningFor формирует текст предупреждения для администратора.
func warningFor(err error) string {
	switch {
	case errors.Is(err, ErrIDPUnavailable):
		return "приглашение сохранено; Identity Provider недоступен, применение будет выполнено при следующей сверке"
	case errors.Is(err, ErrStoreUnavailable):
		return "приглашение сохранено; профиль не обновлён, применение будет выполнено при следующей сверке"
	default:
		return "приглашение сохранено; применение отложено: " + err.Error()
	}
}
