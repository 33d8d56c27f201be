// reconciler.go — движок сверки приглашений с identity и профилями.
//
// Reconcile для одной identity:
//  1. Найти identity (по ID или по email без учёта регистра)
//  2. Найти приглашение по email identity
//  3. Применить salary и role к профилю (создать минимальный профиль при отсутствии)
//  4. Удалить приглашение, только если шаг 3 сохранён
//
// Шаги 2–4 выполняются под блокировкой по нормализованному email.
// Под той же блокировкой идут запись и удаление приглашений администратором.
//
// Prometheus-метрики:
//   - onboarding_reconcile_total{trigger, reason} — итоги reconcile
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/onboarding-portal/internal/domain/access"
	"github.com/bigkaa/onboarding-portal/internal/domain/model"
	"github.com/bigkaa/onboarding-portal/internal/repository"
)

// reasonError — значение метки reason для reconcile, завершившегося ошибкой.
const reasonError = "error"

var reconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "onboarding_reconcile_total",
	Help: "Количество вызовов reconcile по триггеру и итогу",
}, []string{"trigger", "reason"})

// IdentityDirectory — каталог identity (Keycloak).
type IdentityDirectory interface {
	// LookupByID возвращает identity или (nil, nil), если её нет.
	LookupByID(ctx context.Context, id string) (*model.Identity, error)
	// FindByEmail ищет identity без учёта регистра, model.ErrAmbiguousMatch при дубликатах.
	FindByEmail(ctx context.Context, email string) (*model.Identity, error)
	// ListIdentities постранично обходит все identity.
	ListIdentities(ctx context.Context, visit func(page []model.Identity) error) error
	// Delete удаляет identity.
	Delete(ctx context.Context, id string) error
	// ResetPassword устанавливает постоянный пароль.
	ResetPassword(ctx context.Context, id, password string) error
}

// Locker — блокировка по ключу. unlock освобождает ключ.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Engine — движок reconciliation. Безопасен для конкурентного использования.
type Engine struct {
	identities  IdentityDirectory
	invitations repository.InvitationRepository
	profiles    repository.ProfileRepository
	locker      Locker
	logger      *slog.Logger
}

// NewEngine создаёт движок reconciliation.
func NewEngine(
	identities IdentityDirectory,
	invitations repository.InvitationRepository,
	profiles repository.ProfileRepository,
	locker Locker,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		identities:  identities,
		invitations: invitations,
		profiles:    profiles,
		locker:      locker,
		logger:      logger.With(slog.String("component", "reconciler")),
	}
}

// ReconcileByEmail ищет identity по email и применяет к ней приглашение.
func (e *Engine) ReconcileByEmail(ctx context.Context, trigger model.Trigger, email string) (*model.ReconcileResult, error) {
	normalized := model.NormalizeEmail(email)
	if normalized == "" {
		return nil, fmt.Errorf("%w: пустой email", ErrValidation)
	}

	ident, err := e.identities.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, model.ErrAmbiguousMatch) {
			e.logger.Warn("Несколько identity с одним email, приглашение не применено",
				slog.String("trigger", string(trigger)),
				slog.String("email", normalized),
			)
			return e.finish(trigger, &model.ReconcileResult{Reason: model.ReasonAmbiguousMatch, Email: normalized}), nil
		}
		reconcileTotal.WithLabelValues(string(trigger), reasonError).Inc()
		return nil, fmt.Errorf("%w: %w", ErrIDPUnavailable, err)
	}
	if ident == nil {
		return e.finish(trigger, &model.ReconcileResult{Reason: model.ReasonNoIdentity, Email: normalized}), nil
	}

	return e.ReconcileIdentity(ctx, trigger, *ident)
}

// ReconcileByIdentity находит identity по ID и применяет к ней приглашение.
func (e *Engine) ReconcileByIdentity(ctx context.Context, trigger model.Trigger, identityID string) (*model.ReconcileResult, error) {
	ident, err := e.identities.LookupByID(ctx, identityID)
	if err != nil {
		reconcileTotal.WithLabelValues(string(trigger), reasonError).Inc()
		return nil, fmt.Errorf("%w: %w", ErrIDPUnavailable, err)
	}
	if ident == nil {
		return e.finish(trigger, &model.ReconcileResult{Reason: model.ReasonNoIdentity, IdentityID: identityID}), nil
	}

	return e.ReconcileIdentity(ctx, trigger, *ident)
}

// ReconcileIdentity применяет приглашение к уже найденной identity (шаги 2–4).
func (e *Engine) ReconcileIdentity(ctx context.Context, trigger model.Trigger, ident model.Identity) (*model.ReconcileResult, error) {
	result, err := e.apply(ctx, trigger, ident)
	if err != nil {
		reconcileTotal.WithLabelValues(string(trigger), reasonError).Inc()
		return nil, err
	}
	return e.finish(trigger, result), nil
}

func (e *Engine) apply(ctx context.Context, trigger model.Trigger, ident model.Identity) (*model.ReconcileResult, error) {
	email := model.NormalizeEmail(ident.Email)
	result := &model.ReconcileResult{IdentityID: ident.ID, Email: email}
	if email == "" {
		result.Reason = model.ReasonNoInvitation
		return result, nil
	}

	unlock, err := e.locker.Lock(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: блокировка %s: %w", ErrStoreUnavailable, email, err)
	}
	defer unlock()

	inv, err := e.invitations.Get(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			result.Reason = model.ReasonNoInvitation
			return result, nil
		}
		return nil, storeErr(err)
	}

	prev, err := e.profiles.Get(ctx, ident.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr(err)
	}

	fields := model.ProfileFields{Salary: &inv.Salary, Role: &inv.Role}
	if prev == nil || prev.Email == "" {
		fields.Email = &email
	}

	_, created, err := e.profiles.Upsert(ctx, ident.ID, fields)
	if err != nil {
		// Приглашение остаётся для следующего запуска
		return nil, fmt.Errorf("%w: применение приглашения %s: %w", ErrStoreUnavailable, email, err)
	}

	if prev != nil && salaryDecreased(prev.Salary, inv.Salary) {
		e.logger.Warn("Повторное приглашение уменьшило salary",
			slog.String("identity_id", ident.ID),
			slog.String("email", email),
			slog.String("old_salary", prev.Salary),
			slog.String("new_salary", inv.Salary),
			slog.String("created_by", inv.CreatedBy),
		)
	}

	deleted, err := e.invitations.DeleteIfExists(ctx, email)
	if err != nil {
		e.logger.Error("Профиль обновлён, но приглашение не удалено",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: удаление приглашения %s: %w", ErrStoreUnavailable, email, err)
	}
	if !deleted {
		result.Reason = model.ReasonAlreadyRetired
		return result, nil
	}

	result.Applied = true
	result.Reason = model.ReasonApplied
	result.Salary = inv.Salary
	result.Role = inv.Role
	result.ProfileCreated = created

	e.logger.Info("Приглашение применено",
		slog.String("trigger", string(trigger)),
		slog.String("identity_id", ident.ID),
		slog.String("email", email),
		slog.String("role", inv.Role),
		slog.Bool("profile_created", created),
	)
	return result, nil
}

func (e *Engine) finish(trigger model.Trigger, result *model.ReconcileResult) *model.ReconcileResult {
	reconcileTotal.WithLabelValues(string(trigger), string(result.Reason)).Inc()
	e.logger.Debug("Reconcile завершён",
		slog.String("trigger", string(trigger)),
		slog.String("reason", string(result.Reason)),
		slog.String("identity_id", result.IdentityID),
		slog.String("email", result.Email),
	)
	return result
}

// --- Запись приглашений под блокировкой ---

// UpsertInvitation нормализует и сохраняет приглашение (замена целиком).
func (e *Engine) UpsertInvitation(ctx context.Context, inv *model.Invitation) error {
	inv.Email = model.NormalizeEmail(inv.Email)
	inv.Salary = strings.TrimSpace(inv.Salary)
	inv.Role = access.NormalizeRole(inv.Role)

	if inv.Email == "" || !strings.Contains(inv.Email, "@") {
		return fmt.Errorf("%w: некорректный email", ErrValidation)
	}
	if inv.Salary == "" {
		return fmt.Errorf("%w: salary обязательна", ErrValidation)
	}
	if !access.IsValidRole(inv.Role) {
		return ErrInvalidRole
	}

	unlock, err := e.locker.Lock(ctx, inv.Email)
	if err != nil {
		return fmt.Errorf("%w: блокировка %s: %w", ErrStoreUnavailable, inv.Email, err)
	}
	defer unlock()

	if err := e.invitations.Upsert(ctx, inv); err != nil {
		return storeErr(err)
	}
	return nil
}

// DeleteInvitation удаляет приглашение. ErrNotFound, если его не было.
func (e *Engine) DeleteInvitation(ctx context.Context, email string) error {
	normalized := model.NormalizeEmail(email)
	if normalized == "" {
		return fmt.Errorf("%w: пустой email", ErrValidation)
	}

	unlock, err := e.locker.Lock(ctx, normalized)
	if err != nil {
		return fmt.Errorf("%w: блокировка %s: %w", ErrStoreUnavailable, normalized, err)
	}
	defer unlock()

	deleted, err := e.invitations.DeleteIfExists(ctx, normalized)
	if err != nil {
		return storeErr(err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// ListInvitations возвращает до limit приглашений с email > after.
func (e *Engine) ListInvitations(ctx context.Context, after string, limit int) ([]*model.Invitation, error) {
	list, err := e.invitations.ListAfter(ctx, model.NormalizeEmail(after), limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return list, nil
}

// CountInvitations возвращает количество живых приглашений.
func (e *Engine) CountInvitations(ctx context.Context) (int, error) {
	n, err := e.invitations.Count(ctx)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

// salaryDecreased сравнивает числовые salary. Нечисловые значения не сравниваются.
func salaryDecreased(oldSalary, newSalary string) bool {
	o, errOld := parseSalary(oldSalary)
	n, errNew := parseSalary(newSalary)
	if errOld != nil || errNew != nil {
		return false
	}
	return n < o
}

func parseSalary(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}
