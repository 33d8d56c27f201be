// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
	"github.com/bigkaa/onboarding-portal/internal/repository"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrInvalidRole — некорректная роль.
	ErrInvalidRole = errors.New("некорректная роль: допустимые значения — user, admin")
	// ErrIDPUnavailable — Identity Provider (Keycloak) недоступен.
	ErrIDPUnavailable = errors.New("Identity Provider недоступен")
	// ErrStoreUnavailable — хранилище приглашений или профилей недоступно.
	ErrStoreUnavailable = errors.New("хранилище недоступно")
	// ErrAmbiguousMatch — несколько identity с одним email.
	ErrAmbiguousMatch = model.ErrAmbiguousMatch
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrAccessDenied — у профиля нет доступа к защищённой области.
	ErrAccessDenied = errors.New("доступ запрещён")
)

// storeErr оборачивает ошибку репозитория: нарушение ограничения схемы —
// ErrValidation, остальное — ErrStoreUnavailable.
func storeErr(err error) error {
	if errors.Is(err, repository.ErrConstraint) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
