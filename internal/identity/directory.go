// Пакет identity — каталог identity поверх Keycloak Admin REST API.
// KeycloakDirectory — поиск по ID и email, постраничный обход realm.
// CachedDirectory — LRU-кэш LookupByID с TTL.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
	"github.com/bigkaa/onboarding-portal/internal/keycloak"
)

// KeycloakAPI — операции Keycloak-клиента, нужные каталогу.
type KeycloakAPI interface {
	ListUsers(ctx context.Context, query string, first, max int) ([]keycloak.KeycloakUser, error)
	SearchUsersByEmail(ctx context.Context, email string, first, max int) ([]keycloak.KeycloakUser, error)
	GetUser(ctx context.Context, id string) (*keycloak.KeycloakUser, error)
	DeleteUser(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, id, password string) error
}

// KeycloakDirectory — каталог identity в realm Keycloak.
type KeycloakDirectory struct {
	kc       KeycloakAPI
	pageSize int
	logger   *slog.Logger
}

// NewKeycloakDirectory создаёт каталог.
// pageSize — размер страницы (параметр max) при обходе и поиске.
func NewKeycloakDirectory(kc KeycloakAPI, pageSize int, logger *slog.Logger) *KeycloakDirectory {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &KeycloakDirectory{
		kc:       kc,
		pageSize: pageSize,
		logger:   logger.With(slog.String("component", "identity_directory")),
	}
}

// LookupByID возвращает identity по ID. Для отсутствующей — (nil, nil).
func (d *KeycloakDirectory) LookupByID(ctx context.Context, id string) (*model.Identity, error) {
	user, err := d.kc.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, keycloak.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("поиск identity %s: %w", id, err)
	}
	ident := toIdentity(user)
	return &ident, nil
}

// FindByEmail ищет identity с email, равным email без учёта регистра.
// Просматривает все страницы результата поиска, так как Keycloak ищет по подстроке.
// Возвращает (nil, nil), если совпадений нет, и model.ErrAmbiguousMatch, если их больше одного.
func (d *KeycloakDirectory) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	normalized := model.NormalizeEmail(email)
	if normalized == "" {
		return nil, nil
	}

	var found *model.Identity
	for first := 0; ; first += d.pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		users, err := d.kc.SearchUsersByEmail(ctx, normalized, first, d.pageSize)
		if err != nil {
			return nil, fmt.Errorf("поиск identity по email: %w", err)
		}

		for i := range users {
			if !model.EmailsMatch(users[i].Email, normalized) {
				continue
			}
			if found != nil && found.ID != users[i].ID {
				return nil, model.ErrAmbiguousMatch
			}
			ident := toIdentity(&users[i])
			found = &ident
		}

		if len(users) < d.pageSize {
			break
		}
	}

	return found, nil
}

// ListIdentities обходит всех пользователей realm страницами по pageSize
// и передаёт каждую страницу в visit. Цикл завершается на неполной странице,
// при ошибке visit или при отмене ctx.
func (d *KeycloakDirectory) ListIdentities(ctx context.Context, visit func(page []model.Identity) error) error {
	pages := 0
	for first := 0; ; first += d.pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		users, err := d.kc.ListUsers(ctx, "", first, d.pageSize)
		if err != nil {
			return fmt.Errorf("обход identity (first=%d): %w", first, err)
		}
		pages++

		page := make([]model.Identity, 0, len(users))
		for i := range users {
			page = append(page, toIdentity(&users[i]))
		}
		if len(page) > 0 {
			if err := visit(page); err != nil {
				return err
			}
		}

		if len(users) < d.pageSize {
			break
		}
	}

	d.logger.Debug("Обход identity завершён", slog.Int("pages", pages))
	return nil
}

// Delete удаляет identity. Отсутствующая identity не считается ошибкой.
func (d *KeycloakDirectory) Delete(ctx context.Context, id string) error {
	if err := d.kc.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, keycloak.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("удаление identity %s: %w", id, err)
	}
	return nil
}

// ResetPassword устанавливает постоянный пароль identity.
func (d *KeycloakDirectory) ResetPassword(ctx context.Context, id, password string) error {
	if err := d.kc.ResetPassword(ctx, id, password); err != nil {
		return fmt.Errorf("сброс пароля identity %s: %w", id, err)
	}
	return nil
}

// toIdentity конвертирует пользователя Keycloak в доменную модель.
func toIdentity(u *keycloak.KeycloakUser) model.Identity {
	return model.Identity{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAtTime(),
	}
}
