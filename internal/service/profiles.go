// profiles.go — шаги онбординга сотрудника и администрирование профилей.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bigkaa/onboarding-portal/internal/domain/access"
	"github.com/bigkaa/onboarding-portal/internal/domain/model"
	"github.com/bigkaa/onboarding-portal/internal/repository"
)

// minPasswordLength — минимальная длина пароля при сбросе администратором.
const minPasswordLength = 6

// dolarTagRe — необязательный префикс $ и затем только буквы, цифры и _.
var dolarTagRe = regexp.MustCompile(`^\$?[a-zA-Z0-9_]+$`)

// ProfileService — сервис профилей.
type ProfileService struct {
	profiles   repository.ProfileRepository
	identities IdentityDirectory
	logger     *slog.Logger
}

// ProfileStepInput — данные шага «Личная информация».
type ProfileStepInput struct {
	FullName     string
	GovernmentID string
	Country      string
	Phone        string
	Company      string
}

// ProfileOverride — изменение профиля администратором. nil — без изменений.
type ProfileOverride struct {
	Salary *string
	Role   *string
}

// NewProfileService создаёт сервис профилей.
func NewProfileService(profiles repository.ProfileRepository, identities IdentityDirectory, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles:   profiles,
		identities: identities,
		logger:     logger.With(slog.String("component", "profile_service")),
	}
}

// Get возвращает профиль по ID identity.
func (s *ProfileService) Get(ctx context.Context, id string) (*model.Profile, error) {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}
	return p, nil
}

// SaveProfileStep сохраняет личные данные. Создаёт профиль при отсутствии,
// salary и role при этом не трогаются.
func (s *ProfileService) SaveProfileStep(ctx context.Context, id, email string, in ProfileStepInput) (*model.Profile, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.GovernmentID = strings.TrimSpace(in.GovernmentID)
	in.Country = strings.TrimSpace(in.Country)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Company = strings.TrimSpace(in.Company)

	if err := validateMinLen([]minLenRule{
		{"full_name", in.FullName, 2},
		{"government_id", in.GovernmentID, 4},
		{"country", in.Country, 2},
		{"phone", in.Phone, 6},
		{"company", in.Company, 1},
	}); err != nil {
		return nil, err
	}

	fields := model.ProfileFields{
		FullName:     &in.FullName,
		GovernmentID: &in.GovernmentID,
		Country:      &in.Country,
		Phone:        &in.Phone,
		Company:      &in.Company,
	}

	current, err := s.profiles.Get(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr(err)
	}
	if current == nil || current.Email == "" {
		if normalized := model.NormalizeEmail(email); normalized != "" {
			fields.Email = &normalized
		}
	}
	if current == nil || current.OnboardingStatus == model.OnboardingPending {
		started := model.OnboardingStarted
		fields.OnboardingStatus = &started
	}

	p, _, err := s.profiles.Upsert(ctx, id, fields)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// SaveFinancialStep сохраняет тег для выплат. Префикс $ добавляется при отсутствии.
func (s *ProfileService) SaveFinancialStep(ctx context.Context, id, dolarTag string) (*model.Profile, error) {
	tag := strings.TrimSpace(dolarTag)
	if utf8.RuneCountInString(tag) < 2 || !dolarTagRe.MatchString(tag) {
		return nil, fmt.Errorf("%w: dolar_tag должен быть вида $tag", ErrValidation)
	}
	if !strings.HasPrefix(tag, "$") {
		tag = "$" + tag
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	p, _, err := s.profiles.Upsert(ctx, id, model.ProfileFields{DolarTag: &tag})
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// SaveLegalStep отмечает договор подписанным и завершает онбординг.
// Подписать договор можно только при открытом доступе.
func (s *ProfileService) SaveLegalStep(ctx context.Context, id, contractURL string, signedAt time.Time) (*model.Profile, error) {
	contractURL = strings.TrimSpace(contractURL)
	if contractURL == "" {
		return nil, fmt.Errorf("%w: contract_url обязателен", ErrValidation)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.HasAccess(current) {
		return nil, ErrAccessDenied
	}

	signed := true
	completed := model.OnboardingCompleted
	signedAt = signedAt.UTC()
	p, _, err := s.profiles.Upsert(ctx, id, model.ProfileFields{
		ContractSigned:   &signed,
		SignedAt:         &signedAt,
		ContractURL:      &contractURL,
		OnboardingStatus: &completed,
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.logger.Info("Онбординг завершён", slog.String("identity_id", id))
	return p, nil
}

// List возвращает профили сотрудников (без администраторов) и общее количество.
func (s *ProfileService) List(ctx context.Context, limit, offset int) ([]*model.Profile, int, error) {
	list, err := s.profiles.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	total, err := s.profiles.Count(ctx)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return list, total, nil
}

// Override меняет salary и/или role существующего профиля.
func (s *ProfileService) Override(ctx context.Context, id string, o ProfileOverride, actor string) (*model.Profile, error) {
	var fields model.ProfileFields
	if o.Salary != nil {
		salary := strings.TrimSpace(*o.Salary)
		if salary == "" {
			return nil, fmt.Errorf("%w: salary не может быть пустой", ErrValidation)
		}
		fields.Salary = &salary
	}
	if o.Role != nil {
		role := access.NormalizeRole(*o.Role)
		if !access.IsValidRole(role) {
			return nil, ErrInvalidRole
		}
		fields.Role = &role
	}
	if fields.IsEmpty() {
		return nil, fmt.Errorf("%w: нет полей для обновления", ErrValidation)
	}

	prev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p, _, err := s.profiles.Upsert(ctx, id, fields)
	if err != nil {
		return nil, storeErr(err)
	}

	s.logger.Info("Профиль изменён администратором",
		slog.String("identity_id", id),
		slog.String("actor", actor),
		slog.String("old_salary", prev.Salary),
		slog.String("new_salary", p.Salary),
		slog.String("old_role", prev.Role),
		slog.String("new_role", p.Role),
	)
	return p, nil
}

// DeleteResult — итог удаления профиля.
type DeleteResult struct {
	// IdentityDeleted — identity удалена в IdP
	IdentityDeleted bool
	// Warning — причина, по которой identity не удалена
	Warning string
}

// Delete удаляет профиль и затем, по возможности, identity в IdP.
// Ошибка удаления identity не отменяет удаление профиля.
func (s *ProfileService) Delete(ctx context.Context, id, actor string) (*DeleteResult, error) {
	if err := s.profiles.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}

	s.logger.Info("Профиль удалён",
		slog.String("identity_id", id),
		slog.String("actor", actor),
	)

	result := &DeleteResult{}
	if err := s.identities.Delete(ctx, id); err != nil {
		s.logger.Warn("Профиль удалён, identity в IdP не удалена",
			slog.String("identity_id", id),
			slog.String("error", err.Error()),
		)
		result.Warning = "профиль удалён; учётная запись в Identity Provider не удалена"
		return result, nil
	}
	result.IdentityDeleted = true
	return result, nil
}

// ResetPassword задаёт новый постоянный пароль identity.
func (s *ProfileService) ResetPassword(ctx context.Context, id, password, actor string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("%w: пароль короче %d символов", ErrValidation, minPasswordLength)
	}

	ident, err := s.identities.LookupByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIDPUnavailable, err)
	}
	if ident == nil {
		return ErrNotFound
	}

	if err := s.identities.ResetPassword(ctx, id, password); err != nil {
		return fmt.Errorf("%w: %w", ErrIDPUnavailable, err)
	}

	s.logger.Info("Пароль сброшен администратором",
		slog.String("identity_id", id),
		slog.String("actor", actor),
	)
	return nil
}

type minLenRule struct {
	field string
	value string
	min   int
}

func validateMinLen(rules []minLenRule) error {
	var bad []string
	for _, r := range rules {
		if utf8.RuneCountInString(r.value) < r.min {
			bad = append(bad, r.field)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: не заполнены поля %s", ErrValidation, strings.Join(bad, ", "))
	}
	return nil
}
