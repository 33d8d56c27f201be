// handler.go — HTTP API Onboarding Portal.
// APIHandler объединяет доменные обработчики и делегирует запросы в сервисный слой.
// Маршруты регистрируются в Routes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/onboarding-portal/internal/api/errors"
	"github.com/bigkaa/onboarding-portal/internal/api/middleware"
	"github.com/bigkaa/onboarding-portal/internal/domain/model"
	"github.com/bigkaa/onboarding-portal/internal/service"
)

// InvitationManager — операции администратора с приглашениями.
type InvitationManager interface {
	Create(ctx context.Context, email, salary, role, createdBy string) (*service.CreateInvitationResult, error)
	List(ctx context.Context, after string, limit int) ([]*model.Invitation, int, error)
	Delete(ctx context.Context, email string) error
}

// Sweeper — пакетная сверка по запросу.
type Sweeper interface {
	RunSweep(ctx context.Context) (*model.SweepReport, error)
}

// AccessChecker — Access Gate с claim-on-access.
type AccessChecker interface {
	Check(ctx context.Context, identityID string) (*service.AccessResult, error)
}

// ProfileManager — шаги онбординга и администрирование профилей.
type ProfileManager interface {
	Get(ctx context.Context, id string) (*model.Profile, error)
	SaveProfileStep(ctx context.Context, id, email string, in service.ProfileStepInput) (*model.Profile, error)
	SaveFinancialStep(ctx context.Context, id, dolarTag string) (*model.Profile, error)
	SaveLegalStep(ctx context.Context, id, contractURL string, signedAt time.Time) (*model.Profile, error)
	List(ctx context.Context, limit, offset int) ([]*model.Profile, int, error)
	Override(ctx context.Context, id string, o service.ProfileOverride, actor string) (*model.Profile, error)
	Delete(ctx context.Context, id, actor string) (*service.DeleteResult, error)
	ResetPassword(ctx context.Context, id, password, actor string) error
}

// StatusProvider — сводный статус сверки.
type StatusProvider interface {
	GetStatus(ctx context.Context) *service.Status
}

// APIHandler — обработчик API Onboarding Portal.
type APIHandler struct {
	invitations InvitationManager
	sweeper     Sweeper
	access      AccessChecker
	profiles    ProfileManager
	status      StatusProvider
	logger      *slog.Logger
}

// NewAPIHandler создаёт обработчик API.
func NewAPIHandler(
	invitations InvitationManager,
	sweeper Sweeper,
	access AccessChecker,
	profiles ProfileManager,
	status StatusProvider,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		invitations: invitations,
		sweeper:     sweeper,
		access:      access,
		profiles:    profiles,
		status:      status,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// Routes регистрирует маршруты /api/v1.
// requireAdmin — middleware проверки роли admin для административных endpoints.
func (h *APIHandler) Routes(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	// Самообслуживание сотрудника
	r.Get("/me/access", h.GetAccess)
	r.Get("/me/profile", h.GetMyProfile)
	r.Put("/me/profile", h.SaveProfileStep)
	r.Put("/me/financial", h.SaveFinancialStep)
	r.Put("/me/legal", h.SaveLegalStep)

	// Администрирование
	r.Group(func(r chi.Router) {
		r.Use(requireAdmin)

		r.Post("/invitations", h.CreateInvitation)
		r.Get("/invitations", h.ListInvitations)
		r.Post("/invitations/sweep", h.RunSweep)
		r.Delete("/invitations/{email}", h.DeleteInvitation)

		r.Get("/profiles", h.ListProfiles)
		r.Put("/profiles/{id}", h.UpdateProfile)
		r.Delete("/profiles/{id}", h.DeleteProfile)
		r.Post("/profiles/{id}/password", h.ResetPassword)

		r.Get("/status", h.GetStatus)
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса. При ошибке пишет 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidRole):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, msg+": не найдено")
	case errors.Is(err, service.ErrAccessDenied):
		apierrors.AccessDenied(w, "Нет доступа: salary не назначена")
	case errors.Is(err, service.ErrSweepInProgress):
		apierrors.SweepInProgress(w, err.Error())
	case errors.Is(err, service.ErrIDPUnavailable):
		h.logger.Error(msg, slog.String("path", r.URL.Path), slog.String("request_id", middleware.RequestIDFromContext(r.Context())), slog.String("error", err.Error()))
		apierrors.IDPUnavailable(w, msg+": Identity Provider недоступен")
	case errors.Is(err, service.ErrStoreUnavailable):
		h.logger.Error(msg, slog.String("path", r.URL.Path), slog.String("request_id", middleware.RequestIDFromContext(r.Context())), slog.String("error", err.Error()))
		apierrors.StoreUnavailable(w, msg+": хранилище недоступно")
	default:
		h.logger.Error(msg, slog.String("path", r.URL.Path), slog.String("request_id", middleware.RequestIDFromContext(r.Context())), slog.String("error", err.Error()))
		apierrors.InternalError(w, msg)
	}
}

// queryInt читает неотрицательное целое из query-параметра.
// Отсутствующий параметр — nil.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, errors.New("параметр " + name + " должен быть неотрицательным целым")
	}
	return &n, nil
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 100
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 1000 {
			l = 1000
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}
