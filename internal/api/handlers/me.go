// me.go — обработчики /api/v1/me endpoints: доступ и шаги онбординга сотрудника.
package handlers

import (
	"net/http"
	"time"

	apierrors "github.com/bigkaa/onboarding-portal/internal/api/errors"
	"github.com/bigkaa/onboarding-portal/internal/api/middleware"
	"github.com/bigkaa/onboarding-portal/internal/service"
)

type profileStepRequest struct {
	FullName     string `json:"full_name"`
	GovernmentID string `json:"government_id"`
	Country      string `json:"country"`
	Phone        string `json:"phone"`
	Company      string `json:"company"`
}

type financialStepRequest struct {
	DolarTag string `json:"dolar_tag"`
}

type legalStepRequest struct {
	ContractURL string     `json:"contract_url"`
	SignedAt    *time.Time `json:"signed_at,omitempty"`
}

// GetAccess — GET /api/v1/me/access.
// Проверка доступа к защищённой области. Без доступа запускается
// claim-on-access; 403 ACCESS_DENIED, если приглашения нет или claim не удался.
func (h *APIHandler) GetAccess(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	res, err := h.access.Check(r.Context(), claims.Subject)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка проверки доступа")
		return
	}
	if !res.Granted {
		apierrors.AccessDenied(w, "Нет доступа: приглашение с salary не найдено")
		return
	}

	writeJSON(w, http.StatusOK, accessResponse{
		Granted:   true,
		Profile:   mapProfile(res.Profile),
		Reconcile: mapReconcile(res.Reconcile),
	})
}

// GetMyProfile — GET /api/v1/me/profile.
// Профиль текущего пользователя без проверки доступа: шаги онбординга
// доступны и до назначения salary.
func (h *APIHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	p, err := h.profiles.Get(r.Context(), claims.Subject)
	if err != nil {
		h.writeServiceError(w, r, err, "Профиль")
		return
	}

	writeJSON(w, http.StatusOK, mapProfile(p))
}

// SaveProfileStep — PUT /api/v1/me/profile.
func (h *APIHandler) SaveProfileStep(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	var req profileStepRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.profiles.SaveProfileStep(r.Context(), claims.Subject, claims.Email, service.ProfileStepInput{
		FullName:     req.FullName,
		GovernmentID: req.GovernmentID,
		Country:      req.Country,
		Phone:        req.Phone,
		Company:      req.Company,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка сохранения профиля")
		return
	}

	writeJSON(w, http.StatusOK, mapProfile(p))
}

// SaveFinancialStep — PUT /api/v1/me/financial.
func (h *APIHandler) SaveFinancialStep(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	var req financialStepRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.profiles.SaveFinancialStep(r.Context(), claims.Subject, req.DolarTag)
	if err != nil {
		h.writeServiceError(w, r, err, "Профиль")
		return
	}

	writeJSON(w, http.StatusOK, mapProfile(p))
}

// SaveLegalStep — PUT /api/v1/me/legal.
// Подписание договора, доступно только при открытом доступе.
func (h *APIHandler) SaveLegalStep(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	var req legalStepRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	signedAt := time.Now()
	if req.SignedAt != nil {
		signedAt = *req.SignedAt
	}

	p, err := h.profiles.SaveLegalStep(r.Context(), claims.Subject, req.ContractURL, signedAt)
	if err != nil {
		h.writeServiceError(w, r, err, "Профиль")
		return
	}

	writeJSON(w, http.StatusOK, mapProfile(p))
}
