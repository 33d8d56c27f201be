// invitations.go — обработчики /api/v1/invitations endpoints.
// Создание (admin_create), список, удаление приглашений и sweep по запросу.
package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/onboarding-portal/internal/api/errors"
)

type createInvitationRequest struct {
	Email  string `json:"email"`
	Salary string `json:"salary"`
	Role   string `json:"role"`
}

// CreateInvitation — POST /api/v1/invitations.
// Сохраняет приглашение и сразу применяет его к существующей identity.
// Ошибка применения не отменяет сохранение: 201 с warning.
func (h *APIHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req createInvitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.invitations.Create(r.Context(), req.Email, req.Salary, req.Role, actorFrom(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка сохранения приглашения")
		return
	}

	writeJSON(w, http.StatusCreated, createInvitationResponse{
		Invitation: mapInvitation(res.Invitation),
		Reconcile:  mapReconcile(res.Reconcile),
		Warning:    res.Warning,
	})
}

// ListInvitations — GET /api/v1/invitations?after=&limit=.
// Keyset-пагинация по email.
func (h *APIHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	limitParam, err := queryInt(r, "limit")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limit, _ := paginationDefaults(limitParam, nil)
	after := r.URL.Query().Get("after")

	list, total, err := h.invitations.List(r.Context(), after, limit)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения приглашений")
		return
	}

	resp := invitationListResponse{
		Items: make([]invitationDTO, len(list)),
		Total: total,
		Limit: limit,
	}
	for i, inv := range list {
		resp.Items[i] = mapInvitation(inv)
	}
	if len(list) == limit {
		resp.HasMore = true
		resp.NextAfter = list[len(list)-1].Email
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteInvitation — DELETE /api/v1/invitations/{email}.
func (h *APIHandler) DeleteInvitation(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректный email в пути")
		return
	}

	if err := h.invitations.Delete(r.Context(), email); err != nil {
		h.writeServiceError(w, r, err, "Приглашение")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RunSweep — POST /api/v1/invitations/sweep.
// Выполняет sweep синхронно и возвращает отчёт.
func (h *APIHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.RunSweep(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка sweep приглашений")
		return
	}

	writeJSON(w, http.StatusOK, mapSweepReport(report))
}
