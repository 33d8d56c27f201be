// profiles.go — обработчики /api/v1/profiles endpoints (admin).
// Список сотрудников, изменение salary/role, удаление, сброс пароля.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/onboarding-portal/internal/api/errors"
	"github.com/bigkaa/onboarding-portal/internal/api/middleware"
	"github.com/bigkaa/onboarding-portal/internal/service"
)

type updateProfileRequest struct {
	Salary *string `json:"salary,omitempty"`
	Role   *string `json:"role,omitempty"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func actorFrom(r *http.Request) string {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Actor()
	}
	return ""
}

// ListProfiles — GET /api/v1/profiles?limit=&offset=.
// Администраторы в список не входят.
func (h *APIHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	limitParam, err := queryInt(r, "limit")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	offsetParam, err := queryInt(r, "offset")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limit, offset := paginationDefaults(limitParam, offsetParam)

	list, total, err := h.profiles.List(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения профилей")
		return
	}

	items := make([]profileDTO, len(list))
	for i, p := range list {
		items[i] = *mapProfile(p)
	}

	writeJSON(w, http.StatusOK, profileListResponse{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	})
}

// UpdateProfile — PUT /api/v1/profiles/{id}.
// Изменяет salary и/или role профиля.
func (h *APIHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.profiles.Override(r.Context(), id, service.ProfileOverride{
		Salary: req.Salary,
		Role:   req.Role,
	}, actorFrom(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Профиль")
		return
	}

	writeJSON(w, http.StatusOK, mapProfile(p))
}

// DeleteProfile — DELETE /api/v1/profiles/{id}.
// Удаляет профиль, затем по возможности identity в IdP.
func (h *APIHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.profiles.Delete(r.Context(), id, actorFrom(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Профиль")
		return
	}

	writeJSON(w, http.StatusOK, deleteProfileResponse{
		IdentityDeleted: res.IdentityDeleted,
		Warning:         res.Warning,
	})
}

// ResetPassword — POST /api/v1/profiles/{id}/password.
func (h *APIHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.profiles.ResetPassword(r.Context(), id, req.Password, actorFrom(r)); err != nil {
		h.writeServiceError(w, r, err, "Identity")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
