// status.go — обработчик GET /api/v1/status (admin).
package handlers

import "net/http"

// GetStatus — сводный статус: Keycloak, ожидающие приглашения, итоги последнего sweep.
// Всегда 200; недоступность Keycloak отражается в полях connected и error.
func (h *APIHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mapStatus(h.status.GetStatus(r.Context())))
}
