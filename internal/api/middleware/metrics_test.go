package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/health/live", "/health/live"},
		{"/api/v1/invitations", "/api/v1/invitations"},
		{"/api/v1/invitations/sweep", "/api/v1/invitations/sweep"},
		{"/api/v1/invitations/alice@example.com", "/api/v1/invitations/{email}"},
		{"/api/v1/profiles/a1b2c3d4-e5f6-7890-abcd-ef1234567890", "/api/v1/profiles/{id}"},
		{"/api/v1/profiles/a1b2c3d4-e5f6-7890-abcd-ef1234567890/password", "/api/v1/profiles/{id}/password"},
		{"/api/v1/profiles/", "other"},
		{"/wp-admin/login.php", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.expected {
				t.Errorf("normalizePath(%q) = %q, хотели %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestRoutePattern_FromChi(t *testing.T) {
	var got string
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			got = routePattern(r)
		})
	})
	router.Delete("/api/v1/invitations/{email}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/invitations/bob@example.com", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if got != "/api/v1/invitations/{email}" {
		t.Errorf("routePattern = %q, хотели /api/v1/invitations/{email}", got)
	}
}
