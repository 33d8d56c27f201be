package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWrite(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{CodeValidationError, http.StatusBadRequest},
		{CodeAccessDenied, http.StatusForbidden},
		{CodeSweepInProgress, http.StatusConflict},
		{CodeIDPUnavailable, http.StatusBadGateway},
		{CodeStoreUnavailable, http.StatusServiceUnavailable},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Write(rec, tt.code, "сообщение")

			if rec.Code != tt.status {
				t.Errorf("статус %d, хотели %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Error.Code != tt.code || body.Error.Message != "сообщение" {
				t.Errorf("тело %+v", body)
			}
		})
	}
}
