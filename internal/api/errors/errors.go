// Пакет errors — ответы об ошибках HTTP API портала.
// Формат тела: {"error": {"code": "...", "message": "..."}}.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeAccessDenied     = "ACCESS_DENIED"
	CodeSweepInProgress  = "SWEEP_IN_PROGRESS"
	CodeIDPUnavailable   = "IDP_UNAVAILABLE"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternalError    = "INTERNAL_ERROR"
)

// httpStatus — HTTP-статус для каждого кода.
var httpStatus = map[string]int{
	CodeValidationError:  http.StatusBadRequest,
	CodeNotFound:         http.StatusNotFound,
	CodeUnauthorized:     http.StatusUnauthorized,
	CodeForbidden:        http.StatusForbidden,
	CodeAccessDenied:     http.StatusForbidden,
	CodeSweepInProgress:  http.StatusConflict,
	CodeIDPUnavailable:   http.StatusBadGateway,
	CodeStoreUnavailable: http.StatusServiceUnavailable,
	CodeInternalError:    http.StatusInternalServerError,
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StatusFor возвращает HTTP-статус кода. Неизвестный код — 500.
func StatusFor(code string) int {
	if s, ok := httpStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Write пишет ошибку с кодом code и статусом из таблицы.
func Write(w http.ResponseWriter, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(code))
	_ = json.NewEncoder(w).Encode(body)
}

func ValidationError(w http.ResponseWriter, message string) {
	Write(w, CodeValidationError, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Write(w, CodeNotFound, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Write(w, CodeUnauthorized, message)
}

func Forbidden(w http.ResponseWriter, message string) {
	Write(w, CodeForbidden, message)
}

// AccessDenied — у профиля нет доступа: нет salary и роль не admin.
func AccessDenied(w http.ResponseWriter, message string) {
	Write(w, CodeAccessDenied, message)
}

func SweepInProgress(w http.ResponseWriter, message string) {
	Write(w, CodeSweepInProgress, message)
}

func IDPUnavailable(w http.ResponseWriter, message string) {
	Write(w, CodeIDPUnavailable, message)
}

func StoreUnavailable(w http.ResponseWriter, message string) {
	Write(w, CodeStoreUnavailable, message)
}

func InternalError(w http.ResponseWriter, message string) {
	Write(w, CodeInternalError, message)
}
