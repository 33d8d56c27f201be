// models.go — представления Admin REST API Keycloak, которые читает портал.
package keycloak

import (
	"net/url"
	"strconv"
	"time"
)

// TokenResponse — ответ на запрос токена через Client Credentials flow.
type TokenResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// KeycloakUser — пользователь realm, источник доменной Identity.
type KeycloakUser struct { //nolint:revive // stuttering допустим — внешний API Keycloak
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Enabled       bool   `json:"enabled"`
	// CreatedAt — createdTimestamp в миллисекундах
	CreatedAt int64 `json:"createdTimestamp"`
}

// CreatedAtTime возвращает время регистрации. Нулевой timestamp — нулевое время.
func (u *KeycloakUser) CreatedAtTime() time.Time {
	if u.CreatedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(u.CreatedAt)
}

// RealmRepresentation — краткая информация о realm.
type RealmRepresentation struct {
	Realm   string `json:"realm"`
	Enabled bool   `json:"enabled"`
}

// credentialRepresentation — тело запроса reset-password.
type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"` //nolint:gosec // пароль передаётся только в Keycloak
	Temporary bool   `json:"temporary"`
}

// usersQuery — параметры GET /users. Страница задаётся first/max.
type usersQuery struct {
	First  int
	Max    int
	Search string
	Email  string
}

// encode собирает query string. briefRepresentation отключает загрузку
// атрибутов и ролей: порталу нужны только id, email и флаги.
func (q usersQuery) encode() string {
	v := url.Values{}
	v.Set("first", strconv.Itoa(q.First))
	v.Set("max", strconv.Itoa(q.Max))
	v.Set("briefRepresentation", "true")
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Email != "" {
		v.Set("email", q.Email)
	}
	return v.Encode()
}
