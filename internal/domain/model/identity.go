package model

import (
	"errors"
	"time"
)

// ErrAmbiguousMatch — несколько identity с одним нормализованным email.
var ErrAmbiguousMatch = errors.New("несколько identity с одинаковым email")

// Identity — аутентифицированный субъект из Identity Provider (Keycloak).
// Не хранится в БД — принадлежит IdP, модуль только читает.
type Identity struct {
	// ID — стабильный идентификатор (Keycloak user ID, sub)
	ID string
	// Email — email в том регистре, в котором его хранит IdP
	Email string
	// Username — имя пользователя в IdP
	Username string
	// Enabled — активна ли учётная запись
	Enabled bool
	// CreatedAt — время регистрации
	CreatedAt time.Time
}
