// Пакет model — доменные модели Onboarding Portal.
package model

import (
	"strings"
	"time"
)

// Invitation — приглашение администратора, ключ — нормализованный email.
// Хранится в таблице invitations, одно живое приглашение на email.
type Invitation struct {
	// Email — нормализованный email (trim + lower case)
	Email string
	// Salary — назначенная зарплата, непустая строка
	Salary string
	// Role — назначенная роль (user, admin)
	Role string
	// CreatedBy — кто создал приглашение (username администратора)
	CreatedBy string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последней перезаписи (upsert)
	UpdatedAt time.Time
}

// NormalizeEmail приводит email к ключу сравнения: без пробелов по краям, в нижнем регистре.
// Сравнение email везде идёт только по нормализованной форме.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailsMatch сравнивает два email без учёта регистра.
func EmailsMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return NormalizeEmail(a) == NormalizeEmail(b)
}
