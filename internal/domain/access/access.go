// Пакет access — роли и правило доступа к защищённой области портала.
// Доступ есть у администратора или у профиля с назначенной зарплатой.
// Статус онбординга на доступ не влияет.
package access

import (
	"strings"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
)

// Роли в порядке возрастания привилегий.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	RoleUser:  1,
	RoleAdmin: 2,
}

// HasAccess — Access Gate: true, если роль admin или salary непустая.
// Пустая salary означает «ещё не приглашён» и даёт отказ независимо от прочих полей.
func HasAccess(p *model.Profile) bool {
	if p == nil {
		return false
	}
	if p.Role == RoleAdmin {
		return true
	}
	return strings.TrimSpace(p.Salary) != ""
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// NormalizeRole возвращает роль по умолчанию (user) для пустого значения.
func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return RoleUser
	}
	return role
}

// EffectiveRole возвращает максимальную роль из роли профиля и роли из групп IdP.
func EffectiveRole(profileRole, idpRole string) string {
	if roleWeight[idpRole] > roleWeight[profileRole] {
		return idpRole
	}
	return profileRole
}

// MapGroupsToRole определяет роль по группам IdP.
// Возвращает admin при совпадении с adminGroups, иначе пустую строку.
func MapGroupsToRole(groups []string, adminGroups []string) string {
	adminSet := toSet(adminGroups)
	for _, g := range groups {
		// Keycloak отдаёт группы как "/name" при включённом full path
		if adminSet[g] || adminSet[strings.TrimPrefix(g, "/")] {
			return RoleAdmin
		}
	}
	return ""
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
