// Пакет rbac — роли пользователей и права на операции Insurance Module.
// Роль пользователя вычисляется из групп IdP; Service Account получает
// права через scopes, совпадающие с именами прав.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleReadonly = "readonly"
	RoleAdmin    = "admin"
)

// Permission — право на группу операций API.
// Строковое значение совпадает со scope Service Account.
type Permission string

const (
	// PermVehiclesRead — чтение ТС, проверка покрытия, история, журнал истечений
	PermVehiclesRead Permission = "vehicles:read"
	// PermClaimsWrite — регистрация страховых случаев
	PermClaimsWrite Permission = "claims:write"
	// PermExpirationsScan — ручной запуск цикла сканирования
	PermExpirationsScan Permission = "expirations:scan"
)

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	RoleReadonly: 1,
	RoleAdmin:    2,
}

// rolePermissions — права, выдаваемые ролью.
var rolePermissions = map[string]map[Permission]bool{
	RoleReadonly: {PermVehiclesRead: true},
	RoleAdmin:    {PermVehiclesRead: true, PermClaimsWrite: true, PermExpirationsScan: true},
}

// maxRole возвращает роль с максимальными привилегиями из двух.
func maxRole(a, b string) string {
	if roleWeight[a] >= roleWeight[b] {
		return a
	}
	return b
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст — возвращает пустую строку.
func HighestRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		highest = maxRole(highest, r)
	}
	return highest
}

// MapGroupsToRole определяет роль пользователя по его группам IdP.
// Если ни одна группа не совпала — возвращает пустую строку.
func MapGroupsToRole(groups []string, adminGroups, readonlyGroups []string) string {
	adminSet := toSet(adminGroups)
	readonlySet := toSet(readonlyGroups)

	var roles []string
	for _, g := range groups {
		if adminSet[g] {
			roles = append(roles, RoleAdmin)
		}
		if readonlySet[g] {
			roles = append(roles, RoleReadonly)
		}
	}

	return HighestRole(roles)
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// RoleAllows сообщает, даёт ли роль указанное право.
func RoleAllows(role string, perm Permission) bool {
	return rolePermissions[role][perm]
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
