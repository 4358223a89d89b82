package rbac

import (
	"sort"
	"strings"

	"itsmd/internal/domain"
)

// Authorities computes the role set for a principal: every group role the
// provider advertises, uppercased, plus the table mapping of each user-type
// code. Codes without a table entry contribute nothing. The result is
// deduplicated and sorted, so equal claim sets always produce the same
// authorities.
func Authorities(table domain.RoleTable, userTypeCodes, groupRoles []string) []string {
	var roles []string
	for _, group := range groupRoles {
		if group == "" {
			continue
		}
		roles = append(roles, strings.ToUpper(group))
	}
	for _, code := range userTypeCodes {
		if role, ok := table[code]; ok {
			roles = append(roles, role)
		}
	}
	roles = dedupeStrings(roles)
	sort.Strings(roles)
	return roles
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
