package identity

import (
	"strings"

	"itsmd/internal/domain"
	"itsmd/internal/infra/auth/oidc"
	"itsmd/internal/infra/auth/rbac"
)

// Claim names for the custom user attributes issued by the identity
// provider. Providers differ in whether these arrive as top-level claims or
// nested under an "attributes" container; both spellings are honored, with
// top-level taking precedence.
const (
	claimUserTypeCode   = "userTyCode"
	claimUserStatusCode = "userSttusCode"
	claimDeptCode       = "deptCd"
	claimDeptName       = "deptNm"
	claimPosition       = "position"
	claimClassName      = "classNm"

	claimAttributes = "attributes"
)

// lookup is one claim-location strategy: it either finds the attribute and
// returns its normalized values, or reports absence. Strategies run in a
// fixed order and the first hit wins, which keeps the fallback auditable.
type lookup func(claims oidc.ClaimSet, name string) ([]string, bool)

var attributeLookups = []lookup{lookupDirect, lookupNestedAttributes}

// Extractor builds a Principal from a verified claim set. The role table is
// injected so deployments can swap the code-to-role mapping without a code
// change.
type Extractor struct {
	table domain.RoleTable
}

func NewExtractor(table domain.RoleTable) *Extractor {
	if table == nil {
		table = domain.DefaultRoleTable()
	}
	return &Extractor{table: table}
}

// Build derives the Principal. Missing scalar claims yield empty fields and
// missing attributes yield empty slices; Build never fails. Authorities are
// computed here, once, and are a pure function of the claim set.
func (e *Extractor) Build(claims oidc.ClaimSet) domain.Principal {
	principal := domain.Principal{
		RawClaims: claims,
	}
	principal.Subject, _ = claims["sub"].(string)
	principal.Username, _ = claims["preferred_username"].(string)
	principal.Email, _ = claims["email"].(string)
	principal.FirstName, _ = claims["given_name"].(string)

	principal.UserTypeCodes = Attribute(claims, claimUserTypeCode)
	principal.UserStatusCodes = Attribute(claims, claimUserStatusCode)
	principal.DepartmentCodes = Attribute(claims, claimDeptCode)
	principal.DepartmentNames = Attribute(claims, claimDeptName)
	principal.Positions = Attribute(claims, claimPosition)
	principal.ClassNames = Attribute(claims, claimClassName)

	principal.Authorities = rbac.Authorities(e.table, principal.UserTypeCodes, RealmRoles(claims))
	return principal
}

// Attribute resolves a multi-valued attribute through the ordered strategy
// list: the claim under its own name first, then the same name inside the
// "attributes" container claim. Absence is an empty slice, never an error.
func Attribute(claims oidc.ClaimSet, name string) []string {
	for _, l := range attributeLookups {
		if values, ok := l(claims, name); ok {
			return values
		}
	}
	return nil
}

func lookupDirect(claims oidc.ClaimSet, name string) ([]string, bool) {
	return stringValues(claims[name])
}

func lookupNestedAttributes(claims oidc.ClaimSet, name string) ([]string, bool) {
	attrs, ok := claims[claimAttributes].(map[string]any)
	if !ok {
		return nil, false
	}
	return stringValues(attrs[name])
}

// stringValues normalizes a claim value: a string wraps to a one-element
// slice, a list keeps its string entries, anything else is absent.
func stringValues(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil, false
		}
		return []string{v}, true
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case []string:
		if len(v) == 0 {
			return nil, false
		}
		return v, true
	default:
		return nil, false
	}
}

// RealmRoles returns the provider-advertised group roles from
// realm_access.roles.
func RealmRoles(claims oidc.ClaimSet) []string {
	realmAccess, ok := claims["realm_access"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := realmAccess["roles"].([]any)
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(raw))
	for _, entry := range raw {
		if role, ok := entry.(string); ok && role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// PrimaryTypeCode is the wider search used by the request interceptor, for
// callers that need the raw code rather than a mapped role. Locations are
// tried in priority order for compatibility with differently configured
// providers: the canonical claim, its underscore spelling, the namespaced
// Cognito-style spelling, then R-code prefixed entries in the roles claim
// and in resource_access client roles.
func PrimaryTypeCode(claims oidc.ClaimSet) string {
	for _, name := range []string{claimUserTypeCode, "user_type_code", "custom:userTyCode"} {
		if values, ok := lookupDirect(claims, name); ok {
			return values[0]
		}
	}
	if values, ok := stringValues(claims["roles"]); ok {
		if code := firstTypeCode(values); code != "" {
			return code
		}
	}
	if resourceAccess, ok := claims["resource_access"].(map[string]any); ok {
		for _, rawClient := range resourceAccess {
			client, ok := rawClient.(map[string]any)
			if !ok {
				continue
			}
			if values, ok := stringValues(client["roles"]); ok {
				if code := firstTypeCode(values); code != "" {
					return code
				}
			}
		}
	}
	return ""
}

// firstTypeCode picks the leading R-code out of role entries shaped like
// "R003" or "R003_handler".
func firstTypeCode(roles []string) string {
	for _, role := range roles {
		if len(role) >= 4 && strings.HasPrefix(role, "R00") && role[3] >= '0' && role[3] <= '5' {
			return role[:4]
		}
	}
	return ""
}
