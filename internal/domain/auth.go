package domain

import "context"

// Principal is the identity derived from a verified token for the duration
// of one request. It is constructed once and never mutated.
type Principal struct {
	Subject   string
	Username  string
	Email     string
	FirstName string

	UserTypeCodes   []string
	UserStatusCodes []string
	DepartmentCodes []string
	DepartmentNames []string
	Positions       []string
	ClassNames      []string

	Authorities []string
	RawClaims   map[string]any
}

func (p Principal) Authenticated() bool {
	return p.Subject != ""
}

func (p Principal) HasAuthority(role string) bool {
	for _, a := range p.Authorities {
		if a == role {
			return true
		}
	}
	return false
}

func (p Principal) HasAnyAuthority(roles ...string) bool {
	for _, role := range roles {
		if p.HasAuthority(role) {
			return true
		}
	}
	return false
}

func (p Principal) HasAllAuthorities(roles ...string) bool {
	for _, role := range roles {
		if !p.HasAuthority(role) {
			return false
		}
	}
	return true
}

func (p Principal) HasUserTypeCode(codes ...string) bool {
	return intersects(p.UserTypeCodes, codes)
}

func (p Principal) HasAllUserTypeCodes(codes ...string) bool {
	return containsAll(p.UserTypeCodes, codes)
}

func (p Principal) HasUserStatusCode(codes ...string) bool {
	return intersects(p.UserStatusCodes, codes)
}

func (p Principal) HasDepartmentCode(codes ...string) bool {
	return intersects(p.DepartmentCodes, codes)
}

// PrimaryUserTypeCode returns the first user-type code, or "" when the token
// carried none.
func (p Principal) PrimaryUserTypeCode() string {
	if len(p.UserTypeCodes) == 0 {
		return ""
	}
	return p.UserTypeCodes[0]
}

func (p Principal) PrimaryDepartmentCode() string {
	if len(p.DepartmentCodes) == 0 {
		return ""
	}
	return p.DepartmentCodes[0]
}

func intersects(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type Authenticator interface {
	Authenticate(ctx context.Context, bearerToken string) (Principal, error)
}

type Authorizer interface {
	Authorize(principal Principal, requirement Requirement) error
}
