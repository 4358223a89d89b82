package domain

// CombineMode states how the pieces of a requirement are combined. It is
// always declared explicitly at the operation's registration, never inferred.
type CombineMode string

const (
	CombineAny CombineMode = "any"
	CombineAll CombineMode = "all"
)

// Requirement is the access rule attached to a protected operation. It is
// static: built when routes are registered, never from request data.
//
// Roles are accepted as a logical OR. Codes are matched against the
// principal's user-type codes with CodesMode deciding ANY vs ALL. When both
// blocks are set, Combine decides whether one or both must pass.
type Requirement struct {
	Roles     []string
	Codes     []string
	CodesMode CombineMode
	Combine   CombineMode
}

// RequireAuthenticated demands a principal but no particular role or code.
func RequireAuthenticated() Requirement {
	return Requirement{}
}

func RequireAnyRole(roles ...string) Requirement {
	return Requirement{Roles: roles}
}

func RequireUserTypeCodes(mode CombineMode, codes ...string) Requirement {
	return Requirement{Codes: codes, CodesMode: mode}
}

// HasRolePart reports whether the requirement constrains roles.
func (r Requirement) HasRolePart() bool {
	return len(r.Roles) > 0
}

// HasCodePart reports whether the requirement constrains user-type codes.
func (r Requirement) HasCodePart() bool {
	return len(r.Codes) > 0
}
