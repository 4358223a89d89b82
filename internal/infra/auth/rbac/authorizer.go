package rbac

import (
	"errors"
	"fmt"
	"strings"

	"itsmd/internal/domain"
)

// Deny reason codes. NOT_AUTHENTICATED is kept distinct from the two
// insufficient-* denials so the boundary can answer 401 vs 403.
const (
	CodeNotAuthenticated      = "NOT_AUTHENTICATED"
	CodeInsufficientRole      = "INSUFFICIENT_ROLE"
	CodeInsufficientAttribute = "INSUFFICIENT_ATTRIBUTE"
)

type AuthzError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthzError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *AuthzError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func IsAuthzError(err error) (*AuthzError, bool) {
	var authz *AuthzError
	if errors.As(err, &authz) {
		return authz, true
	}
	return nil, false
}

// Authorizer is the single decision point for every protected operation. It
// never mutates the principal and has no side effects; halting the request
// belongs to the HTTP layer.
type Authorizer struct{}

func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// Authorize evaluates a declared requirement against the principal.
// A nil error means allow. Denials carry an AuthzError whose Code tells the
// boundary which condition fired and whose Message names the unmet
// requirement without echoing principal attributes.
func (a *Authorizer) Authorize(principal domain.Principal, requirement domain.Requirement) error {
	if !principal.Authenticated() {
		return &AuthzError{
			Code:    CodeNotAuthenticated,
			Message: "authentication required",
			Err:     domain.ErrNotAuthenticated,
		}
	}
	roleOK := true
	if requirement.HasRolePart() {
		roleOK = principal.HasAnyAuthority(requirement.Roles...)
	}
	codeOK := true
	if requirement.HasCodePart() {
		if requirement.CodesMode == domain.CombineAll {
			codeOK = principal.HasAllUserTypeCodes(requirement.Codes...)
		} else {
			codeOK = principal.HasUserTypeCode(requirement.Codes...)
		}
	}

	switch {
	case requirement.HasRolePart() && requirement.HasCodePart():
		if requirement.Combine == domain.CombineAny {
			if roleOK || codeOK {
				return nil
			}
		} else if roleOK && codeOK {
			return nil
		}
	case requirement.HasRolePart():
		if roleOK {
			return nil
		}
	case requirement.HasCodePart():
		if codeOK {
			return nil
		}
	default:
		// Authenticated-only requirement.
		return nil
	}

	if requirement.HasRolePart() && !roleOK {
		return &AuthzError{
			Code:    CodeInsufficientRole,
			Message: fmt.Sprintf("requires role %s", strings.Join(requirement.Roles, " or ")),
			Err:     domain.ErrForbidden,
		}
	}
	return &AuthzError{
		Code:    CodeInsufficientAttribute,
		Message: fmt.Sprintf("requires user type code %s", strings.Join(requirement.Codes, ", ")),
		Err:     domain.ErrForbidden,
	}
}
