package usecase

import (
	"fmt"

	"itsmd/internal/domain"
)

// SrPolicy holds the SR business rules keyed on the raw user-type code, the
// secondary enforcement path: the code comes out of request-scoped storage
// where the interceptor put it, derived from the same Principal the route
// guard checked.
type SrPolicy struct{}

func denyf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrForbidden)
}

// CanCreate allows customers and managers to open service requests.
func (SrPolicy) CanCreate(userTyCode string) error {
	if userTyCode != domain.CodeCustomer && userTyCode != domain.CodeManager {
		return denyf("user type %s cannot create service requests", displayCode(userTyCode))
	}
	return nil
}

// CanCreateAsManager gates the manager create path to R001 only.
func (SrPolicy) CanCreateAsManager(userTyCode string) error {
	if userTyCode != domain.CodeManager {
		return denyf("only managers (%s) can use the manager endpoint, current type %s",
			domain.CodeManager, displayCode(userTyCode))
	}
	return nil
}

func (SrPolicy) CanReceive(userTyCode string) error {
	return handlerOnly(userTyCode, "receive")
}

func (SrPolicy) CanProcess(userTyCode string) error {
	return handlerOnly(userTyCode, "process")
}

func (SrPolicy) CanVerify(userTyCode string) error {
	return handlerOnly(userTyCode, "verify")
}

// CanEvaluate restricts evaluation and re-request to customers.
func (SrPolicy) CanEvaluate(userTyCode string) error {
	if userTyCode != domain.CodeCustomer {
		return denyf("only customers (%s) can evaluate service requests, current type %s",
			domain.CodeCustomer, displayCode(userTyCode))
	}
	return nil
}

// CanReRequest follows the evaluation rule: only the customer who owns the
// finished SR can reopen it.
func (SrPolicy) CanReRequest(userTyCode string) error {
	if userTyCode != domain.CodeCustomer {
		return denyf("only customers (%s) can re-request service requests, current type %s",
			domain.CodeCustomer, displayCode(userTyCode))
	}
	return nil
}

func handlerOnly(userTyCode, action string) error {
	if userTyCode != domain.CodeHandler {
		return denyf("only service handlers (%s) can %s service requests, current type %s",
			domain.CodeHandler, action, displayCode(userTyCode))
	}
	return nil
}

func displayCode(code string) string {
	if code == "" {
		return "UNKNOWN"
	}
	return code
}
