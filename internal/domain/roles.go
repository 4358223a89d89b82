package domain

import (
	"fmt"
	"strings"
)

// Role names granted as authorities.
const (
	RoleAdmin      = "ADMIN"
	RoleManager    = "MANAGER"
	RoleHandler    = "HANDLER"
	RoleConsultant = "CONSULTANT"
	RoleRequester  = "REQUESTER"
	RoleCustomer   = "CUSTOMER"
)

// User-type codes carried in the userTyCode claim.
const (
	CodeTemp       = "R000"
	CodeManager    = "R001"
	CodeCustomer   = "R002"
	CodeHandler    = "R003"
	CodeConsultant = "R004"
	CodeRequester  = "R005"
)

// RoleTable maps user-type codes to role names. Codes absent from the table
// contribute no authority. The active table is deployment configuration: the
// R001/R002 assignment differs between installations, so it is injected
// rather than hardcoded.
type RoleTable map[string]string

// DefaultRoleTable mirrors the mapping the deployed filter chain uses.
func DefaultRoleTable() RoleTable {
	return RoleTable{
		CodeManager:    RoleAdmin,
		CodeCustomer:   RoleManager,
		CodeHandler:    RoleHandler,
		CodeConsultant: RoleConsultant,
		CodeRequester:  RoleRequester,
	}
}

// ParseRoleTable parses a "CODE:ROLE,CODE:ROLE" override. An empty input
// yields the default table.
func ParseRoleTable(raw string) (RoleTable, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultRoleTable(), nil
	}
	table := RoleTable{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, role, ok := strings.Cut(pair, ":")
		code = strings.TrimSpace(code)
		role = strings.TrimSpace(role)
		if !ok || code == "" || role == "" {
			return nil, fmt.Errorf("invalid role table entry %q", pair)
		}
		table[code] = strings.ToUpper(role)
	}
	return table, nil
}
