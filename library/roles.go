/*
roles.go - Role lookup table

Each role carries its loan allowance and whether it grants management
capability. Adding a role means adding one row to rolePolicies.

  | Role          | Loan days | Admin |
  |---------------|-----------|-------|
  | STUDENT       | 14        | no    |
  | FACULTY       | 30        | no    |
  | ADMINISTRATOR | 30        | yes   |
*/
package library

import (
	"strings"
)

// Role identifies a user's category.
type Role string

const (
	RoleStudent       Role = "STUDENT"
	RoleFaculty       Role = "FACULTY"
	RoleAdministrator Role = "ADMINISTRATOR"
)

// RolePolicy is the behavior associated with a role.
type RolePolicy struct {
	Role     Role
	Label    string
	LoanDays int
	Admin    bool
}

var rolePolicies = map[Role]RolePolicy{
	RoleStudent:       {Role: RoleStudent, Label: "Student", LoanDays: 14},
	RoleFaculty:       {Role: RoleFaculty, Label: "Faculty", LoanDays: 30},
	RoleAdministrator: {Role: RoleAdministrator, Label: "Administrator", LoanDays: 30, Admin: true},
}

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleStudent, RoleFaculty, RoleAdministrator}
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", invalid("role", "unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := rolePolicies[r]
	return ok
}

// Policy returns the role's row; unknown roles get a zero policy.
func (r Role) Policy() RolePolicy {
	return rolePolicies[r]
}

func (r Role) LoanDays() int { return r.Policy().LoanDays }
func (r Role) IsAdmin() bool { return r.Policy().Admin }
func (r Role) Label() string { return r.Policy().Label }
