package domain

import "strings"

type Role string

const (
	RoleResident Role = "resident"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// ParseRole normalizes a raw role string into the closed enumeration.
// The legacy data contains Danish synonyms ("beboer" for resident,
// "personale" for staff); they are folded here at the ingestion boundary and
// never propagate further.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "resident", "beboer":
		return RoleResident, true
	case "staff", "personale":
		return RoleStaff, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

// IsStaff reports whether the role may use the admin panel.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}
