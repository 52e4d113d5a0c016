package catalog

import (
	"fmt"
	"strings"
)

// Role is the organizational role a party plays on a project
type Role string

const (
	RoleOwner             Role = "owner"
	RoleArchitect         Role = "architect"
	RoleEngineer          Role = "engineer"
	RoleGeneralContractor Role = "general_contractor"
	RoleSubcontractor     Role = "subcontractor"
	RoleSupplier          Role = "supplier"
	RoleInspector         Role = "inspector"
	RoleConsultant        Role = "consultant"
)

var roles = []Role{
	RoleOwner,
	RoleArchitect,
	RoleEngineer,
	RoleGeneralContractor,
	RoleSubcontractor,
	RoleSupplier,
	RoleInspector,
	RoleConsultant,
}

// Roles returns every known role in catalog order
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole validates a role string received at a boundary.
// Hyphenated spellings ("general-contractor") are accepted.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// AccessLevel is the coarse permission tier of a member
type AccessLevel string

const (
	AccessAdmin    AccessLevel = "admin"
	AccessStandard AccessLevel = "standard"
	AccessReadOnly AccessLevel = "read_only"
)

// AccessLevels returns the access levels from most to least privileged
func AccessLevels() []AccessLevel {
	return []AccessLevel{AccessAdmin, AccessStandard, AccessReadOnly}
}

// Rank orders access levels by privilege. Unknown levels rank 0.
func (l AccessLevel) Rank() int {
	switch l {
	case AccessAdmin:
		return 3
	case AccessStandard:
		return 2
	case AccessReadOnly:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether l grants everything other grants
func (l AccessLevel) AtLeast(other AccessLevel) bool {
	return l.Valid() && l.Rank() >= other.Rank()
}

// Valid reports whether l is a known access level
func (l AccessLevel) Valid() bool {
	return l.Rank() > 0
}

// ParseAccessLevel validates an access level string received at a boundary
func ParseAccessLevel(s string) (AccessLevel, error) {
	l := AccessLevel(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !l.Valid() {
		return "", fmt.Errorf("unknown access level %q", s)
	}
	return l, nil
}

// Scope narrows a member or invitation to a trade
type Scope struct {
	CSIDivision  Division `json:"csi_division,omitempty"`
	DivisionName string   `json:"division_name,omitempty"`
	ScopeOfWork  string   `json:"scope_of_work,omitempty"`
}

// Restricted reports whether the scope pins a CSI division
func (s Scope) Restricted() bool {
	return s.CSIDivision != ""
}

// Normalize validates the division and fills in its catalog name when missing
func (s Scope) Normalize() (Scope, error) {
	if s.CSIDivision == "" {
		return Scope{ScopeOfWork: strings.TrimSpace(s.ScopeOfWork)}, nil
	}
	d, err := ParseDivision(string(s.CSIDivision))
	if err != nil {
		return Scope{}, err
	}
	out := Scope{
		CSIDivision:  d,
		DivisionName: strings.TrimSpace(s.DivisionName),
		ScopeOfWork:  strings.TrimSpace(s.ScopeOfWork),
	}
	if out.DivisionName == "" {
		out.DivisionName = DivisionName(d)
	}
	return out, nil
}

// Profile is the contact card attached to a membership
type Profile struct {
	CompanyName  string `json:"company_name"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone,omitempty"`
}
