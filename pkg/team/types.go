package team

import (
	"time"

	"github.com/platinummonkey/sitepass/pkg/catalog"
)

// Member is one membership row of a project. Rows are deactivated, never deleted.
type Member struct {
	ID              string              `json:"id"`
	ProjectID       string              `json:"project_id"`
	UserID          string              `json:"user_id"`
	Role            catalog.Role        `json:"role"`
	AccessLevel     catalog.AccessLevel `json:"access_level"`
	CompanyName     string              `json:"company_name"`
	ContactName     string              `json:"contact_name"`
	ContactEmail    string              `json:"contact_email"`
	ContactPhone    string              `json:"contact_phone,omitempty"`
	CanInviteOthers bool                `json:"can_invite_others"`
	CSIDivision     catalog.Division    `json:"csi_division,omitempty"`
	DivisionName    string              `json:"division_name,omitempty"`
	ScopeOfWork     string              `json:"scope_of_work,omitempty"`
	IsActive        bool                `json:"is_active"`
	InvitedBy       string              `json:"invited_by,omitempty"`
	JoinedAt        time.Time           `json:"joined_at"`
	RemovedAt       *time.Time          `json:"removed_at,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Scope returns the member's trade restriction
func (m *Member) Scope() catalog.Scope {
	return catalog.Scope{
		CSIDivision:  m.CSIDivision,
		DivisionName: m.DivisionName,
		ScopeOfWork:  m.ScopeOfWork,
	}
}

// IsAdmin reports whether m is an active admin-level member
func (m *Member) IsAdmin() bool {
	return m != nil && m.IsActive && m.AccessLevel == catalog.AccessAdmin
}

// CanInvite reports whether m may issue invitations
func (m *Member) CanInvite() bool {
	return m != nil && m.IsActive && (m.CanInviteOthers || m.AccessLevel == catalog.AccessAdmin)
}

func (m *Member) clone() *Member {
	c := *m
	if m.RemovedAt != nil {
		t := *m.RemovedAt
		c.RemovedAt = &t
	}
	return &c
}

// AddRequest adds a member directly, bypassing the invitation workflow
type AddRequest struct {
	ProjectID       string
	ByMemberID      string
	UserID          string
	Role            catalog.Role
	AccessLevel     catalog.AccessLevel
	Profile         catalog.Profile
	Scope           catalog.Scope
	CanInviteOthers bool
}

// ActivateRequest creates or reactivates a membership inside a caller's transaction
type ActivateRequest struct {
	ProjectID       string
	UserID          string
	Role            catalog.Role
	AccessLevel     catalog.AccessLevel
	Profile         catalog.Profile
	Scope           catalog.Scope
	CanInviteOthers bool
	InvitedBy       string
}

// Patch lists the fields an admin may change. Nil fields are left alone.
// Scope fields are merged with the stored row inside the update transaction;
// setting CSIDivision without DivisionName resets the name to the catalog's.
type Patch struct {
	Role            *catalog.Role        `json:"role,omitempty"`
	AccessLevel     *catalog.AccessLevel `json:"access_level,omitempty"`
	CSIDivision     *catalog.Division    `json:"csi_division,omitempty"`
	DivisionName    *string              `json:"division_name,omitempty"`
	ScopeOfWork     *string              `json:"scope_of_work,omitempty"`
	CanInviteOthers *bool                `json:"can_invite_others,omitempty"`
	ContactName     *string              `json:"contact_name,omitempty"`
	ContactPhone    *string              `json:"contact_phone,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return p.Role == nil && p.AccessLevel == nil && !p.touchesScope() &&
		p.CanInviteOthers == nil && p.ContactName == nil && p.ContactPhone == nil
}

func (p Patch) touchesScope() bool {
	return p.CSIDivision != nil || p.DivisionName != nil || p.ScopeOfWork != nil
}
