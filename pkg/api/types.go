package api

import (
	"github.com/platinummonkey/sitepass/pkg/authz"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/invitations"
	"github.com/platinummonkey/sitepass/pkg/team"
)

// CreateInvitationRequest is the body of POST /projects/{id}/invitations
type CreateInvitationRequest struct {
	Email        string `json:"email"`
	CompanyName  string `json:"companyName"`
	Role         string `json:"role"`
	CSIDivision  string `json:"csiDivision,omitempty"`
	DivisionName string `json:"divisionName,omitempty"`
	ScopeOfWork  string `json:"scopeOfWork,omitempty"`
	Message      string `json:"message,omitempty"`
}

// AcceptInvitationRequest is the body of POST /invitations/{id}/accept
type AcceptInvitationRequest struct {
	ContactName  string `json:"contactName,omitempty"`
	ContactPhone string `json:"contactPhone,omitempty"`
}

// Decision actions accepted by the approve route
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// DecideInvitationRequest is the body of POST /invitations/{id}/approve
type DecideInvitationRequest struct {
	Action          string `json:"action"`
	RejectionReason string `json:"rejectionReason,omitempty"`
	AccessLevel     string `json:"accessLevel,omitempty"`
}

// DecideInvitationResponse carries the decided invitation and, on approval,
// the member it produced
type DecideInvitationResponse struct {
	Invitation *invitations.Invitation `json:"invitation"`
	Member     *team.Member            `json:"member,omitempty"`
}

// AddMemberRequest is the body of POST /projects/{id}/team
type AddMemberRequest struct {
	UserID          string `json:"userId"`
	Role            string `json:"role"`
	AccessLevel     string `json:"accessLevel"`
	CompanyName     string `json:"companyName"`
	ContactName     string `json:"contactName"`
	ContactEmail    string `json:"contactEmail"`
	ContactPhone    string `json:"contactPhone,omitempty"`
	CSIDivision     string `json:"csiDivision,omitempty"`
	DivisionName    string `json:"divisionName,omitempty"`
	ScopeOfWork     string `json:"scopeOfWork,omitempty"`
	CanInviteOthers bool   `json:"canInviteOthers"`
}

// UpdateMemberRequest is the body of PUT /projects/{id}/team. Absent fields
// are left unchanged.
type UpdateMemberRequest struct {
	MemberID        string  `json:"memberId"`
	Role            *string `json:"role,omitempty"`
	AccessLevel     *string `json:"accessLevel,omitempty"`
	CSIDivision     *string `json:"csiDivision,omitempty"`
	DivisionName    *string `json:"divisionName,omitempty"`
	ScopeOfWork     *string `json:"scopeOfWork,omitempty"`
	CanInviteOthers *bool   `json:"canInviteOthers,omitempty"`
	ContactName     *string `json:"contactName,omitempty"`
	ContactPhone    *string `json:"contactPhone,omitempty"`
}

// patch converts the request into a registry patch
func (req UpdateMemberRequest) patch() team.Patch {
	p := team.Patch{
		DivisionName:    req.DivisionName,
		ScopeOfWork:     req.ScopeOfWork,
		CanInviteOthers: req.CanInviteOthers,
		ContactName:     req.ContactName,
		ContactPhone:    req.ContactPhone,
	}
	if req.Role != nil {
		role := catalog.Role(*req.Role)
		p.Role = &role
	}
	if req.AccessLevel != nil {
		level := catalog.AccessLevel(*req.AccessLevel)
		p.AccessLevel = &level
	}
	if req.CSIDivision != nil {
		division := catalog.Division(*req.CSIDivision)
		p.CSIDivision = &division
	}
	return p
}

// AuthorizeRequest is the body of POST /projects/{id}/authorize
type AuthorizeRequest struct {
	Action string `json:"action"`
	Scope  string `json:"scope,omitempty"`
}

// ListResponse wraps collection results
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func listOf[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// DivisionEntry is one row of the CSI division catalog
type DivisionEntry struct {
	Code catalog.Division `json:"code"`
	Name string           `json:"name"`
}

// CatalogResponse is the body of GET /catalog
type CatalogResponse struct {
	Roles        []catalog.Role        `json:"roles"`
	AccessLevels []catalog.AccessLevel `json:"access_levels"`
	Divisions    []DivisionEntry       `json:"divisions"`
	Actions      []authz.Action        `json:"actions"`
	Statuses     []invitations.Status  `json:"statuses"`
}
