package invitations

import (
	"strings"
	"time"

	"github.com/platinummonkey/sitepass/pkg/access"
	"github.com/platinummonkey/sitepass/pkg/catalog"
)

// Status is the position of an invitation in its lifecycle
type Status string

const (
	StatusPending         Status = "pending"
	StatusAccepted        Status = "accepted"
	StatusAccessRequested Status = "access_requested"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusRevoked         Status = "revoked"
	StatusExpired         Status = "expired"
)

// transitions lists the states reachable from each non-terminal state.
// Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusPending:         {StatusAccepted, StatusRevoked, StatusExpired},
	StatusAccepted:        {StatusAccessRequested, StatusRevoked, StatusExpired},
	StatusAccessRequested: {StatusApproved, StatusRejected, StatusRevoked, StatusExpired},
}

// Statuses returns every status in lifecycle order
func Statuses() []Status {
	return []Status{
		StatusPending, StatusAccepted, StatusAccessRequested,
		StatusApproved, StatusRejected, StatusRevoked, StatusExpired,
	}
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s
func (s Status) Terminal() bool {
	_, open := transitions[s]
	return s.Valid() && !open
}

// CanTransition reports whether the lifecycle permits moving from s to next
func (s Status) CanTransition(next Status) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// ParseStatus validates a status string
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", access.Errorf(access.KindInvalidArgument, "invitations.parse_status", "unknown status %q", s)
	}
	return status, nil
}

func openStatuses() []Status {
	return []Status{StatusPending, StatusAccepted, StatusAccessRequested}
}

// Invitation is an offer for an outside party to join a project
type Invitation struct {
	ID                string           `json:"id"`
	ProjectID         string           `json:"project_id"`
	Email             string           `json:"email"`
	CompanyName       string           `json:"company_name"`
	Role              catalog.Role     `json:"role"`
	CSIDivision       catalog.Division `json:"csi_division,omitempty"`
	DivisionName      string           `json:"division_name,omitempty"`
	ScopeOfWork       string           `json:"scope_of_work,omitempty"`
	Message           string           `json:"message,omitempty"`
	InvitedBy         string           `json:"invited_by"`
	InvitedAt         time.Time        `json:"invited_at"`
	ExpiresAt         time.Time        `json:"expires_at"`
	Status            Status           `json:"status"`
	AccessRequested   bool             `json:"access_requested"`
	AccessApproved    bool             `json:"access_approved"`
	RejectionReason   string           `json:"rejection_reason,omitempty"`
	AcceptedByUserID  string           `json:"accepted_by_user_id,omitempty"`
	AcceptedAt        *time.Time       `json:"accepted_at,omitempty"`
	ContactName       string           `json:"contact_name,omitempty"`
	ContactPhone      string           `json:"contact_phone,omitempty"`
	AccessRequestedAt *time.Time       `json:"access_requested_at,omitempty"`
	DecidedBy         string           `json:"decided_by,omitempty"`
	DecidedAt         *time.Time       `json:"decided_at,omitempty"`
	MemberID          string           `json:"member_id,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Scope returns the trade restriction the invitee will join with
func (inv *Invitation) Scope() catalog.Scope {
	return catalog.Scope{
		CSIDivision:  inv.CSIDivision,
		DivisionName: inv.DivisionName,
		ScopeOfWork:  inv.ScopeOfWork,
	}
}

// Expired reports whether the invitation's response window has closed at now
func (inv *Invitation) Expired(now time.Time) bool {
	return !inv.ExpiresAt.After(now)
}

func (inv *Invitation) clone() *Invitation {
	c := *inv
	for _, p := range []**time.Time{&c.AcceptedAt, &c.AccessRequestedAt, &c.DecidedAt} {
		if *p != nil {
			t := **p
			*p = &t
		}
	}
	return &c
}

// CreateRequest issues a new invitation
type CreateRequest struct {
	ProjectID       string
	InviterMemberID string
	Email           string
	CompanyName     string
	Role            catalog.Role
	Scope           catalog.Scope
	Message         string
}

// Invitee identifies the user accepting an invitation. When Email is set it
// must match the invited address.
type Invitee struct {
	UserID       string
	Email        string
	ContactName  string
	ContactPhone string
}

// ApproveRequest grants an access request
type ApproveRequest struct {
	InvitationID     string
	ApproverMemberID string
	// AccessLevel defaults to standard and may not exceed the approver's own
	AccessLevel catalog.AccessLevel
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Status          Status
	AccessRequested *bool
	AccessApproved  *bool
}
