package authz

import (
	"sort"
	"strings"

	"github.com/platinummonkey/sitepass/pkg/access"
)

// Action is something a member can do inside a project
type Action string

const (
	ActionViewProject       Action = "view_project"
	ActionViewDocuments     Action = "view_documents"
	ActionEditRFI           Action = "edit_rfi"
	ActionEditSubmittal     Action = "edit_submittal"
	ActionApproveSubmittal  Action = "approve_submittal"
	ActionEditChangeOrder   Action = "edit_change_order"
	ActionEditSafetyMeeting Action = "edit_safety_meeting"
	ActionUploadFile        Action = "upload_file"
	ActionEditDailyLog      Action = "edit_daily_log"

	// Admin tier
	ActionManageTeam    Action = "manage_team"
	ActionApproveAccess Action = "approve_access"
	ActionViewAudit     Action = "view_audit"
)

type actionTraits struct {
	mutating  bool
	scoped    bool
	adminOnly bool
}

var actions = map[Action]actionTraits{
	ActionViewProject:       {},
	ActionViewDocuments:     {},
	ActionEditRFI:           {mutating: true, scoped: true},
	ActionEditSubmittal:     {mutating: true, scoped: true},
	ActionApproveSubmittal:  {mutating: true, scoped: true},
	ActionEditChangeOrder:   {mutating: true},
	ActionEditSafetyMeeting: {mutating: true},
	ActionUploadFile:        {mutating: true, scoped: true},
	ActionEditDailyLog:      {mutating: true},
	ActionManageTeam:        {mutating: true, adminOnly: true},
	ActionApproveAccess:     {mutating: true, adminOnly: true},
	ActionViewAudit:         {adminOnly: true},
}

// Actions returns every known action in lexical order
func Actions() []Action {
	out := make([]Action, 0, len(actions))
	for a := range actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseAction validates an action name
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := actions[a]; !ok {
		return "", access.Errorf(access.KindInvalidArgument, "authz.parse_action", "unknown action %q", s)
	}
	return a, nil
}

// Valid reports whether a is a known action
func (a Action) Valid() bool {
	_, ok := actions[a]
	return ok
}

// Mutating reports whether the action changes project data
func (a Action) Mutating() bool { return actions[a].mutating }

// Scoped reports whether the action is restricted to the member's trade division
func (a Action) Scoped() bool { return actions[a].scoped }

// AdminOnly reports whether only admin-level members may perform the action
func (a Action) AdminOnly() bool { return actions[a].adminOnly }

// DenyReason explains a negative decision
type DenyReason string

const (
	ReasonNotAMember              DenyReason = "not_a_member"
	ReasonInsufficientAccessLevel DenyReason = "insufficient_access_level"
	ReasonOutOfScope              DenyReason = "out_of_scope"
)

// Decision is the outcome of an authorization check
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
}

// Allow is the positive decision
var Allow = Decision{Allowed: true}

// Deny returns a negative decision with reason
func Deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Err converts a denial into the matching access error. It returns nil when
// the decision allows.
func (d Decision) Err(op string) error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonNotAMember:
		return access.New(access.KindNotAMember, op, "user is not an active member of the project")
	case ReasonOutOfScope:
		return access.New(access.KindOutOfScope, op, "action is outside the member's trade scope")
	default:
		return access.New(access.KindInsufficientAccessLevel, op, "access level does not permit this action")
	}
}
