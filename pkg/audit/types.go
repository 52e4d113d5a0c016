package audit

import (
	"encoding/json"
	"time"
)

// Action names the state transition or decision an entry records
type Action string

const (
	// Invitation ledger
	ActionInvitationCreate        Action = "invitation.create"
	ActionInvitationAccept        Action = "invitation.accept"
	ActionInvitationRequestAccess Action = "invitation.request_access"
	ActionInvitationExpire        Action = "invitation.expire"
	ActionInvitationRevoke        Action = "invitation.revoke"

	// Approval workflow
	ActionInvitationApprove Action = "invitation.approve"
	ActionInvitationReject  Action = "invitation.reject"

	// Team registry
	ActionMemberAdd       Action = "team.add"
	ActionMemberUpdate    Action = "team.update"
	ActionMemberRemove    Action = "team.remove"
	ActionMemberBootstrap Action = "team.bootstrap"

	// Authorization decisions of consequence
	ActionAuthorize Action = "authz.decision"
)

// TargetType identifies what kind of record an entry is about
type TargetType string

const (
	TargetInvitation    TargetType = "invitation"
	TargetTeamMember    TargetType = "team_member"
	TargetAuthorization TargetType = "authorization"
)

// Outcome of the audited operation
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// SystemActor is recorded as the actor of transitions no user triggered
const SystemActor = "system"

// State is a JSON snapshot of a record before or after a transition
type State map[string]interface{}

// StateOf snapshots v through its JSON encoding. Nil yields nil.
func StateOf(v interface{}) State {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return State{"unencodable": err.Error()}
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{"unencodable": err.Error()}
	}
	return s
}

// Entry is one immutable row of the audit trail
type Entry struct {
	ID          int64      `json:"id"`
	ProjectID   string     `json:"project_id"`
	ActorUserID string     `json:"actor_user_id"`
	Action      Action     `json:"action"`
	TargetType  TargetType `json:"target_type"`
	TargetID    string     `json:"target_id"`
	Outcome     Outcome    `json:"outcome"`
	Message     string     `json:"message,omitempty"`
	BeforeState State      `json:"before_state,omitempty"`
	AfterState  State      `json:"after_state,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	Actions     []Action
	ActorUserID string
	TargetType  TargetType
	TargetID    string
	Outcome     Outcome
	Since       time.Time
	Until       time.Time
	// PageSize is the number of rows fetched per round trip
	PageSize int
}

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatNDJSON ExportFormat = "ndjson"
	ExportFormatCSV    ExportFormat = "csv"
)

// ContentType returns the HTTP media type for the format
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv"
	case ExportFormatNDJSON:
		return "application/x-ndjson"
	default:
		return "application/json"
	}
}
