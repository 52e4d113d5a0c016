package invitations

import (
	"context"
	"database/sql"
	"strings"

	"github.com/platinummonkey/sitepass/pkg/access"
	"github.com/platinummonkey/sitepass/pkg/audit"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/events"
	"github.com/platinummonkey/sitepass/pkg/team"
)

// ListPending returns the project's open access requests, oldest first
func (s *Service) ListPending(ctx context.Context, projectID string) ([]*Invitation, error) {
	approved := false
	return listInvitations(ctx, s.db.SQL(), projectID, ListFilter{
		Status:         StatusAccessRequested,
		AccessApproved: &approved,
	})
}

// Approve grants an access request. The invitation moves to approved and the
// invitee's membership is created or reactivated in the same transaction.
//
// Replaying an approval by the approver already recorded on the invitation
// returns the existing member. Any other approve of a non-requested
// invitation fails with KindInvalidTransition.
func (s *Service) Approve(ctx context.Context, req ApproveRequest) (*team.Member, error) {
	const op = "invitations.approve"

	level := req.AccessLevel
	if level == "" {
		level = catalog.AccessStandard
	}
	if !level.Valid() {
		return nil, access.Errorf(access.KindInvalidArgument, op, "unknown access level %q", level)
	}

	var inv *Invitation
	var member *team.Member
	var actor, projectID string
	replayed := false

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.load(ctx, tx, op, req.InvitationID, true)
		if err != nil {
			return err
		}
		projectID = current.ProjectID
		if err := s.db.LockProject(ctx, tx, projectID); err != nil {
			return err
		}
		approver, err := s.requireAdmin(ctx, tx, op, req.ApproverMemberID, projectID)
		if approver != nil {
			actor = approver.UserID
		}
		if err != nil {
			return err
		}

		if current.Status == StatusApproved && current.DecidedBy == approver.ID && current.MemberID != "" {
			member, err = s.team.MemberTx(ctx, tx, current.MemberID)
			if err != nil {
				return err
			}
			inv = current
			replayed = true
			return s.audit.RecordTx(ctx, tx, &audit.Entry{
				ProjectID:   projectID,
				ActorUserID: actor,
				Action:      audit.ActionInvitationApprove,
				TargetType:  audit.TargetInvitation,
				TargetID:    current.ID,
				Outcome:     audit.OutcomeSuccess,
				Message:     "replayed",
			})
		}
		if current.Status != StatusAccessRequested {
			return invalidTransition(op, current.Status, StatusApproved)
		}
		if level.Rank() > approver.AccessLevel.Rank() {
			return access.New(access.KindForbidden, op, "cannot grant a higher access level than the approver's own")
		}

		member, err = s.team.ActivateTx(ctx, tx, team.ActivateRequest{
			ProjectID:   projectID,
			UserID:      current.AcceptedByUserID,
			Role:        current.Role,
			AccessLevel: level,
			Profile: catalog.Profile{
				CompanyName:  current.CompanyName,
				ContactName:  current.ContactName,
				ContactEmail: current.Email,
				ContactPhone: current.ContactPhone,
			},
			Scope:     current.Scope(),
			InvitedBy: current.InvitedBy,
		})
		if err != nil {
			return err
		}

		before := current.clone()
		now := s.timestamp()
		current.Status = StatusApproved
		current.AccessApproved = true
		current.DecidedBy = approver.ID
		current.DecidedAt = &now
		current.MemberID = member.ID
		current.UpdatedAt = now
		if err := saveInvitation(ctx, tx, op, current, before.Status); err != nil {
			return err
		}
		inv = current
		return s.recordTx(ctx, tx, audit.ActionInvitationApprove, actor, before, inv)
	})
	if err != nil {
		s.recordFailure(ctx, audit.ActionInvitationApprove, projectID, actor, req.InvitationID, err)
		return nil, err
	}

	if !replayed {
		s.team.Invalidate(member.ProjectID, member.UserID)
		s.committed(ctx, events.InvitationApproved, inv, actor)
		s.logger.WithFields(map[string]interface{}{
			"project_id":    projectID,
			"invitation_id": inv.ID,
			"member_id":     member.ID,
			"access_level":  string(member.AccessLevel),
		}).Info("Access request approved")
	}
	return member, nil
}

// Reject declines an access request. No membership is created.
func (s *Service) Reject(ctx context.Context, invitationID, approverMemberID, reason string) (*Invitation, error) {
	const op = "invitations.reject"
	var inv *Invitation
	var actor, projectID string

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.load(ctx, tx, op, invitationID, true)
		if err != nil {
			return err
		}
		projectID = current.ProjectID
		approver, err := s.requireAdmin(ctx, tx, op, approverMemberID, projectID)
		if approver != nil {
			actor = approver.UserID
		}
		if err != nil {
			return err
		}
		if current.Status != StatusAccessRequested {
			return invalidTransition(op, current.Status, StatusRejected)
		}

		before := current.clone()
		now := s.timestamp()
		current.Status = StatusRejected
		current.RejectionReason = strings.TrimSpace(reason)
		current.DecidedBy = approver.ID
		current.DecidedAt = &now
		current.UpdatedAt = now
		if err := saveInvitation(ctx, tx, op, current, before.Status); err != nil {
			return err
		}
		inv = current
		return s.recordTx(ctx, tx, audit.ActionInvitationReject, actor, before, inv)
	})
	if err != nil {
		s.recordFailure(ctx, audit.ActionInvitationReject, projectID, actor, invitationID, err)
		return nil, err
	}

	s.committed(ctx, events.InvitationRejected, inv, actor)
	return inv, nil
}
