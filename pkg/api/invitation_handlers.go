package api

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/sitepass/pkg/authz"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/httputil"
	"github.com/platinummonkey/sitepass/pkg/invitations"
	"github.com/platinummonkey/sitepass/pkg/team"
)

// createInvitation handles POST /projects/{projectID}/invitations
func (s *Server) createInvitation(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
	if !ok {
		return
	}
	var req CreateInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	inviterID, err := s.callerMemberID(r.Context(), projectID, principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	inv, err := s.invitations.Create(r.Context(), invitations.CreateRequest{
		ProjectID:       projectID,
		InviterMemberID: inviterID,
		Email:           req.Email,
		CompanyName:     req.CompanyName,
		Role:            catalog.Role(req.Role),
		Scope:           scopeOf(req.CSIDivision, req.DivisionName, req.ScopeOfWork),
		Message:         req.Message,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, inv)
}

// listInvitations handles GET /projects/{projectID}/invitations
func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
	if !ok {
		return
	}

	var filter invitations.ListFilter
	if raw := httputil.ParseQueryString(r, "status", ""); raw != "" {
		status, err := invitations.ParseStatus(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.Status = status
	}
	var err error
	if filter.AccessRequested, err = httputil.ParseQueryOptionalBool(r, "access_requested"); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if filter.AccessApproved, err = httputil.ParseQueryOptionalBool(r, "access_approved"); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	if !s.require(w, r, projectID, authz.ActionViewProject) {
		return
	}
	list, err := s.invitations.List(r.Context(), projectID, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, listOf(list))
}

// listAccessRequests handles GET /projects/{projectID}/access-requests
func (s *Server) listAccessRequests(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
	if !ok {
		return
	}
	if !s.require(w, r, projectID, authz.ActionApproveAccess) {
		return
	}
	list, err := s.invitations.ListPending(r.Context(), projectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, listOf(list))
}

// getInvitation handles GET /invitations/{invitationID}. The invitee may read
// their own invitation; anyone else needs to be a project member.
func (s *Server) getInvitation(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.loadInvitation(w, r)
	if !ok {
		return
	}
	if !isInvitee(principal(r).UserID, principal(r).Email, inv) &&
		!s.require(w, r, inv.ProjectID, authz.ActionViewProject) {
		return
	}
	httputil.WriteSuccess(w, inv)
}

// acceptInvitation handles POST /invitations/{invitationID}/accept
func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	invitationID, ok := httputil.ParsePathStringOrError(w, r, "invitationID")
	if !ok {
		return
	}
	var req AcceptInvitationRequest
	if r.ContentLength != 0 && !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	p := principal(r)
	contactName := strings.TrimSpace(req.ContactName)
	if contactName == "" {
		contactName = p.Name
	}
	inv, err := s.invitations.Accept(r.Context(), invitationID, invitations.Invitee{
		UserID:       p.UserID,
		Email:        p.Email,
		ContactName:  contactName,
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, inv)
}

// requestAccess handles POST /invitations/{invitationID}/request-access
func (s *Server) requestAccess(w http.ResponseWriter, r *http.Request) {
	invitationID, ok := httputil.ParsePathStringOrError(w, r, "invitationID")
	if !ok {
		return
	}
	inv, err := s.invitations.RequestAccess(r.Context(), invitationID, principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, inv)
}

// decideInvitation handles POST /invitations/{invitationID}/approve with
// either an approve or a reject action
func (s *Server) decideInvitation(w http.ResponseWriter, r *http.Request) {
	var req DecideInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Action != DecisionApprove && req.Action != DecisionReject {
		httputil.WriteValidationError(w, `action must be "approve" or "reject"`)
		return
	}

	inv, ok := s.loadInvitation(w, r)
	if !ok {
		return
	}
	approverID, err := s.callerMemberID(r.Context(), inv.ProjectID, principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var resp DecideInvitationResponse
	if req.Action == DecisionReject {
		resp.Invitation, err = s.invitations.Reject(r.Context(), inv.ID, approverID, req.RejectionReason)
	} else {
		resp.Member, err = s.approve(r, inv.ID, approverID, req.AccessLevel)
		if err == nil {
			resp.Invitation, err = s.invitations.Get(r.Context(), inv.ID)
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

func (s *Server) approve(r *http.Request, invitationID, approverID, level string) (*team.Member, error) {
	return s.invitations.Approve(r.Context(), invitations.ApproveRequest{
		InvitationID:     invitationID,
		ApproverMemberID: approverID,
		AccessLevel:      catalog.AccessLevel(level),
	})
}

// revokeInvitation handles POST /invitations/{invitationID}/revoke
func (s *Server) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.loadInvitation(w, r)
	if !ok {
		return
	}
	byID, err := s.callerMemberID(r.Context(), inv.ProjectID, principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	revoked, err := s.invitations.Revoke(r.Context(), inv.ID, byID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, revoked)
}

func (s *Server) loadInvitation(w http.ResponseWriter, r *http.Request) (*invitations.Invitation, bool) {
	invitationID, ok := httputil.ParsePathStringOrError(w, r, "invitationID")
	if !ok {
		return nil, false
	}
	inv, err := s.invitations.Get(r.Context(), invitationID)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return inv, true
}

func isInvitee(userID, email string, inv *invitations.Invitation) bool {
	if inv.AcceptedByUserID != "" {
		return inv.AcceptedByUserID == userID
	}
	return email != "" && strings.EqualFold(strings.TrimSpace(email), inv.Email)
}

