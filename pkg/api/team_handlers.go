package api

import (
	"net/http"

	"github.com/platinummonkey/sitepass/pkg/authz"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/httputil"
	"github.com/platinummonkey/sitepass/pkg/team"
)

// listTeam handles GET /projects/{projectID}/team. Admins may include removed
// members with ?include_inactive=true.
func (s *Server) listTeam(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
	if !ok {
		return
	}
	includeInactive, err := httputil.ParseQueryBool(r, "include_inactive", false)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	action := authz.ActionViewProject
	if includeInactive {
		action = authz.ActionManageTeam
	}
	if !s.require(w, r, projectID, action) {
		return
	}

	members, err := s.team.List(r.Context(), projectID, !includeInactive)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, listOf(members))
}

// addMember handles POST /projects/{projectID}/team
func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
	if !ok {
		return
	}
	var req AddMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	byID, err := s.callerMemberID(r.Context(), projectID, principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.team.Add(r.Context(), team.AddRequest{
		ProjectID:   projectID,
		ByMemberID:  byID,
		UserID:      req.UserID,
		Role:        catalog.Role(req.Role),
		AccessLevel: catalog.AccessLevel(req.AccessLevel),
		Profile: catalog.Profile{
			CompanyName:  req.CompanyName,
			ContactName:  req.ContactName,
			ContactEmail: req.ContactEmail,
			ContactPhone: req.ContactPhone,
		},
		Scope:           scopeOf(req.CSIDivision, req.DivisionName, req.ScopeOfWork),
		CanInviteOthers: req.CanInviteOthers,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, m)
}

// updateMember handles PUT /projects/{projectID}/team
func (s *Server) updateMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
	if !ok {
		return
	}
	var req UpdateMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.MemberID, "memberId") {
		return
	}

	current, err := s.member(r.Context(), projectID, req.MemberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	byID, err := s.callerMemberID(r.Context(), projectID, principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.team.Update(r.Context(), current.ID, req.patch(), byID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, m)
}

// removeMember handles DELETE /projects/{projectID}/team?memberId=
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
	if !ok {
		return
	}
	memberID := httputil.ParseQueryString(r, "memberId", "")
	if !httputil.RequireNonEmpty(w, memberID, "memberId") {
		return
	}

	if _, err := s.member(r.Context(), projectID, memberID); err != nil {
		s.writeError(w, r, err)
		return
	}
	byID, err := s.callerMemberID(r.Context(), projectID, principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.team.Remove(r.Context(), memberID, byID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, m)
}
