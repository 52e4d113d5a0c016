package api

import (
	"context"
	"net/http"

	"github.com/platinummonkey/sitepass/pkg/access"
	"github.com/platinummonkey/sitepass/pkg/authz"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/httputil"
	"github.com/platinummonkey/sitepass/pkg/middleware"
	"github.com/platinummonkey/sitepass/pkg/observability"
	"github.com/platinummonkey/sitepass/pkg/team"
)

func principal(r *http.Request) *middleware.Principal {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p
}

// callerMemberID returns the caller's active membership in projectID, or ""
// when they have none. The services turn an empty caller into an audited
// denial.
func (s *Server) callerMemberID(ctx context.Context, projectID, userID string) (string, error) {
	m, err := s.team.GetActive(ctx, projectID, userID)
	if access.KindOf(err) == access.KindNotAMember {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// require checks the caller may perform action in projectID and writes the
// error response when not
func (s *Server) require(w http.ResponseWriter, r *http.Request, projectID string, action authz.Action) bool {
	decision, err := s.authz.Authorize(r.Context(), projectID, principal(r).UserID, action, "")
	if err != nil {
		s.writeError(w, r, err)
		return false
	}
	if !decision.Allowed {
		s.writeError(w, r, decision.Err("api."+string(action)))
		return false
	}
	return true
}

// member loads memberID and checks it belongs to projectID
func (s *Server) member(ctx context.Context, projectID, memberID string) (*team.Member, error) {
	m, err := s.team.Get(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m.ProjectID != projectID {
		return nil, access.New(access.KindNotFound, "api.member", "member not found")
	}
	return m, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := access.KindOf(err)
	if kind == access.KindUnavailable || kind == access.KindBusy {
		observability.FromContext(r.Context()).WithError(err).WithField("kind", string(kind)).Warn("request failed")
	}
	httputil.WriteAccessError(w, err)
}

func scopeOf(division, name, work string) catalog.Scope {
	return catalog.Scope{
		CSIDivision:  catalog.Division(division),
		DivisionName: name,
		ScopeOfWork:  work,
	}
}
