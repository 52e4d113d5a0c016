package api

import (
	"net/http"

	"github.com/platinummonkey/sitepass/pkg/authz"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/httputil"
	"github.com/platinummonkey/sitepass/pkg/invitations"
)

// authorize handles POST /projects/{projectID}/authorize for the caller
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
	if !ok {
		return
	}
	var req AuthorizeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	action, err := authz.ParseAction(req.Action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	decision, err := s.authz.Authorize(r.Context(), projectID, principal(r).UserID, action, catalog.Division(req.Scope))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, decision)
}

// getCatalog handles GET /catalog
func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	divisions := catalog.Divisions()
	entries := make([]DivisionEntry, 0, len(divisions))
	for _, d := range divisions {
		entries = append(entries, DivisionEntry{Code: d, Name: catalog.DivisionName(d)})
	}
	httputil.WriteSuccess(w, CatalogResponse{
		Roles:        catalog.Roles(),
		AccessLevels: catalog.AccessLevels(),
		Divisions:    entries,
		Actions:      authz.Actions(),
		Statuses:     invitations.Statuses(),
	})
}
