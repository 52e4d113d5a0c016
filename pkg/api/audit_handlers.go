package api

import (
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/sitepass/pkg/audit"
	"github.com/platinummonkey/sitepass/pkg/authz"
	"github.com/platinummonkey/sitepass/pkg/httputil"
	"github.com/platinummonkey/sitepass/pkg/observability"
)

// exportAudit handles GET /projects/{projectID}/audit and streams the trail
// in the requested format
func (s *Server) exportAudit(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
	if !ok {
		return
	}
	format, err := audit.ParseExportFormat(httputil.ParseQueryString(r, "format", ""))
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	filter, err := auditFilter(r)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if !s.require(w, r, projectID, authz.ActionViewAudit) {
		return
	}

	// A failure on the first page still gets an error status
	entries, first, err := peek(s.auditLog.Query(r.Context(), projectID, filter))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("audit-%s.%s", projectID, format)))
	w.WriteHeader(http.StatusOK)
	if err := audit.Export(w, entries(first), format); err != nil {
		observability.FromContext(r.Context()).WithError(err).WithField("project_id", projectID).
			Error("Audit export aborted")
	}
}

func auditFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		ActorUserID: q.Get("actor"),
		TargetType:  audit.TargetType(q.Get("target_type")),
		TargetID:    q.Get("target_id"),
		Outcome:     audit.Outcome(q.Get("outcome")),
	}
	for _, raw := range q["action"] {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				filter.Actions = append(filter.Actions, audit.Action(a))
			}
		}
	}

	var err error
	if filter.Since, err = parseTime(q.Get("since")); err != nil {
		return audit.Filter{}, fmt.Errorf("invalid since: %w", err)
	}
	if filter.Until, err = parseTime(q.Get("until")); err != nil {
		return audit.Filter{}, fmt.Errorf("invalid until: %w", err)
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Until.Before(filter.Since) {
		return audit.Filter{}, fmt.Errorf("until must not be before since")
	}
	return filter, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// peek reads the first element of seq. The returned function replays that
// element followed by the rest of the sequence.
func peek(seq iter.Seq2[*audit.Entry, error]) (func(*audit.Entry) iter.Seq2[*audit.Entry, error], *audit.Entry, error) {
	next, stop := iter.Pull2(seq)
	first, err, ok := next()
	if err != nil {
		stop()
		return nil, nil, err
	}
	rest := func(first *audit.Entry) iter.Seq2[*audit.Entry, error] {
		return func(yield func(*audit.Entry, error) bool) {
			defer stop()
			if !ok || !yield(first, nil) {
				return
			}
			for {
				e, err, more := next()
				if !more || !yield(e, err) {
					return
				}
			}
		}
	}
	return rest, first, nil
}
