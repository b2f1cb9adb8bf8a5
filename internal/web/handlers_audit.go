package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

// handleListAudit returns one page of the audit log, newest first.
// Filters: action, batchId and since (RFC 3339 or YYYY-MM-DD).
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := core.AuditQuery{
		Action:   core.AuditAction(q.Get("action")),
		BatchID:  q.Get("batchId"),
		Page:     parseIntParam(r, "page", 1),
		PageSize: parseIntParam(r, "pageSize", 0),
	}

	if since := q.Get("since"); since != "" {
		t, err := parseSince(since)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		query.Since = t
	}

	page, err := s.service.AuditEntries(r.Context(), query)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, page)
}

func parseSince(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: since must be RFC 3339 or YYYY-MM-DD, got %q", errBadRequest, v)
}
