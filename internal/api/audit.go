package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-obegraensad/internal/audit"
)

// handleListAudit returns recorded pairing activity, newest first.
//
// Query parameters: action, entity_id, limit (default 50, max 200), offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeNotFound(w, "audit log not available")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		EntityID: q.Get("entity_id"),
	}

	var err error
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
	}

	result, err := s.auditLog.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit logs failed", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
