package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-obegraensad/internal/audit"
	"github.com/nerrad567/gray-logic-obegraensad/internal/entry"
)

// handleListEntries returns all config entries.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.entries.ListEntries(r.Context())
	if err != nil {
		s.logger.Error("listing entries failed", "error", err)
		writeInternalError(w, "failed to list entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetEntry returns a single config entry.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	e, err := s.entries.GetEntry(r.Context(), id)
	if err != nil {
		if errors.Is(err, entry.ErrEntryNotFound) {
			writeNotFound(w, "entry not found")
			return
		}
		s.logger.Error("getting entry failed", "id", id, "error", err)
		writeInternalError(w, "failed to get entry")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// handleDeleteEntry removes a config entry and releases its display.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.entries.DeleteEntry(r.Context(), id); err != nil {
		if errors.Is(err, entry.ErrEntryNotFound) {
			writeNotFound(w, "entry not found")
			return
		}
		s.logger.Error("deleting entry failed", "id", id, "error", err)
		writeInternalError(w, "failed to delete entry")
		return
	}

	if s.bridge != nil {
		s.bridge.RemoveEntry(r.Context(), id)
	}
	s.audit.Record(r.Context(), audit.ActionEntryDeleted, id, subjectDetails(r))

	w.WriteHeader(http.StatusNoContent)
}

// subjectDetails returns audit details naming the authenticated caller, if any.
func subjectDetails(r *http.Request) map[string]any {
	subject, _ := r.Context().Value(ctxKeySubject).(string)
	if subject == "" {
		return nil
	}
	return map[string]any{"subject": subject}
}
