package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-obegraensad/internal/flow"
)

// flowResponse is a flow result tagged with its flow id.
type flowResponse struct {
	FlowID string `json:"flow_id"`
	flow.Result
}

// handleStartFlow opens a pairing flow and returns the initial form.
func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	id, result := s.flows.Start(r.Context())
	writeJSON(w, http.StatusCreated, flowResponse{FlowID: id, Result: result})
}

// handleConfigureFlow submits the user step of a pairing flow.
func (s *Server) handleConfigureFlow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input flow.UserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.flows.Configure(r.Context(), id, &input)
	if err != nil {
		if errors.Is(err, flow.ErrFlowNotFound) {
			writeNotFound(w, "flow not found")
			return
		}
		s.logger.Error("configuring flow failed", "flow_id", id, "error", err)
		writeInternalError(w, "failed to configure flow")
		return
	}

	writeJSON(w, http.StatusOK, flowResponse{FlowID: id, Result: result})
}

// handleAbortFlow discards an in-progress pairing flow.
func (s *Server) handleAbortFlow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.flows.Abort(id); err != nil {
		if errors.Is(err, flow.ErrFlowNotFound) {
			writeNotFound(w, "flow not found")
			return
		}
		writeInternalError(w, "failed to abort flow")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
