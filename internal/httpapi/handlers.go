package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// handleRun accepts a POST body of arbitrary input variables, merges them
// onto the endpoint's template input, submits the run, and responds 202
// with the run id — this surface never blocks on the workflow finishing.
func (s *Server) handleRun(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := reqID(r)
		template, ok := s.endpoints[endpoint]
		if !ok {
			writeErrorJSON(w, "NOT_FOUND", "unknown workflow endpoint", http.StatusNotFound)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

		var variables map[string]any
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&variables); err != nil {
				s.logger.Warning("failed to decode run request body", map[string]any{"requestId": rid, "error": err.Error()})
				writeErrorJSON(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
				return
			}
		}

		if err := template.Input.Validate(); err != nil {
			writeErrorJSON(w, "INVALID_INPUT", err.Error(), http.StatusUnprocessableEntity)
			return
		}

		receipt := s.registry.Submit(r.Context(), endpoint, template, variables)
		s.logger.Info("submitted run", map[string]any{"requestId": rid, "endpoint": endpoint, "runId": receipt.RunID})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"run_id":           receipt.RunID,
			"endpoint":         receipt.Endpoint,
			"workflow_name":    receipt.WorkflowName,
			"workflow_version": receipt.WorkflowVersion,
			"status":           receipt.Status.String(),
			"submitted_at":     receipt.SubmittedAt,
		})
	}
}

// handleGetRun reports a run's current status and, once terminal, its
// full node-execution output. If endpoint is non-empty, the lookup also
// 404s when the record belongs to a different endpoint than the path.
func (s *Server) handleGetRun(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := mux.Vars(r)["run_id"]
		rec, ok := s.registry.Get(runID)
		if !ok || (endpoint != "" && rec.Endpoint != endpoint) {
			writeErrorJSON(w, "NOT_FOUND", "unknown run id", http.StatusNotFound)
			return
		}

		resp := map[string]any{
			"run_id":           rec.RunID,
			"endpoint":         rec.Endpoint,
			"workflow_name":    rec.WorkflowName,
			"workflow_version": rec.WorkflowVersion,
			"workflow_id":      rec.WorkflowID,
			"status":           rec.Status.String(),
			"submitted_at":     rec.SubmittedAt,
			"started_at":       rec.StartedAt,
			"executions":       rec.Executions,
			"error":            rec.Error,
		}
		if rec.CompletedAt != nil {
			resp["completed_at"] = rec.CompletedAt
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}
