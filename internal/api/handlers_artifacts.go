package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/gradekey/internal/pipeline"
)

// handleLegend serves the extracted legend as plain text. The body is
// empty when no legend was found; legend_found in the status report
// tells the two cases apart.
func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	job, ok := s.completedJob(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, job.LegendText())
}

// handleCSV serves the tabulated legend as CSV, empty when the legend
// was missing or conversion produced no valid rows.
func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	job, ok := s.completedJob(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	fmt.Fprint(w, job.CSVText())
}

// completedJob resolves the jobID route parameter to a completed job,
// writing the error response itself when it cannot.
func (s *Server) completedJob(w http.ResponseWriter, r *http.Request) (*pipeline.Job, bool) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil, false
	}
	snap := job.Snapshot()
	if snap.Status != pipeline.StatusCompleted {
		jsonError(w, fmt.Sprintf("job not completed (status %s)", snap.Status), http.StatusConflict)
		return nil, false
	}
	return job, true
}
