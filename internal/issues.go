package internal

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"issue-tracker-api/internal/models"
	"issue-tracker-api/internal/store"

	"github.com/go-chi/chi/v5"
)

// Issue routes always answer 200. Failures are reported in the body as
// {"error": ...} so existing clients keep working.

type errorResponse struct {
	Error string `json:"error"`
	ID    string `json:"_id,omitempty"`
}

type resultResponse struct {
	Result string `json:"result"`
	ID     string `json:"_id"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	filter := parseIssueFilter(r.URL.Query(), s.Store.ParseID)

	var (
		issues []models.Issue
		err    error
	)
	if filter.Empty() {
		var p *models.Project
		p, err = s.Store.FindProjectByName(r.Context(), project)
		if err == nil {
			issues = p.Issues
		}
	} else {
		issues, err = s.Store.FilterIssues(r.Context(), project, filter)
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		s.Metrics.RecordIssueOp("list", "not_found")
	case err != nil:
		log.Printf("list issues: project=%q: %v", project, err)
		s.Metrics.RecordIssueOp("list", "error")
	default:
		s.Metrics.RecordIssueOp("list", "ok")
	}
	if issues == nil {
		issues = []models.Issue{}
	}
	writeJSON(w, issues)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	body := decodeIssueBody(r)

	title, text, createdBy := body.str("issue_title"), body.str("issue_text"), body.str("created_by")
	if title == "" || text == "" || createdBy == "" {
		s.Metrics.RecordIssueOp("create", "invalid")
		writeJSON(w, errorResponse{Error: "required field(s) missing"})
		return
	}

	issue := models.NewIssue(title, text, createdBy, body.str("assigned_to"), body.str("status_text"), s.now())
	if err := s.Store.CreateIssue(r.Context(), project, &issue); err != nil {
		log.Printf("create issue: project=%q: %v", project, err)
		s.Metrics.RecordIssueOp("create", "error")
		writeJSON(w, errorResponse{Error: "could not create"})
		return
	}

	s.Metrics.RecordIssueOp("create", "ok")
	writeJSON(w, issue)
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	body := decodeIssueBody(r)

	id := body.str("_id")
	if id == "" {
		s.Metrics.RecordIssueOp("update", "invalid")
		writeJSON(w, errorResponse{Error: "missing _id"})
		return
	}

	patch := body.patch()
	if patch.Empty() {
		s.Metrics.RecordIssueOp("update", "invalid")
		writeJSON(w, errorResponse{Error: "no update field(s) sent", ID: id})
		return
	}

	issue, err := s.Store.FindIssue(r.Context(), project, id)
	if err == nil {
		patch.Apply(issue, s.now())
		err = s.Store.UpdateIssue(r.Context(), project, issue)
	}
	if err != nil {
		s.recordWriteFailure("update", project, id, err)
		writeJSON(w, errorResponse{Error: "could not update", ID: id})
		return
	}

	s.Metrics.RecordIssueOp("update", "ok")
	writeJSON(w, resultResponse{Result: "successfully updated", ID: id})
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	body := decodeIssueBody(r)

	id := body.str("_id")
	if id == "" {
		s.Metrics.RecordIssueOp("delete", "invalid")
		writeJSON(w, errorResponse{Error: "missing _id"})
		return
	}

	if err := s.Store.DeleteIssue(r.Context(), id); err != nil {
		s.recordWriteFailure("delete", project, id, err)
		writeJSON(w, errorResponse{Error: "could not delete", ID: id})
		return
	}

	s.Metrics.RecordIssueOp("delete", "ok")
	writeJSON(w, resultResponse{Result: "successfully deleted", ID: id})
}

func (s *Server) recordWriteFailure(op, project, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.Metrics.RecordIssueOp(op, "not_found")
		return
	}
	log.Printf("%s issue: project=%q id=%q: %v", op, project, id, err)
	s.Metrics.RecordIssueOp(op, "error")
}
