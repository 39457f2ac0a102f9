package internal

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"issue-tracker-api/internal/models"
)

// withRequestTimeout bounds the store calls a request makes. Unlike chi's
// middleware.Timeout it never writes a 504, so the issue routes keep
// answering 200 and report failures in the body.
func withRequestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// recoverIssueOp replaces chi's Recoverer on the issue routes. A panic is
// logged with its stack and answered with the route's usual failure body
// and a 200.
func (s *Server) recoverIssueOp(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil && r.Method != http.MethodGet {
			body, _ = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Printf("panic: %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())

			id := parseIssueBody(r.Header.Get("Content-Type"), body).str("_id")
			switch r.Method {
			case http.MethodGet:
				s.Metrics.RecordIssueOp("list", "error")
				writeJSON(w, []models.Issue{})
			case http.MethodPost:
				s.Metrics.RecordIssueOp("create", "error")
				writeJSON(w, errorResponse{Error: "could not create"})
			case http.MethodPut:
				s.Metrics.RecordIssueOp("update", "error")
				writeJSON(w, errorResponse{Error: "could not update", ID: id})
			case http.MethodDelete:
				s.Metrics.RecordIssueOp("delete", "error")
				writeJSON(w, errorResponse{Error: "could not delete", ID: id})
			default:
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
