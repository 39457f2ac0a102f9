package internal

import (
	"log"
	"net/http"
)

// listProjects reports every project with its issue counts, in creation order.
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.Store.ListProjects(r.Context())
	if err != nil {
		log.Printf("list projects: %v", err)
		http.Error(w, "could not list projects", http.StatusInternalServerError)
		return
	}
	writeJSON(w, projects)
}
