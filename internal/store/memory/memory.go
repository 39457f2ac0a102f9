// Package memory is an in-process Store used for local runs and handler tests.
package memory

import (
	"context"
	"sync"

	"issue-tracker-api/internal/models"
	"issue-tracker-api/internal/store"

	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

type project struct {
	name string
	ids  []string
}

type entry struct {
	project *project
	issue   models.Issue
}

// Store keeps projects in creation order and issues in a map keyed by id.
type Store struct {
	mu       sync.RWMutex
	projects []*project
	issues   map[string]*entry
}

func New() *Store {
	return &Store{issues: make(map[string]*entry)}
}

func (s *Store) lookup(name string) *project {
	for _, p := range s.projects {
		if p.name == name {
			return p
		}
	}
	return nil
}

// entryIn returns the issue with id when it belongs to the named project.
func (s *Store) entryIn(name, id string) *entry {
	id, ok := s.ParseID(id)
	if !ok {
		return nil
	}
	e := s.issues[id]
	if e == nil || e.project != s.lookup(name) {
		return nil
	}
	return e
}

func (s *Store) FindProjectByName(_ context.Context, name string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.lookup(name)
	if p == nil {
		return nil, store.ErrNotFound
	}
	out := &models.Project{Name: p.name, Issues: make([]models.Issue, 0, len(p.ids))}
	for _, id := range p.ids {
		out.Issues = append(out.Issues, s.issues[id].issue)
	}
	return out, nil
}

func (s *Store) ListProjects(_ context.Context) ([]models.ProjectSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ProjectSummary, 0, len(s.projects))
	for _, p := range s.projects {
		sum := models.ProjectSummary{Name: p.name, IssueCount: len(p.ids)}
		for _, id := range p.ids {
			if s.issues[id].issue.Open {
				sum.OpenCount++
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Store) CreateIssue(_ context.Context, name string, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.lookup(name)
	if p == nil {
		p = &project{name: name}
		s.projects = append(s.projects, p)
	}
	issue.ID = uuid.NewString()
	s.issues[issue.ID] = &entry{project: p, issue: *issue}
	p.ids = append(p.ids, issue.ID)
	return nil
}

func (s *Store) FindIssue(_ context.Context, name, id string) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.entryIn(name, id)
	if e == nil {
		return nil, store.ErrNotFound
	}
	is := e.issue
	return &is, nil
}

func (s *Store) UpdateIssue(_ context.Context, name string, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryIn(name, issue.ID)
	if e == nil {
		return store.ErrNotFound
	}
	updated := *issue
	updated.ID = e.issue.ID
	e.issue = updated
	return nil
}

func (s *Store) DeleteIssue(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.ParseID(id)
	if !ok {
		return store.ErrNotFound
	}
	e := s.issues[id]
	if e == nil {
		return store.ErrNotFound
	}
	p := e.project
	for i, pid := range p.ids {
		if pid == e.issue.ID {
			p.ids = append(p.ids[:i], p.ids[i+1:]...)
			break
		}
	}
	delete(s.issues, e.issue.ID)
	return nil
}

func (s *Store) FilterIssues(_ context.Context, name string, filter models.IssueFilter) ([]models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Issue{}
	p := s.lookup(name)
	if p == nil {
		return out, nil
	}
	for _, id := range p.ids {
		if is := s.issues[id].issue; filter.Match(is) {
			out = append(out, is)
		}
	}
	return out, nil
}

// ParseID accepts any UUID spelling and returns its canonical form.
func (s *Store) ParseID(raw string) (string, bool) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }
