// Package store defines the persistence contract the issue handlers depend on.
// Backends live in the memory, sqlstore and mongostore subpackages.
package store

import (
	"context"
	"errors"

	"issue-tracker-api/internal/models"
)

// ErrNotFound is returned when a project or an issue within it does not exist.
var ErrNotFound = errors.New("not found")

// Store keeps one copy of each issue, keyed by id and owned by exactly one project.
// Project views are materialized on read in insertion order.
type Store interface {
	// FindProjectByName returns the first project with the given name and its issues.
	FindProjectByName(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.ProjectSummary, error)

	// CreateIssue assigns issue.ID and appends the issue to the project,
	// creating the project on first use.
	CreateIssue(ctx context.Context, project string, issue *models.Issue) error
	FindIssue(ctx context.Context, project, id string) (*models.Issue, error)
	UpdateIssue(ctx context.Context, project string, issue *models.Issue) error
	// DeleteIssue removes the issue by id alone and detaches it from whichever
	// project owns it.
	DeleteIssue(ctx context.Context, id string) error

	// FilterIssues returns the project's issues matching every active predicate,
	// in project order. A missing project yields an empty result.
	FilterIssues(ctx context.Context, project string, filter models.IssueFilter) ([]models.Issue, error)

	// ParseID coerces a client supplied id into the backend's native format.
	ParseID(raw string) (string, bool)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
