package models

import "time"

// IssueFilter is a set of exact-match predicates combined with AND.
// A nil field is inactive.
type IssueFilter struct {
	ID         *string
	Title      *string
	Text       *string
	CreatedBy  *string
	AssignedTo *string
	StatusText *string
	Open       *bool
	CreatedOn  *time.Time
	UpdatedOn  *time.Time

	// Unmatchable is set when a supplied value can never equal a stored one,
	// e.g. an _id that is not in the store's identifier format.
	Unmatchable bool
}

// Empty reports whether no predicate is active.
func (f IssueFilter) Empty() bool {
	return f.ID == nil && f.Title == nil && f.Text == nil && f.CreatedBy == nil &&
		f.AssignedTo == nil && f.StatusText == nil && f.Open == nil &&
		f.CreatedOn == nil && f.UpdatedOn == nil && !f.Unmatchable
}

// Match reports whether is satisfies every active predicate.
func (f IssueFilter) Match(is Issue) bool {
	if f.Unmatchable {
		return false
	}
	if f.ID != nil && *f.ID != is.ID {
		return false
	}
	if f.Title != nil && *f.Title != is.Title {
		return false
	}
	if f.Text != nil && *f.Text != is.Text {
		return false
	}
	if f.CreatedBy != nil && *f.CreatedBy != is.CreatedBy {
		return false
	}
	if f.AssignedTo != nil && *f.AssignedTo != is.AssignedTo {
		return false
	}
	if f.StatusText != nil && *f.StatusText != is.StatusText {
		return false
	}
	if f.Open != nil && *f.Open != is.Open {
		return false
	}
	if f.CreatedOn != nil && !f.CreatedOn.Equal(is.CreatedOn) {
		return false
	}
	if f.UpdatedOn != nil && !f.UpdatedOn.Equal(is.UpdatedOn) {
		return false
	}
	return true
}
