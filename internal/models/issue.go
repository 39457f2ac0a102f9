package models

import (
	"encoding/json"
	"time"
)

// TimeFormat is RFC 3339 with a fixed millisecond fraction, always rendered in UTC.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Issue is the public shape of a tracked issue. Field order follows the wire format.
type Issue struct {
	AssignedTo string    `json:"assigned_to"`
	StatusText string    `json:"status_text"`
	Open       bool      `json:"open"`
	ID         string    `json:"_id"`
	Title      string    `json:"issue_title"`
	Text       string    `json:"issue_text"`
	CreatedBy  string    `json:"created_by"`
	CreatedOn  time.Time `json:"created_on"`
	UpdatedOn  time.Time `json:"updated_on"`
}

// MarshalJSON renders timestamps with TimeFormat so every store produces identical output.
func (is Issue) MarshalJSON() ([]byte, error) {
	type wire Issue
	return json.Marshal(struct {
		wire
		CreatedOn string `json:"created_on"`
		UpdatedOn string `json:"updated_on"`
	}{
		wire:      wire(is),
		CreatedOn: is.CreatedOn.UTC().Format(TimeFormat),
		UpdatedOn: is.UpdatedOn.UTC().Format(TimeFormat),
	})
}

// Now returns the current time at the precision every store can keep (milliseconds, UTC).
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NewIssue builds an open issue stamped with now. The ID is assigned by the store.
func NewIssue(title, text, createdBy, assignedTo, statusText string, now time.Time) Issue {
	return Issue{
		AssignedTo: assignedTo,
		StatusText: statusText,
		Open:       true,
		Title:      title,
		Text:       text,
		CreatedBy:  createdBy,
		CreatedOn:  now,
		UpdatedOn:  now,
	}
}

// Field wraps an optional value so "not sent" and "sent as zero" stay distinct.
type Field[T any] struct {
	Present bool
	Value   T
}

// Some returns a present Field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Present: true, Value: v}
}

// IssuePatch holds the fields a client asked to change on an existing issue.
type IssuePatch struct {
	Title      Field[string]
	Text       Field[string]
	CreatedBy  Field[string]
	AssignedTo Field[string]
	StatusText Field[string]
	Open       Field[bool]
}

// Empty reports whether the patch would change nothing.
func (p IssuePatch) Empty() bool {
	return !p.Title.Present && !p.Text.Present && !p.CreatedBy.Present &&
		!p.AssignedTo.Present && !p.StatusText.Present && !p.Open.Present
}

// Apply merges the patch into is and refreshes UpdatedOn.
// UpdatedOn never moves before CreatedOn.
func (p IssuePatch) Apply(is *Issue, now time.Time) {
	if p.Title.Present {
		is.Title = p.Title.Value
	}
	if p.Text.Present {
		is.Text = p.Text.Value
	}
	if p.CreatedBy.Present {
		is.CreatedBy = p.CreatedBy.Value
	}
	if p.AssignedTo.Present {
		is.AssignedTo = p.AssignedTo.Value
	}
	if p.StatusText.Present {
		is.StatusText = p.StatusText.Value
	}
	if p.Open.Present {
		is.Open = p.Open.Value
	}
	if now.Before(is.CreatedOn) {
		now = is.CreatedOn
	}
	is.UpdatedOn = now
}
