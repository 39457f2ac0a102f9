// Package storetest is a conformance suite every store.Store backend runs in its tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"issue-tracker-api/internal/models"
	"issue-tracker-api/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

var base = time.Date(2024, time.March, 1, 12, 0, 0, 123e6, time.UTC)

// Run exercises the full store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndFindProject", func(t *testing.T) { testCreateAndFindProject(t, newStore(t)) })
	t.Run("FindIssueScopedToProject", func(t *testing.T) { testFindIssueScoped(t, newStore(t)) })
	t.Run("UpdateIssue", func(t *testing.T) { testUpdateIssue(t, newStore(t)) })
	t.Run("DeleteIssue", func(t *testing.T) { testDeleteIssue(t, newStore(t)) })
	t.Run("FilterIssues", func(t *testing.T) { testFilterIssues(t, newStore(t)) })
	t.Run("ListProjects", func(t *testing.T) { testListProjects(t, newStore(t)) })
	t.Run("ParseID", func(t *testing.T) { testParseID(t, newStore(t)) })
}

func create(t *testing.T, s store.Store, project, title, assignee string, at time.Time) models.Issue {
	t.Helper()
	is := models.NewIssue(title, "text of "+title, "tester", assignee, "", at)
	require.NoError(t, s.CreateIssue(context.Background(), project, &is))
	require.NotEmpty(t, is.ID)
	return is
}

// AssertSameIssue compares two issues field by field, timestamps by instant.
func AssertSameIssue(t *testing.T, want, got models.Issue) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Text, got.Text)
	assert.Equal(t, want.CreatedBy, got.CreatedBy)
	assert.Equal(t, want.AssignedTo, got.AssignedTo)
	assert.Equal(t, want.StatusText, got.StatusText)
	assert.Equal(t, want.Open, got.Open)
	assert.True(t, want.CreatedOn.Equal(got.CreatedOn), "created_on: want %v, got %v", want.CreatedOn, got.CreatedOn)
	assert.True(t, want.UpdatedOn.Equal(got.UpdatedOn), "updated_on: want %v, got %v", want.UpdatedOn, got.UpdatedOn)
}

func ids(issues []models.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, is := range issues {
		out = append(out, is.ID)
	}
	return out
}

func testCreateAndFindProject(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.FindProjectByName(ctx, "alpha")
	assert.ErrorIs(t, err, store.ErrNotFound)

	first := create(t, s, "alpha", "first", "", base)
	second := create(t, s, "alpha", "second", "sam", base.Add(time.Second))
	create(t, s, "beta", "other", "", base)
	assert.NotEqual(t, first.ID, second.ID)

	p, err := s.FindProjectByName(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", p.Name)
	require.Len(t, p.Issues, 2)
	AssertSameIssue(t, first, p.Issues[0])
	AssertSameIssue(t, second, p.Issues[1])
	assert.True(t, p.Issues[0].Open)
}

func testFindIssueScoped(t *testing.T, s store.Store) {
	ctx := context.Background()
	is := create(t, s, "alpha", "scoped", "", base)
	create(t, s, "beta", "elsewhere", "", base)

	got, err := s.FindIssue(ctx, "alpha", is.ID)
	require.NoError(t, err)
	AssertSameIssue(t, is, *got)

	_, err = s.FindIssue(ctx, "beta", is.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.FindIssue(ctx, "missing", is.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.FindIssue(ctx, "alpha", "hgishgushgo")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdateIssue(t *testing.T, s store.Store) {
	ctx := context.Background()
	is := create(t, s, "alpha", "before", "", base)
	other := create(t, s, "alpha", "untouched", "", base)

	is.Text = "after"
	is.Open = false
	is.UpdatedOn = base.Add(time.Minute)
	require.NoError(t, s.UpdateIssue(ctx, "alpha", &is))

	got, err := s.FindIssue(ctx, "alpha", is.ID)
	require.NoError(t, err)
	AssertSameIssue(t, is, *got)

	untouched, err := s.FindIssue(ctx, "alpha", other.ID)
	require.NoError(t, err)
	AssertSameIssue(t, other, *untouched)

	assert.ErrorIs(t, s.UpdateIssue(ctx, "beta", &is), store.ErrNotFound)

	ghost := is
	ghost.ID = "not-an-id"
	assert.ErrorIs(t, s.UpdateIssue(ctx, "alpha", &ghost), store.ErrNotFound)
}

func testDeleteIssue(t *testing.T, s store.Store) {
	ctx := context.Background()
	keep := create(t, s, "alpha", "keep", "", base)
	drop := create(t, s, "alpha", "drop", "", base)

	require.NoError(t, s.DeleteIssue(ctx, drop.ID))
	assert.ErrorIs(t, s.DeleteIssue(ctx, drop.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteIssue(ctx, "fhsafajfa"), store.ErrNotFound)

	p, err := s.FindProjectByName(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, ids(p.Issues))

	_, err = s.FindIssue(ctx, "alpha", drop.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	t.Run("by id alone", func(t *testing.T) {
		moved := create(t, s, "gamma", "elsewhere", "", base)
		require.NoError(t, s.DeleteIssue(ctx, moved.ID))

		p, err := s.FindProjectByName(ctx, "gamma")
		require.NoError(t, err)
		assert.Empty(t, p.Issues)

		summaries, err := s.ListProjects(ctx)
		require.NoError(t, err)
		for _, sum := range summaries {
			if sum.Name == "gamma" {
				assert.Zero(t, sum.IssueCount)
			}
		}
	})
}

func testFilterIssues(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := create(t, s, "alpha", "a", "joe", base)
	b := create(t, s, "alpha", "b", "joe", base.Add(time.Second))
	c := create(t, s, "alpha", "c", "ann", base.Add(2*time.Second))
	create(t, s, "beta", "a", "joe", base)

	b.Open = false
	b.StatusText = "done"
	require.NoError(t, s.UpdateIssue(ctx, "alpha", &b))

	all, err := s.FilterIssues(ctx, "alpha", models.IssueFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(all))

	joe := "joe"
	got, err := s.FilterIssues(ctx, "alpha", models.IssueFilter{AssignedTo: &joe})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, ids(got))

	open := true
	got, err = s.FilterIssues(ctx, "alpha", models.IssueFilter{AssignedTo: &joe, Open: &open})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, ids(got))

	closed := false
	done := "done"
	got, err = s.FilterIssues(ctx, "alpha", models.IssueFilter{Open: &closed, StatusText: &done})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(got))

	got, err = s.FilterIssues(ctx, "alpha", models.IssueFilter{ID: &c.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	AssertSameIssue(t, c, got[0])

	createdOn := base.Add(time.Second)
	got, err = s.FilterIssues(ctx, "alpha", models.IssueFilter{CreatedOn: &createdOn})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(got))

	title := "a"
	got, err = s.FilterIssues(ctx, "alpha", models.IssueFilter{Title: &title, AssignedTo: &joe, Open: &closed})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.FilterIssues(ctx, "alpha", models.IssueFilter{Unmatchable: true})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.FilterIssues(ctx, "missing", models.IssueFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testListProjects(t *testing.T, s store.Store) {
	ctx := context.Background()
	create(t, s, "alpha", "a", "", base)
	b := create(t, s, "alpha", "b", "", base)
	create(t, s, "beta", "c", "", base)

	b.Open = false
	require.NoError(t, s.UpdateIssue(ctx, "alpha", &b))

	got, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.ProjectSummary{
		{Name: "alpha", IssueCount: 2, OpenCount: 1},
		{Name: "beta", IssueCount: 1, OpenCount: 1},
	}, got)
}

func testParseID(t *testing.T, s store.Store) {
	is := create(t, s, "alpha", "a", "", base)

	id, ok := s.ParseID(is.ID)
	assert.True(t, ok)
	assert.Equal(t, is.ID, id)

	_, ok = s.ParseID("hgishgushgo")
	assert.False(t, ok)
	_, ok = s.ParseID("")
	assert.False(t, ok)
}
