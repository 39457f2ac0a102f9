package memory

import (
	"context"
	"sync"
	"testing"

	"issue-tracker-api/internal/models"
	"issue-tracker-api/internal/store"
	"issue-tracker-api/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestParseIDCanonicalizes(t *testing.T) {
	s := New()
	id, ok := s.ParseID("6BA7B810-9DAD-11D1-80B4-00C04FD430C8")
	assert.True(t, ok)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id)
}

func TestFindProjectReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	is := models.NewIssue("t", "x", "me", "", "", models.Now())
	require.NoError(t, s.CreateIssue(ctx, "p", &is))

	p, err := s.FindProjectByName(ctx, "p")
	require.NoError(t, err)
	p.Issues[0].Title = "mutated"

	got, err := s.FindIssue(ctx, "p", is.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
}

func TestConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			is := models.NewIssue("t", "x", "me", "", "", models.Now())
			assert.NoError(t, s.CreateIssue(ctx, "busy", &is))
		}()
	}
	wg.Wait()

	p, err := s.FindProjectByName(ctx, "busy")
	require.NoError(t, err)
	assert.Len(t, p.Issues, 50)

	all, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
