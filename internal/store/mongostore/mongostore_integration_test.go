//go:build integration

package mongostore_test

import (
	"testing"

	"issue-tracker-api/internal/store"
	"issue-tracker-api/internal/store/storetest"
	"issue-tracker-api/internal/testutil"
)

func TestMongoStore(t *testing.T) {
	testutil.RequireIntegration(t)
	storetest.Run(t, func(t *testing.T) store.Store { return testutil.NewMongoStore(t) })
}
