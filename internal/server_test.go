package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"issue-tracker-api/internal/store/memory"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	s := NewServer(memory.New(), testConfig())
	w := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestDBPing(t *testing.T) {
	t.Run("healthy store", func(t *testing.T) {
		w := get(t, NewServer(memory.New(), testConfig()), "/dbping")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "db: ok", w.Body.String())
	})

	t.Run("store down", func(t *testing.T) {
		w := get(t, NewServer(brokenStore{memory.New()}, testConfig()), "/dbping")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "db: store down")
	})
}

func TestListProjects(t *testing.T) {
	s := newTestServer(t, memory.New())
	createIssue(t, s, "beta", required("one"))
	createIssue(t, s, "alpha", required("two"))
	closed := createIssue(t, s, "beta", required("three"))
	send(t, s, http.MethodPut, "/api/issues/beta", map[string]any{"_id": closed.ID, "open": false})

	w := get(t, s, "/api/projects")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[
		{"name":"beta","issue_count":2,"open_count":1},
		{"name":"alpha","issue_count":1,"open_count":1}
	]`, w.Body.String())

	t.Run("store down", func(t *testing.T) {
		w := get(t, NewServer(brokenStore{memory.New()}, testConfig()), "/api/projects")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestDocsToggle(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := NewServer(memory.New(), testConfig())
		assert.Equal(t, http.StatusNotFound, get(t, s, "/openapi.yaml").Code)
		assert.Equal(t, http.StatusNotFound, get(t, s, "/docs").Code)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableSwagger = true
		s := NewServer(memory.New(), cfg)

		w := get(t, s, "/openapi.yaml")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/x-yaml", w.Header().Get("Content-Type"))

		var doc struct {
			OpenAPI string                    `yaml:"openapi"`
			Paths   map[string]map[string]any `yaml:"paths"`
		}
		require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &doc))
		assert.NotEmpty(t, doc.OpenAPI)
		require.Contains(t, doc.Paths, "/api/issues/{project}")
		for _, method := range []string{"get", "post", "put", "delete"} {
			assert.Contains(t, doc.Paths["/api/issues/{project}"], method)
		}

		w = get(t, s, "/docs")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "swagger-ui")
	})
}

func TestMetricsToggle(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := NewServer(memory.New(), testConfig())
		assert.Equal(t, http.StatusNotFound, get(t, s, "/metrics").Code)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableMetrics = true
		s := NewServer(memory.New(), cfg)

		get(t, s, "/api/issues/apitest")
		w := get(t, s, "/metrics")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `path="/api/issues/{project}`)
		assert.Contains(t, w.Body.String(), `issues_operations_total{op="list",outcome="not_found"} 1`)
	})
}

func TestRequestTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool
	router := chi.NewRouter()
	router.Use(withRequestTimeout(time.Minute))
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	t.Run("zero disables", func(t *testing.T) {
		h := withRequestTimeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok = r.Context().Deadline()
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.False(t, ok)
	})
}

func TestServerClose(t *testing.T) {
	s := NewServer(memory.New(), testConfig())
	assert.NoError(t, s.Close(context.Background()))
}

func TestErrorBodiesAreSingleJSONObjects(t *testing.T) {
	s := newTestServer(t, memory.New())
	w := send(t, s, http.MethodPut, "/api/issues/apitest", map[string]any{})

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"error": "missing _id"}, body)
}
