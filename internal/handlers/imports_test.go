package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"issue-tracker-api/internal/store/memory"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

func newRouter(h *ImportsHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/issues/{project}/import", h.UploadExcel)
	return r
}

func issueWorkbook(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Issues")
	require.NoError(t, err)
	for _, values := range append([][]string{{"Title", "Text", "Created By", "Assigned To"}}, rows...) {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, file.Write(buf))
	return buf.Bytes()
}

func upload(t *testing.T, router http.Handler, project, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		fw, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/issues/"+project+"/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestImportsHandler_UploadExcel(t *testing.T) {
	t.Run("Rejects non-multipart content type", func(t *testing.T) {
		router := newRouter(NewImportsHandler(memory.New(), 0, ""))
		req := httptest.NewRequest(http.MethodPost, "/api/issues/apitest/import", nil)
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "content-type must be multipart/form-data")
	})

	t.Run("Rejects missing file", func(t *testing.T) {
		router := newRouter(NewImportsHandler(memory.New(), 0, ""))
		w := upload(t, router, "apitest", "", nil, map[string]string{"dry_run": "true"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "file is required")
	})

	t.Run("Rejects non-xlsx file", func(t *testing.T) {
		router := newRouter(NewImportsHandler(memory.New(), 0, ""))
		w := upload(t, router, "apitest", "issues.xls", []byte("fake excel content"), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "only .xlsx files are accepted")
	})

	t.Run("Reports unreadable workbook", func(t *testing.T) {
		router := newRouter(NewImportsHandler(memory.New(), 0, ""))
		w := upload(t, router, "apitest", "issues.xlsx", []byte("fake excel content"), nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "IMPORT_FAILED")
	})

	t.Run("Imports rows into the project", func(t *testing.T) {
		st := memory.New()
		router := newRouter(NewImportsHandler(st, 0, ""))
		book := issueWorkbook(t,
			[]string{"Crash on save", "stack trace attached", "alice", "bob"},
			[]string{"Typo", "footer", "carol", ""},
		)

		w := upload(t, router, "apitest", "issues.xlsx", book, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Data struct {
				Project string `json:"project"`
				Created int    `json:"created"`
				DryRun  bool   `json:"dry_run"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "apitest", resp.Data.Project)
		assert.Equal(t, 2, resp.Data.Created)
		assert.False(t, resp.Data.DryRun)

		p, err := st.FindProjectByName(context.Background(), "apitest")
		require.NoError(t, err)
		require.Len(t, p.Issues, 2)
		assert.Equal(t, "Crash on save", p.Issues[0].Title)
		assert.Equal(t, "bob", p.Issues[0].AssignedTo)
		assert.True(t, p.Issues[1].Open)
	})

	t.Run("Dry run leaves the store untouched", func(t *testing.T) {
		st := memory.New()
		router := newRouter(NewImportsHandler(st, 0, ""))
		book := issueWorkbook(t, []string{"Crash", "details", "alice", ""})

		w := upload(t, router, "apitest", "issues.xlsx", book, map[string]string{"dry_run": "true"})
		require.Equal(t, http.StatusOK, w.Code)

		projects, err := st.ListProjects(context.Background())
		require.NoError(t, err)
		assert.Empty(t, projects)
	})

	t.Run("Uses the configured mapping file", func(t *testing.T) {
		mapping := filepath.Join(t.TempDir(), "mapping.yaml")
		require.NoError(t, os.WriteFile(mapping, []byte(`version: 1
defaults:
  status_text: imported
sheets:
  "*":
    columns:
      Title: issue_title
      Text: issue_text
      Created By: created_by
`), 0o600))

		st := memory.New()
		router := newRouter(NewImportsHandler(st, 0, mapping))
		book := issueWorkbook(t, []string{"Crash", "details", "alice", "bob"})

		w := upload(t, router, "apitest", "issues.xlsx", book, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		p, err := st.FindProjectByName(context.Background(), "apitest")
		require.NoError(t, err)
		require.Len(t, p.Issues, 1)
		assert.Equal(t, "imported", p.Issues[0].StatusText)
		assert.Equal(t, "", p.Issues[0].AssignedTo, "Assigned To is not mapped")
	})

	t.Run("Reports an unreadable mapping file", func(t *testing.T) {
		router := newRouter(NewImportsHandler(memory.New(), 0, filepath.Join(t.TempDir(), "missing.yaml")))
		book := issueWorkbook(t, []string{"Crash", "details", "alice", ""})

		w := upload(t, router, "apitest", "issues.xlsx", book, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "mapping")
	})

	t.Run("Rejects oversized uploads", func(t *testing.T) {
		router := newRouter(NewImportsHandler(memory.New(), 64, ""))
		w := upload(t, router, "apitest", "issues.xlsx", bytes.Repeat([]byte("x"), 1024), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestIsXLSX(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected bool
	}{
		{"Valid xlsx", "test.xlsx", true},
		{"Valid xlsx uppercase", "TEST.XLSX", true},
		{"Valid xlsx mixed case", "Test.XlSx", true},
		{"Invalid xls", "test.xls", false},
		{"Invalid xlsm", "test.xlsm", false},
		{"Invalid txt", "test.txt", false},
		{"No extension", "test", false},
		{"Empty filename", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := &multipart.FileHeader{
				Filename: tt.filename,
			}
			assert.Equal(t, tt.expected, isXLSX(header))
		})
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "test",
		"count":   42,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "test", response["message"])
	assert.Equal(t, float64(42), response["count"])
}
