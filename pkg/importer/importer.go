package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"issue-tracker-api/internal/models"

	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"
)

// IssueCreator is the slice of the store the importer writes through.
type IssueCreator interface {
	CreateIssue(ctx context.Context, project string, issue *models.Issue) error
}

// ImportOptions defines the configuration for workbook import operations
type ImportOptions struct {
	Project     string
	MappingPath string // empty means DefaultMapping
	DryRun      bool
	MaxErrors   int // default 50
	Now         func() time.Time
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name    string     `json:"name"`
	Created int        `json:"created"`
	Skipped int        `json:"skipped"`
	Errors  int        `json:"errors"`
	Samples []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Project string         `json:"project"`
	Created int            `json:"created"`
	Skipped int            `json:"skipped"`
	Errors  int            `json:"errors"`
	Sheets  []SheetSummary `json:"sheets"`
	DryRun  bool           `json:"dry_run"`
}

// Issue fields a column may map to.
const (
	FieldTitle      = "issue_title"
	FieldText       = "issue_text"
	FieldCreatedBy  = "created_by"
	FieldAssignedTo = "assigned_to"
	FieldStatusText = "status_text"
	FieldOpen       = "open"
)

var knownFields = map[string]bool{
	FieldTitle: true, FieldText: true, FieldCreatedBy: true,
	FieldAssignedTo: true, FieldStatusText: true, FieldOpen: true,
}

// MappingConfig represents the YAML mapping configuration
type MappingConfig struct {
	Version  int                    `yaml:"version"`
	Defaults map[string]string      `yaml:"defaults"`
	Sheets   map[string]SheetConfig `yaml:"sheets"` // "*" applies to sheets not listed by name
}

// SheetConfig maps header names to issue fields. Header matching ignores case.
type SheetConfig struct {
	Columns map[string]string   `yaml:"columns"`
	Aliases map[string][]string `yaml:"aliases"`
}

// DefaultMapping reads every sheet with the headers the issue form uses.
func DefaultMapping() *MappingConfig {
	return &MappingConfig{
		Version: 1,
		Sheets: map[string]SheetConfig{
			"*": {
				Columns: map[string]string{
					"Title":       FieldTitle,
					"Text":        FieldText,
					"Created By":  FieldCreatedBy,
					"Assigned To": FieldAssignedTo,
					"Status":      FieldStatusText,
					"Open":        FieldOpen,
				},
				Aliases: map[string][]string{
					"Title":       {"issue_title", "Summary"},
					"Text":        {"issue_text", "Description"},
					"Created By":  {"created_by", "Reporter"},
					"Assigned To": {"assigned_to", "Assignee"},
					"Status":      {"status_text"},
				},
			},
		},
	}
}

// LoadMapping reads a YAML mapping file. An empty path returns DefaultMapping.
func LoadMapping(path string) (*MappingConfig, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes and checks a YAML mapping document.
func ParseMapping(data []byte) (*MappingConfig, error) {
	var m MappingConfig
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if len(m.Sheets) == 0 {
		return nil, fmt.Errorf("mapping has no sheets")
	}
	for field := range m.Defaults {
		if !knownFields[field] {
			return nil, fmt.Errorf("unknown default field %q", field)
		}
	}
	for name, sc := range m.Sheets {
		for header, field := range sc.Columns {
			if !knownFields[field] {
				return nil, fmt.Errorf("sheet %q: column %q maps to unknown field %q", name, header, field)
			}
		}
	}
	return &m, nil
}

func (m *MappingConfig) sheet(name string) (SheetConfig, bool) {
	if sc, ok := m.Sheets[name]; ok {
		return sc, true
	}
	sc, ok := m.Sheets["*"]
	return sc, ok
}

// ImportExcel reads an .xlsx workbook and creates one issue per data row.
// The first row of each sheet holds the headers.
func ImportExcel(ctx context.Context, dst IssueCreator, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{
		Project: opts.Project,
		DryRun:  opts.DryRun,
		Sheets:  []SheetSummary{},
	}
	if opts.Project == "" {
		return summary, fmt.Errorf("project is required")
	}
	if opts.MaxErrors == 0 {
		opts.MaxErrors = 50
	}
	if opts.Now == nil {
		opts.Now = models.Now
	}

	mapping, err := LoadMapping(opts.MappingPath)
	if err != nil {
		return summary, fmt.Errorf("failed to load mapping config: %w", err)
	}

	// xlsx needs the whole file in memory
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("failed to open Excel file: %w", err)
	}

	for _, sheet := range xlFile.Sheets {
		sc, ok := mapping.sheet(sheet.Name)
		if !ok {
			continue
		}

		sheetSummary := processSheet(ctx, dst, sheet, sc, mapping.Defaults, opts)
		summary.Sheets = append(summary.Sheets, sheetSummary)
		summary.Created += sheetSummary.Created
		summary.Skipped += sheetSummary.Skipped
		summary.Errors += sheetSummary.Errors

		if summary.Errors > opts.MaxErrors {
			return summary, fmt.Errorf("too many errors (%d), stopping import", summary.Errors)
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

// headerFields maps column indexes to issue fields using the header row.
func headerFields(sheet *xlsx.Sheet, sc SheetConfig) (map[int]string, error) {
	lookup := make(map[string]string)
	for header, field := range sc.Columns {
		lookup[strings.ToUpper(header)] = field
		for _, alias := range sc.Aliases[header] {
			lookup[strings.ToUpper(alias)] = field
		}
	}

	cols := make(map[int]string)
	for c := 0; c < sheet.MaxCol; c++ {
		cell, err := sheet.Cell(0, c)
		if err != nil {
			return nil, err
		}
		name := strings.ToUpper(strings.TrimSpace(cell.String()))
		if field, ok := lookup[name]; ok {
			cols[c] = field
		}
	}
	return cols, nil
}

func processSheet(ctx context.Context, dst IssueCreator, sheet *xlsx.Sheet, sc SheetConfig, defaults map[string]string, opts ImportOptions) SheetSummary {
	summary := SheetSummary{Name: sheet.Name}
	addError := func(row int, msg string) {
		summary.Errors++
		summary.Samples = append(summary.Samples, RowError{Sheet: sheet.Name, Row: row, Message: msg})
	}

	if sheet.MaxRow == 0 {
		return summary
	}
	cols, err := headerFields(sheet, sc)
	if err != nil {
		addError(1, "Failed to read header row: "+err.Error())
		return summary
	}
	if len(cols) == 0 {
		addError(1, "no mapped columns in header row")
		return summary
	}

	for r := 1; r < sheet.MaxRow; r++ {
		if ctx.Err() != nil {
			return summary
		}

		values := make(map[string]string)
		for c, field := range cols {
			cell, err := sheet.Cell(r, c)
			if err != nil {
				continue
			}
			if v := strings.TrimSpace(cell.String()); v != "" {
				values[field] = v
			}
		}
		if len(values) == 0 {
			summary.Skipped++
			continue
		}

		issue, err := buildIssue(values, defaults, opts.Now())
		if err != nil {
			addError(r+1, err.Error())
			continue
		}
		if !opts.DryRun {
			if err := dst.CreateIssue(ctx, opts.Project, &issue); err != nil {
				addError(r+1, err.Error())
				continue
			}
		}
		summary.Created++
	}
	return summary
}

func buildIssue(values, defaults map[string]string, now time.Time) (models.Issue, error) {
	get := func(field string) string {
		if v := values[field]; v != "" {
			return v
		}
		return defaults[field]
	}

	title, text, createdBy := get(FieldTitle), get(FieldText), get(FieldCreatedBy)
	if title == "" || text == "" || createdBy == "" {
		return models.Issue{}, fmt.Errorf("required field(s) missing")
	}

	issue := models.NewIssue(title, text, createdBy, get(FieldAssignedTo), get(FieldStatusText), now)
	if raw := get(FieldOpen); raw != "" {
		open, err := parseBool(raw)
		if err != nil {
			return models.Issue{}, err
		}
		issue.Open = open
	}
	return issue, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "yes", "y", "true", "1", "open":
		return true, nil
	case "no", "n", "false", "0", "closed":
		return false, nil
	}
	return false, fmt.Errorf("invalid open value: %s", value)
}
