// Package sqlstore keeps projects and issues in two relational tables.
// Issues carry an insertion sequence, so project views are ordered on read.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"issue-tracker-api/internal/models"
	"issue-tracker-api/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var _ store.Store = (*Store)(nil)

const issueColumns = `id, issue_title, issue_text, created_by, assigned_to, status_text, open, created_on, updated_on`

type Store struct {
	db      *sql.DB
	dialect Dialect
	closers []func()
}

// New wraps an open database. Call Migrate before first use on an empty database.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// OpenPostgres connects through a pgx pool, or through lib/pq when driver is "pq".
func OpenPostgres(ctx context.Context, dsn, driver string) (*Store, error) {
	if driver == "pq" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		return New(db, Postgres), nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := New(stdlib.OpenDBFromPool(pool), Postgres)
	s.closers = append(s.closers, pool.Close)
	return s, nil
}

// OpenSQLite opens (or creates) a database file. ":memory:" keeps everything in process.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "issues.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A second connection to ":memory:" would see a different database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return New(db, SQLite), nil
}

// Migrate creates the tables and indexes if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range splitStatements(s.dialect.schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

// Reset drops the issue tables and reapplies the schema. Test databases only.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"issues", "projects"} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return s.Migrate(ctx)
}

func (s *Store) newQuery() *query {
	return &query{d: s.dialect}
}

// projectScope selects the id of the first project with the given name.
func (s *Store) projectScope(q *query, name string) string {
	return "(SELECT id FROM projects WHERE name = " + q.arg(name) + " ORDER BY id LIMIT 1)"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (models.Issue, error) {
	var is models.Issue
	err := row.Scan(&is.ID, &is.Title, &is.Text, &is.CreatedBy, &is.AssignedTo, &is.StatusText,
		&is.Open, timeColumn{&is.CreatedOn}, timeColumn{&is.UpdatedOn})
	return is, err
}

func (s *Store) selectIssues(ctx context.Context, q *query, clauses []string) ([]models.Issue, error) {
	sqlStr := "SELECT " + issueColumns + " FROM issues WHERE " + strings.Join(clauses, " AND ") + " ORDER BY seq"
	rows, err := s.db.QueryContext(ctx, sqlStr, q.args...)
	if err != nil {
		return nil, fmt.Errorf("select issues: %w", err)
	}
	defer rows.Close()

	out := []models.Issue{}
	for rows.Next() {
		is, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		out = append(out, is)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return out, nil
}

func (s *Store) FindProjectByName(ctx context.Context, name string) (*models.Project, error) {
	q := s.newQuery()
	var id int64
	p := &models.Project{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name FROM projects WHERE name = "+q.arg(name)+" ORDER BY id LIMIT 1", q.args...).
		Scan(&id, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select project: %w", err)
	}

	q = s.newQuery()
	p.Issues, err = s.selectIssues(ctx, q, []string{"project_id = " + q.arg(id)})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]models.ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.name, COUNT(i.id), COALESCE(SUM(CASE WHEN i.open THEN 1 ELSE 0 END), 0)
		FROM projects p
		LEFT JOIN issues i ON i.project_id = p.id
		GROUP BY p.id, p.name
		ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	defer rows.Close()

	out := []models.ProjectSummary{}
	for rows.Next() {
		var sum models.ProjectSummary
		if err := rows.Scan(&sum.Name, &sum.IssueCount, &sum.OpenCount); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) CreateIssue(ctx context.Context, name string, issue *models.Issue) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	q := s.newQuery()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO projects (name) VALUES ("+q.arg(name)+") ON CONFLICT (name) DO NOTHING", q.args...); err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}

	id := uuid.NewString()
	q = s.newQuery()
	sqlStr := fmt.Sprintf(`
		INSERT INTO issues (id, project_id, issue_title, issue_text, created_by, assigned_to, status_text, open, created_on, updated_on)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		q.arg(id), s.projectScope(q, name), q.arg(issue.Title), q.arg(issue.Text), q.arg(issue.CreatedBy),
		q.arg(issue.AssignedTo), q.arg(issue.StatusText), q.arg(issue.Open),
		q.arg(s.dialect.encodeTime(issue.CreatedOn)), q.arg(s.dialect.encodeTime(issue.UpdatedOn)))
	if _, err := tx.ExecContext(ctx, sqlStr, q.args...); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	issue.ID = id
	return nil
}

func (s *Store) FindIssue(ctx context.Context, name, id string) (*models.Issue, error) {
	id, ok := s.ParseID(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	q := s.newQuery()
	sqlStr := "SELECT " + issueColumns + " FROM issues WHERE id = " + q.arg(id) +
		" AND project_id = " + s.projectScope(q, name)
	is, err := scanIssue(s.db.QueryRowContext(ctx, sqlStr, q.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select issue: %w", err)
	}
	return &is, nil
}

func (s *Store) UpdateIssue(ctx context.Context, name string, issue *models.Issue) error {
	id, ok := s.ParseID(issue.ID)
	if !ok {
		return store.ErrNotFound
	}
	q := s.newQuery()
	sqlStr := fmt.Sprintf(`
		UPDATE issues
		SET issue_title = %s, issue_text = %s, created_by = %s, assigned_to = %s,
		    status_text = %s, open = %s, updated_on = %s
		WHERE id = %s AND project_id = %s`,
		q.arg(issue.Title), q.arg(issue.Text), q.arg(issue.CreatedBy), q.arg(issue.AssignedTo),
		q.arg(issue.StatusText), q.arg(issue.Open), q.arg(s.dialect.encodeTime(issue.UpdatedOn)),
		q.arg(id), s.projectScope(q, name))
	res, err := s.db.ExecContext(ctx, sqlStr, q.args...)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update issue: %w", err)
	} else if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteIssue(ctx context.Context, id string) error {
	id, ok := s.ParseID(id)
	if !ok {
		return store.ErrNotFound
	}
	q := s.newQuery()
	res, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE id = "+q.arg(id), q.args...)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete issue: %w", err)
	} else if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FilterIssues(ctx context.Context, name string, f models.IssueFilter) ([]models.Issue, error) {
	if f.Unmatchable {
		return []models.Issue{}, nil
	}
	q := s.newQuery()
	clauses := []string{"project_id = " + s.projectScope(q, name)}

	text := []struct {
		column string
		value  *string
	}{
		{"id", f.ID},
		{"issue_title", f.Title},
		{"issue_text", f.Text},
		{"created_by", f.CreatedBy},
		{"assigned_to", f.AssignedTo},
		{"status_text", f.StatusText},
	}
	for _, c := range text {
		if c.value != nil {
			clauses = append(clauses, c.column+" = "+q.arg(*c.value))
		}
	}
	if f.Open != nil {
		clauses = append(clauses, "open = "+q.arg(*f.Open))
	}
	if f.CreatedOn != nil {
		clauses = append(clauses, "created_on = "+q.arg(s.dialect.encodeTime(*f.CreatedOn)))
	}
	if f.UpdatedOn != nil {
		clauses = append(clauses, "updated_on = "+q.arg(s.dialect.encodeTime(*f.UpdatedOn)))
	}
	return s.selectIssues(ctx, q, clauses)
}

// ParseID accepts any UUID spelling and returns its canonical form.
func (s *Store) ParseID(raw string) (string, bool) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	err := s.db.Close()
	for _, c := range s.closers {
		c()
	}
	return err
}
