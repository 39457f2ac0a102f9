package sqlstore

import (
	_ "embed"
	"fmt"
	"strings"
	"time"
)

//go:embed schema_postgres.sql
var postgresSchema string

//go:embed schema_sqlite.sql
var sqliteSchema string

// sqliteTimeLayout is fixed width so stored timestamps compare as plain text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Dialect captures what differs between the SQL engines we run on.
type Dialect struct {
	Name        string
	schema      string
	placeholder func(n int) string
	encodeTime  func(t time.Time) any
}

var Postgres = Dialect{
	Name:        "postgres",
	schema:      postgresSchema,
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	encodeTime:  func(t time.Time) any { return t.UTC() },
}

var SQLite = Dialect{
	Name:        "sqlite",
	schema:      sqliteSchema,
	placeholder: func(int) string { return "?" },
	encodeTime:  func(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) },
}

// query collects positional arguments while a statement is being built.
type query struct {
	d    Dialect
	args []any
}

// arg records v and returns its placeholder.
func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return q.d.placeholder(len(q.args))
}

// splitStatements breaks a schema file into individual statements.
func splitStatements(schema string) []string {
	parts := strings.Split(schema, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// timeColumn scans TIMESTAMPTZ values and the text form SQLite stores.
type timeColumn struct {
	t *time.Time
}

var timeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func (c timeColumn) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case time.Time:
		*c.t = v.UTC()
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			*c.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", raw)
}
