// Package gormstore is a reference metastore.Client backed by gorm and a
// pure-Go SQLite driver (modernc.org/sqlite), for tests and single-node
// deployments that don't have a real Hive/Impala metastore to talk to.
// The Dialector here follows the same shape as the teacher's own
// gorm.Dialector (pkg/api/gorm/dialect.go) — a struct wrapping a
// *sql.DB, an Initialize that installs it as GORM's ConnPool and
// registers default callbacks, and the handful of dialect-specific hooks
// GORM needs (quoting, bind vars, column types) — adapted from MySQL
// quoting/placeholders to SQLite's.
package gormstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"gorm.io/gorm"
	"gorm.io/gorm/callbacks"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/migrator"
	"gorm.io/gorm/schema"
)

// Dialector is a minimal gorm.Dialector over modernc.org/sqlite.
type Dialector struct {
	DSN  string
	conn *sql.DB
}

// newDialector builds a gorm.Dialector for the given modernc.org/sqlite
// DSN (a file path, or ":memory:" / "file::memory:?cache=shared" for
// in-memory).
func newDialector(dsn string) *Dialector {
	return &Dialector{DSN: dsn}
}

func (d *Dialector) Name() string { return "sqlite" }

// Initialize opens the underlying connection and wires GORM's default
// Create/Query/Update/Delete/Row/Raw callbacks, the same pairing the
// teacher's dialect.go performs for its in-process engine.
func (d *Dialector) Initialize(db *gorm.DB) error {
	conn, err := sql.Open("sqlite", d.DSN)
	if err != nil {
		return fmt.Errorf("gormstore: open sqlite %q: %w", d.DSN, err)
	}
	d.conn = conn
	db.ConnPool = conn
	callbacks.RegisterDefaultCallbacks(db, &callbacks.Config{})
	return nil
}

// Migrator returns GORM's generic SQL migrator, which SQLite's ANSI-ish
// DDL supports without dialect-specific overrides for the append-only
// schemas this package migrates (no column drops/renames).
func (d *Dialector) Migrator(db *gorm.DB) gorm.Migrator {
	return migrator.Migrator{Config: migrator.Config{
		DB:                          db,
		Dialector:                   d,
		CreateIndexAfterCreateTable: true,
	}}
}

// DataTypeOf maps GORM schema field types to SQLite column affinities.
func (d *Dialector) DataTypeOf(field *schema.Field) string {
	switch field.DataType {
	case schema.Bool, schema.Int, schema.Uint:
		return "integer"
	case schema.Float:
		return "real"
	case schema.String:
		return "text"
	case schema.Time:
		return "datetime"
	case schema.Bytes:
		return "blob"
	default:
		return "text"
	}
}

// DefaultValueOf returns a clause expression for a field's default value.
func (d *Dialector) DefaultValueOf(field *schema.Field) clause.Expression {
	if field.DefaultValue != "" {
		return clause.Expr{SQL: "DEFAULT"}
	}
	return nil
}

// BindVarTo writes a `?` placeholder (SQLite's native style).
func (d *Dialector) BindVarTo(writer clause.Writer, _ *gorm.Statement, _ interface{}) {
	writer.WriteByte('?')
}

// QuoteTo quotes an identifier with double quotes (SQLite/ANSI style).
func (d *Dialector) QuoteTo(writer clause.Writer, str string) {
	writer.WriteByte('"')
	writer.WriteString(str)
	writer.WriteByte('"')
}

// Explain returns a human-readable version of the SQL with bound parameters.
func (d *Dialector) Explain(sql string, vars ...interface{}) string {
	return fmt.Sprintf("%s %v", sql, vars)
}

// Close releases the underlying connection.
func (d *Dialector) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
