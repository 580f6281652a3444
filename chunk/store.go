package chunk

import (
	"context"

	"github.com/joeycumines/go-replicore/dbmsevent"
)

type (
	// KeyKind classifies a primary key column's suitability for numeric
	// chunking.
	KeyKind int

	// PrimaryKey describes the single column a table is chunked on.
	PrimaryKey struct {
		Column string
		Kind   KeyKind
	}

	// Store is the store query interface consumed by the planner: schema
	// enumeration with a system-schema predicate, table metadata, and
	// arbitrary read-only SQL execution for the (MIN, MAX, COUNT) probe.
	// Modeled on the teacher's export.Reader/export.Rows pair. A *sql.Rows
	// satisfies Rows directly; a *sql.DB does not satisfy Store, since it
	// has no enumeration methods and its QueryContext returns *sql.Rows.
	Store interface {
		// Schemas lists every schema the connection can see.
		Schemas(ctx context.Context) ([]string, error)
		// IsSystemSchema reports whether schema should be skipped during
		// enumeration (information_schema, mysql, etc.).
		IsSystemSchema(schema string) bool
		// Tables lists every table in schema.
		Tables(ctx context.Context, schema string) ([]string, error)
		// PrimaryKey returns the table's chunking column, if it has exactly
		// one. ok is false for an absent or composite key.
		PrimaryKey(ctx context.Context, table dbmsevent.Table) (pk PrimaryKey, ok bool, err error)
		// QueryContext executes a read-only query, returning rows in the
		// same shape as database/sql.
		QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	}

	// Rows mirrors the subset of database/sql.Rows the planner needs to
	// scan a probe result.
	Rows interface {
		Close() error
		Next() bool
		Scan(dest ...any) error
		Err() error
	}
)

const (
	KeyUnsupported KeyKind = iota
	KeyInteger
	KeyDecimal
)

func (k KeyKind) String() string {
	switch k {
	case KeyInteger:
		return `integer`
	case KeyDecimal:
		return `decimal`
	default:
		return `unsupported`
	}
}
