// Package catalog resolves schema metadata from a connected database and
// validates source/target table compatibility before any data movement.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a schema or table does not exist.
var ErrNotFound = errors.New("not found")

// Column describes one column of a table.
type Column struct {
	Name     string
	Ordinal  int
	DataType string
	Nullable bool
}

// Table describes one table: schema, name and its ordered columns.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
}

// QualifiedName returns schema.table for logs and errors.
func (t Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// Column returns the column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declared order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// TypesByName returns a name → declared type map.
func (t Table) TypesByName() map[string]string {
	types := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		types[c.Name] = c.DataType
	}
	return types
}

// Resolver reads catalog metadata from one database.
type Resolver struct {
	pool *pgxpool.Pool
}

// NewResolver creates a resolver over the given pool.
func NewResolver(pool *pgxpool.Pool) *Resolver {
	return &Resolver{pool: pool}
}

// ListSchemas returns user schemas, excluding the pg_ catalog schemas.
func (r *Resolver) ListSchemas(ctx context.Context) ([]string, error) {
	const q = `
		SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT LIKE 'pg_%' AND schema_name <> 'information_schema'
		ORDER BY schema_name
	`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		schemas = append(schemas, name)
	}
	return schemas, rows.Err()
}

// ListTables returns the base tables of a schema, excluding partitions.
func (r *Resolver) ListTables(ctx context.Context, schema string) ([]string, error) {
	const q = `
		SELECT DISTINCT ist.table_name
		FROM information_schema.tables ist
		JOIN pg_class pgc ON ist.table_name = pgc.relname
		WHERE ist.table_schema = $1 AND ist.table_type = 'BASE TABLE'
		  AND pgc.relispartition = false
		ORDER BY ist.table_name
	`
	rows, err := r.pool.Query(ctx, q, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", schema, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DescribeTable resolves the ordered column metadata of one table.
// Returns ErrNotFound when the table has no columns in the catalog.
func (r *Resolver) DescribeTable(ctx context.Context, schema, table string) (Table, error) {
	const q = `
		SELECT column_name, ordinal_position, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`
	rows, err := r.pool.Query(ctx, q, schema, table)
	if err != nil {
		return Table{}, fmt.Errorf("describe %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	t := Table{Schema: schema, Name: table}
	for rows.Next() {
		var c Column
		var nullable string
		if err := rows.Scan(&c.Name, &c.Ordinal, &c.DataType, &nullable); err != nil {
			return Table{}, fmt.Errorf("scan column: %w", err)
		}
		c.Nullable = strings.EqualFold(nullable, "YES")
		t.Columns = append(t.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return Table{}, err
	}
	if len(t.Columns) == 0 {
		return Table{}, fmt.Errorf("table %s.%s: %w", schema, table, ErrNotFound)
	}
	return t, nil
}

// OrderKey resolves a stable ordering for chunked reads of the table:
// the primary key's columns in key order when one exists, else the
// first unique constraint's, otherwise the first declared column.
// OFFSET/LIMIT chunking is only exhaustive over a stable order. The
// returned key is a quoted column list ready for ORDER BY.
func (r *Resolver) OrderKey(ctx context.Context, t Table) (string, error) {
	const q = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.constraint_schema = tc.constraint_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2
		  AND tc.constraint_name = (
			SELECT pick.constraint_name
			FROM information_schema.table_constraints AS pick
			WHERE pick.table_schema = $1 AND pick.table_name = $2
			  AND pick.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
			ORDER BY (pick.constraint_type = 'PRIMARY KEY') DESC, pick.constraint_name
			LIMIT 1
		  )
		ORDER BY kcu.ordinal_position
	`
	rows, err := r.pool.Query(ctx, q, t.Schema, t.Name)
	if err != nil {
		return "", fmt.Errorf("order key for %s: %w", t.QualifiedName(), err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("order key for %s: %w", t.QualifiedName(), err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("order key for %s: %w", t.QualifiedName(), err)
	}

	if len(cols) == 0 {
		if len(t.Columns) == 0 {
			return "", fmt.Errorf("order key for %s: table has no columns", t.QualifiedName())
		}
		cols = []string{t.Columns[0].Name}
	}
	return quoteColumns(cols), nil
}

// quoteColumns joins column names into a quoted ORDER BY list.
func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
