package copier

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/withObsrvr/pgcopier/internal/partition"
)

// selectQuery builds the chunk read query: all declared columns, the raw
// predicate, a stable ORDER BY and the chunk's OFFSET/LIMIT.
func selectQuery(schema, table string, columns []string, where, orderKey string, c partition.Chunk) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{col}.Sanitize())
	}
	b.WriteString(" FROM ")
	b.WriteString(pgx.Identifier{schema, table}.Sanitize())
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(orderKey)
	b.WriteString(" OFFSET ")
	b.WriteString(strconv.FormatInt(c.Offset, 10))
	b.WriteString(" LIMIT ")
	b.WriteString(strconv.FormatInt(c.Limit, 10))
	return b.String()
}

// insertQuery builds a multi-row parameterized INSERT for rows of the
// given width: VALUES ($1,$2),($3,$4),...
func insertQuery(schema, table string, columns []string, rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgx.Identifier{schema, table}.Sanitize())
	b.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{col}.Sanitize())
	}
	b.WriteString(") VALUES ")
	arg := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < len(columns); c++ {
			if c > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(arg))
			arg++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// truncateQuery builds the TRUNCATE statement for the target table.
func truncateQuery(schema, table string, cascade bool) string {
	q := fmt.Sprintf("TRUNCATE TABLE %s", pgx.Identifier{schema, table}.Sanitize())
	if cascade {
		q += " CASCADE"
	}
	return q
}
