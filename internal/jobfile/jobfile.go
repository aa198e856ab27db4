// Package jobfile parses YAML batch files into copy jobs.
package jobfile

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/withObsrvr/pgcopier/internal/copier"
)

// document is the top-level shape of a batch file:
//
//	imports:
//	  - schema: public
//	    tables: [table1, table2]
//	    where_clause: other_number > 500000
//	    truncate: true
//	    cascade: false
type document struct {
	Imports []entry `yaml:"imports"`
}

type entry struct {
	Schema      string   `yaml:"schema"`
	Tables      []string `yaml:"tables"`
	WhereClause string   `yaml:"where_clause"`
	Truncate    bool     `yaml:"truncate"`
	Cascade     bool     `yaml:"cascade"`
}

// Load reads and parses a batch file.
func Load(path string) ([]copier.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	jobs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("batch file %s: %w", path, err)
	}
	return jobs, nil
}

// Parse decodes a batch document into jobs, in declaration order.
func Parse(r io.Reader) ([]copier.Job, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(doc.Imports) == 0 {
		return nil, fmt.Errorf("no imports declared")
	}

	jobs := make([]copier.Job, 0, len(doc.Imports))
	for i, e := range doc.Imports {
		if e.Schema == "" {
			return nil, fmt.Errorf("import %d: schema is required", i)
		}
		if len(e.Tables) == 0 {
			return nil, fmt.Errorf("import %d: at least one table is required", i)
		}
		where := e.WhereClause
		// Legacy batch files spell "no filter" as a literal tilde.
		if where == "~" {
			where = ""
		}
		jobs = append(jobs, copier.Job{
			Schema:      e.Schema,
			Tables:      e.Tables,
			WhereClause: where,
			Truncate:    e.Truncate,
			Cascade:     e.Cascade,
		})
	}
	return jobs, nil
}
