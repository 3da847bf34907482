// Package sqlvalidate is a defense-in-depth pass over translator-generated
// SQL before it reaches the pool. Every WHERE fragment sqltranslate emits
// is built by string concatenation over identifiers the schema inspector
// discovered (table/column/alias names) rather than user input, but
// parsing it back with a real SQL parser catches a malformed fragment
// before it becomes a runtime error or, worse, a valid-but-wrong query.
package sqlvalidate

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/cern-fcc/datacatalog/internal/apperr"
)

// ValidateStatement parses a complete SQL statement (e.g. the SELECT or
// COUNT query C6/C8 assembled) and returns an error if it does not parse
// as valid Postgres SQL.
func ValidateStatement(sql string) error {
	if _, err := pg_query.Parse(sql); err != nil {
		return apperr.SearchExecution("generated SQL failed validation", err).WithDetail(sql)
	}
	return nil
}

// ValidateWhereClause checks a bare WHERE-clause fragment by wrapping it
// in a throwaway SELECT before parsing, since pg_query_go only parses
// complete statements.
func ValidateWhereClause(whereSQL string) error {
	return ValidateStatement("SELECT 1 WHERE " + whereSQL)
}
