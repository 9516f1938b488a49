package resolver

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v2"

	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/model"
)

// validateLiteralSQL gives a literal where/having filter fragment a
// best-effort syntax check against Postgres grammar before it's
// substituted into the compiled statement, catching an unbalanced paren
// or stray keyword early with a precise ParseError instead of letting it
// surface as a cryptic error from the warehouse later.
//
// This is deliberately best-effort, not authoritative: Snowflake,
// BigQuery and Druid each diverge from Postgres grammar in ways a
// Postgres-grounded parser will reject even though the fragment is
// perfectly valid for its own dialect (e.g. BigQuery's backtick
// identifiers). So validation only runs for the two Postgres-wire
// dialects this module actually targets (Postgres, Redshift), and a
// parse failure is reported as a ParseError rather than silently
// swallowed — on dialects it can't speak for, it's skipped entirely
// rather than wired into a parser that isn't grounded on that grammar.
func validateLiteralSQL(dlct dialect.Dialect, fragment string) error {
	if dlct != dialect.Postgres && dlct != dialect.Redshift {
		return nil
	}
	probe := fmt.Sprintf("SELECT 1 WHERE (%s)", fragment)
	if _, err := pg_query.Parse(probe); err != nil {
		return model.NewParseError(fragment, "literal filter is not valid SQL: "+err.Error())
	}
	return nil
}
