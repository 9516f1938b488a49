// Package dialect isolates every point at which SQL text differs across
// the five supported warehouses (Snowflake, Redshift, Postgres, BigQuery,
// Druid): quoting, timezone conversion, date truncation, interval
// arithmetic, date-spine generation, and statement termination. Mirrors
// the way the teacher keyed adapter-specific SQL off a GeneratorMode
// enum, generalized from "which DB product" to "which query_type".
package dialect

import (
	"strings"

	"github.com/metricdef/metricdef/model"
)

// Dialect is the query_type a request compiles against.
type Dialect int

const (
	Snowflake = Dialect(iota)
	Redshift
	Postgres
	BigQuery
	Druid
)

// Parse maps a request's query_type string to a Dialect. The spec's enum
// is spelled uppercase, but callers (the CLI, a raw API request) pass
// query_type through verbatim, so matching folds case rather than
// rejecting an otherwise-valid lowercase or mixed-case spelling.
func Parse(queryType string) (Dialect, bool) {
	switch strings.ToUpper(queryType) {
	case "SNOWFLAKE":
		return Snowflake, true
	case "REDSHIFT":
		return Redshift, true
	case "POSTGRES":
		return Postgres, true
	case "BIGQUERY":
		return BigQuery, true
	case "DRUID":
		return Druid, true
	default:
		return 0, false
	}
}

func (d Dialect) String() string {
	switch d {
	case Snowflake:
		return "SNOWFLAKE"
	case Redshift:
		return "REDSHIFT"
	case Postgres:
		return "POSTGRES"
	case BigQuery:
		return "BIGQUERY"
	case Druid:
		return "DRUID"
	default:
		return "UNKNOWN"
	}
}

// EmitsSemicolon reports whether a compiled statement should be
// terminated with ";" — Druid never does.
func (d Dialect) EmitsSemicolon() bool {
	return d != Druid
}

// DefaultOrderByAllowed reports whether the single-query generator may
// append a default `ORDER BY <first-metric> DESC` when the request
// supplies none. Only Snowflake and Redshift get this default.
func (d Dialect) DefaultOrderByAllowed() bool {
	return d == Snowflake || d == Redshift
}

// SupportsCumulative reports whether the cumulative planner's CTE
// pipeline (§4.6) is implemented for this dialect.
func (d Dialect) SupportsCumulative() bool {
	return d == Snowflake || d == Redshift || d == BigQuery || d == Postgres
}

// CurrentDate returns the dialect's literal/function for "today". The
// cumulative planner does not call it: its aggregated CTEs are bounded
// only by the range of the date spine.
func (d Dialect) CurrentDate() string {
	switch d {
	case BigQuery:
		return "CURRENT_DATE()"
	default:
		return "CURRENT_DATE()"
	}
}

// QuoteIdent quotes a bare identifier for safe use as an alias. All five
// dialects accept double quotes except BigQuery, which uses backticks.
func (d Dialect) QuoteIdent(name string) string {
	if d == BigQuery {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// CastExpr wraps an expression with an explicit CAST, used wherever a
// value must be coerced to match a target column's datatype (e.g. a
// Redshift date-literal comparison, per spec §4.4 value substitution).
func CastExpr(expr, sqlType string) string {
	return "CAST(" + expr + " AS " + sqlType + ")"
}

// Project carries the dialect-agnostic defaults a compilation reads from
// the model (timezone, week_start_day) alongside the chosen Dialect.
type Project struct {
	Dialect      Dialect
	Timezone     string
	WeekStartDay model.Weekday
}
