package dialect

import (
	"testing"

	"github.com/metricdef/metricdef/model"
	"github.com/stretchr/testify/assert"
)

func TestParseRoundTrip(t *testing.T) {
	for _, name := range []string{"SNOWFLAKE", "REDSHIFT", "POSTGRES", "BIGQUERY", "DRUID"} {
		d, ok := Parse(name)
		assert.True(t, ok)
		assert.Equal(t, name, d.String())
	}
	_, ok := Parse("ORACLE")
	assert.False(t, ok)
}

func TestSemicolonPolicy(t *testing.T) {
	assert.True(t, Snowflake.EmitsSemicolon())
	assert.False(t, Druid.EmitsSemicolon())
}

func TestDefaultOrderByAllowed(t *testing.T) {
	assert.True(t, Snowflake.DefaultOrderByAllowed())
	assert.True(t, Redshift.DefaultOrderByAllowed())
	assert.False(t, BigQuery.DefaultOrderByAllowed())
	assert.False(t, Postgres.DefaultOrderByAllowed())
}

func TestRawIsSubstringOfDateFragment(t *testing.T) {
	// spec §8 invariant: the `raw` fragment is a substring of the `date`
	// fragment for every dialect.
	for _, d := range []Dialect{Snowflake, Redshift, Postgres, BigQuery} {
		raw := "simple.order_date"
		date := DateTrunc(d, "DAY", raw)
		assert.Contains(t, date, raw)
	}
}

func TestDurationDiffBigQueryMatchesSpecExample(t *testing.T) {
	got := DateDiff(BigQuery, model.IntervalDay, "simple.view_date", "simple.order_date")
	assert.Equal(t, "DATE_DIFF(CAST(simple.order_date AS DATE), CAST(simple.view_date AS DATE), DAY)", got)
}

func TestUnsupportedIntervalUnit(t *testing.T) {
	assert.False(t, SupportsInterval("millisecond"))
	assert.True(t, SupportsInterval(model.IntervalDay))
}

func TestWeekTruncMonday(t *testing.T) {
	got := WeekTrunc(Postgres, model.WeekdayMonday, "simple.order_date")
	assert.Contains(t, got, "DATE_TRUNC('WEEK'")
	assert.Contains(t, got, "- INTERVAL '1 day'")
}
