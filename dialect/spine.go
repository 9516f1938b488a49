package dialect

import "fmt"

// DateSpineSQL emits the SELECT body of the date_spine CTE: a dense
// daily series covering roughly forty years, per spec §4.6.
func DateSpineSQL(d Dialect) (string, error) {
	const days = 365 * 40
	switch d {
	case Snowflake, Redshift:
		return fmt.Sprintf(
			"SELECT DATEADD(DAY, SEQ4(), '1970-01-01'::DATE) AS date FROM TABLE(GENERATOR(rowcount => %d))",
			days,
		), nil
	case BigQuery:
		return "SELECT date FROM UNNEST(GENERATE_DATE_ARRAY('1970-01-01', DATE_ADD(CURRENT_DATE(), INTERVAL 1 YEAR), INTERVAL 1 DAY)) AS date", nil
	case Postgres:
		return fmt.Sprintf(
			"SELECT generate_series('1970-01-01'::date, '1970-01-01'::date + INTERVAL '%d days', INTERVAL '1 day')::date AS date",
			days,
		), nil
	case Druid:
		return "", NewNotImplementedDateSpine()
	default:
		return "", NewNotImplementedDateSpine()
	}
}

// notImplementedDateSpineError is the sentinel DateSpineSQL returns for a
// dialect with no date-spine form; cumulative wraps it into
// model.NotImplementedError with the offending dialect name attached.
type notImplementedDateSpineError struct{}

func (notImplementedDateSpineError) Error() string { return "date spine not implemented for dialect" }

func NewNotImplementedDateSpine() error { return notImplementedDateSpineError{} }

func IsNotImplementedDateSpine(err error) bool {
	_, ok := err.(notImplementedDateSpineError)
	return ok
}
