package dialect

import (
	"strings"

	"github.com/metricdef/metricdef/model"
)

// supportedIntervalUnits lists the duration units this compiler knows how
// to express. Anything else (e.g. "millisecond") is rejected by the
// expression engine with AccessDeniedOrDoesNotExist per spec §4.1.
var supportedIntervalUnits = map[model.Interval]bool{
	model.IntervalSecond:  true,
	model.IntervalMinute:  true,
	model.IntervalHour:    true,
	model.IntervalDay:     true,
	model.IntervalWeek:    true,
	model.IntervalMonth:   true,
	model.IntervalQuarter: true,
	model.IntervalYear:    true,
}

// SupportsInterval reports whether unit can be expressed in any dialect.
func SupportsInterval(unit model.Interval) bool {
	return supportedIntervalUnits[unit]
}

// DateDiff emits the difference between start and end (end - start) in
// unit, per dialect. Week/year use ISO calendar semantics to match
// calendar expectations (spec §4.1: "ISOWEEK/ISOYEAR are used for
// week/year to match calendar semantics").
func DateDiff(d Dialect, unit model.Interval, start, end string) string {
	sqlUnit := strings.ToUpper(string(unit))
	switch d {
	case Snowflake, Redshift:
		switch unit {
		case model.IntervalWeek:
			return "DATEDIFF('ISOWEEK', " + start + ", " + end + ")"
		case model.IntervalYear:
			return "DATEDIFF('ISOYEAR', " + start + ", " + end + ")"
		default:
			return "DATEDIFF('" + sqlUnit + "', " + start + ", " + end + ")"
		}
	case Postgres:
		return postgresDateDiff(unit, start, end)
	case BigQuery:
		fn := "DATE_DIFF"
		switch unit {
		case model.IntervalWeek:
			return "DATE_DIFF(CAST(" + end + " AS DATE), CAST(" + start + " AS DATE), ISOWEEK)"
		case model.IntervalYear:
			return "DATE_DIFF(CAST(" + end + " AS DATE), CAST(" + start + " AS DATE), ISOYEAR)"
		case model.IntervalSecond, model.IntervalMinute, model.IntervalHour:
			fn = "TIMESTAMP_DIFF"
			return fn + "(CAST(" + end + " AS TIMESTAMP), CAST(" + start + " AS TIMESTAMP), " + sqlUnit + ")"
		default:
			return fn + "(CAST(" + end + " AS DATE), CAST(" + start + " AS DATE), " + sqlUnit + ")"
		}
	case Druid:
		return "TIMESTAMPDIFF(" + sqlUnit + ", " + start + ", " + end + ")"
	default:
		return "DATEDIFF('" + sqlUnit + "', " + start + ", " + end + ")"
	}
}

// postgresDateDiff expresses a date difference via arithmetic on
// intervals, since Postgres has no native DATEDIFF function.
func postgresDateDiff(unit model.Interval, start, end string) string {
	age := "AGE(" + end + ", " + start + ")"
	switch unit {
	case model.IntervalSecond:
		return "EXTRACT(EPOCH FROM (" + end + " - " + start + "))"
	case model.IntervalMinute:
		return "EXTRACT(EPOCH FROM (" + end + " - " + start + ")) / 60"
	case model.IntervalHour:
		return "EXTRACT(EPOCH FROM (" + end + " - " + start + ")) / 3600"
	case model.IntervalDay:
		return "EXTRACT(DAY FROM (" + end + " - " + start + "))"
	case model.IntervalWeek:
		return "EXTRACT(DAY FROM (" + end + " - " + start + ")) / 7"
	case model.IntervalMonth:
		return "EXTRACT(YEAR FROM " + age + ") * 12 + EXTRACT(MONTH FROM " + age + ")"
	case model.IntervalQuarter:
		return "(EXTRACT(YEAR FROM " + age + ") * 12 + EXTRACT(MONTH FROM " + age + ")) / 3"
	case model.IntervalYear:
		return "EXTRACT(YEAR FROM " + age + ")"
	default:
		return age
	}
}
