package dialect

import "github.com/metricdef/metricdef/model"

// CastTimestamp casts a raw column expression to a timestamp, for the
// `time` timeframe fragment.
func CastTimestamp(d Dialect, raw string) string {
	if d == BigQuery {
		return "CAST(" + raw + " AS TIMESTAMP)"
	}
	return "CAST(" + raw + " AS TIMESTAMP)"
}

// DateTrunc emits the dialect's DATE_TRUNC (or equivalent) for the
// date/week/month/quarter/year timeframes. unit is the SQL-side trunc
// unit name ("DAY", "WEEK", "MONTH", "QUARTER", "YEAR").
func DateTrunc(d Dialect, unit, raw string) string {
	switch d {
	case BigQuery:
		return "CAST(DATE_TRUNC(CAST(" + raw + " AS DATE), " + unit + ") AS DATE)"
	default:
		return "DATE_TRUNC('" + unit + "', " + raw + ")"
	}
}

// WeekTrunc emits the date-truncation fragment for the `week` timeframe,
// honoring weekStart (spec §4.1: "when start is Monday, the canonical
// form is DATE_TRUNC('WEEK', d + 1 day) - 1 day" — DATE_TRUNC('WEEK', ...)
// truncates to the preceding Sunday in every dialect in this corpus, so a
// Monday-start week is expressed as a +1/-1 day shift around that).
func WeekTrunc(d Dialect, weekStart model.Weekday, raw string) string {
	switch weekStart {
	case model.WeekdayMonday:
		shifted := raw + " + INTERVAL '1 day'"
		if d == BigQuery {
			shifted = "DATE_ADD(CAST(" + raw + " AS DATE), INTERVAL 1 DAY)"
		}
		trunc := DateTrunc(d, "WEEK", shifted)
		if d == BigQuery {
			return "DATE_SUB(" + trunc + ", INTERVAL 1 DAY)"
		}
		return trunc + " - INTERVAL '1 day'"
	case model.WeekdaySunday:
		return DateTrunc(d, "WEEK", raw)
	default: // Saturday
		shifted := raw + " - INTERVAL '1 day'"
		if d == BigQuery {
			shifted = "DATE_SUB(CAST(" + raw + " AS DATE), INTERVAL 1 DAY)"
		}
		trunc := DateTrunc(d, "WEEK", shifted)
		if d == BigQuery {
			return "DATE_ADD(" + trunc + ", INTERVAL 1 DAY)"
		}
		return trunc + " + INTERVAL '1 day'"
	}
}

// DayOfWeek, DayOfMonth and HourOfDay emit the dialect-specific scalar
// extractors for the matching timeframes.
func DayOfWeek(d Dialect, raw string) string {
	switch d {
	case BigQuery:
		return "EXTRACT(DAYOFWEEK FROM " + raw + ")"
	case Druid:
		return "TIME_EXTRACT(" + raw + ", 'DOW')"
	default:
		return "EXTRACT(DOW FROM " + raw + ")"
	}
}

func DayOfMonth(d Dialect, raw string) string {
	switch d {
	case BigQuery:
		return "EXTRACT(DAY FROM " + raw + ")"
	case Druid:
		return "TIME_EXTRACT(" + raw + ", 'DAY')"
	default:
		return "EXTRACT(DAY FROM " + raw + ")"
	}
}

func HourOfDay(d Dialect, raw string) string {
	switch d {
	case BigQuery:
		return "EXTRACT(HOUR FROM " + raw + ")"
	case Druid:
		return "TIME_EXTRACT(" + raw + ", 'HOUR')"
	default:
		return "EXTRACT(HOUR FROM " + raw + ")"
	}
}
