package dialect

// ConvertTimezone wraps colSQL in the dialect's timezone-conversion
// syntax, converting a stored value into the project timezone tz. Used
// by the `raw` timeframe fragment when a time dimension_group has
// convert_timezone enabled (spec §4.1).
func ConvertTimezone(d Dialect, tz string, colSQL string) string {
	if tz == "" {
		return colSQL
	}
	switch d {
	case Snowflake, Redshift:
		return "CONVERT_TIMEZONE('" + tz + "', " + colSQL + ")"
	case Postgres:
		return colSQL + " AT TIME ZONE 'utc' AT TIME ZONE '" + tz + "'"
	case BigQuery:
		return "CAST(DATETIME(" + colSQL + ", '" + tz + "') AS TIMESTAMP)"
	case Druid:
		// Druid's native TIMESTAMP storage is always UTC; conversion is
		// left to the presentation layer, so raw passes through.
		return colSQL
	default:
		return colSQL
	}
}
