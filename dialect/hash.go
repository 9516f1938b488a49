package dialect

// HashToNumber reduces an arbitrary SQL expression (typically a primary
// key column) to a dialect-native numeric hash, the building block for
// symmetric-aggregate wrapping (spec §4.1, §9 glossary "symmetric
// aggregate ... typically via a hash of the home view's primary key").
func HashToNumber(d Dialect, pkSQL string) string {
	switch d {
	case Snowflake:
		return "HASH(" + pkSQL + ")"
	case Redshift:
		return "STRTOL(LEFT(MD5(" + pkSQL + "), 15), 16)"
	case Postgres:
		return "('x' || SUBSTR(MD5(" + pkSQL + "::text), 1, 15))::BIT(60)::BIGINT"
	case BigQuery:
		return "FARM_FINGERPRINT(CAST(" + pkSQL + " AS STRING))"
	case Druid:
		return "CRC32(CAST(" + pkSQL + " AS VARCHAR))"
	default:
		return "HASH(" + pkSQL + ")"
	}
}
