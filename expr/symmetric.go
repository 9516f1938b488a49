package expr

import (
	"fmt"

	"github.com/metricdef/metricdef/dialect"
)

// Symmetric-aggregate wrapping preserves the correct arithmetic for an
// additive aggregate (SUM/COUNT/AVG) when a join fans out the home
// view's rows, by folding a distinct hash of the home-view primary key
// into the value before summing and then subtracting the hash
// contribution back out (spec §4.1, §9 glossary). The scaling constant
// (1e8) keeps the hashed hi-bits and the folded value from colliding
// once added, the way the teacher's model keys off a large constant
// rather than arbitrary precision arithmetic.
const symmetricScale = 100000000.0

func SymmetricSum(d dialect.Dialect, exprSQL, pkSQL string) string {
	hash := dialect.HashToNumber(d, pkSQL)
	return fmt.Sprintf(
		"(SUM(DISTINCT (CAST(FLOOR(COALESCE(%s, 0) * %g) AS DECIMAL(38,0)) + CAST(%s AS DECIMAL(38,0)))) - SUM(DISTINCT CAST(%s AS DECIMAL(38,0)))) / %g",
		exprSQL, symmetricScale, hash, hash, symmetricScale,
	)
}

func SymmetricCount(d dialect.Dialect, pkSQL string) string {
	return "COUNT(DISTINCT " + pkSQL + ")"
}

func SymmetricAverage(d dialect.Dialect, exprSQL, pkSQL string) string {
	sum := SymmetricSum(d, exprSQL, pkSQL)
	count := SymmetricCount(d, pkSQL)
	return "(" + sum + ") / NULLIF(" + count + ", 0)"
}
