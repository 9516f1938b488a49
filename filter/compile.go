package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/expr"
	"github.com/metricdef/metricdef/model"
)

// Criterion is one compiled boolean fragment, tagged with whether it
// targets a measure (→ HAVING) or a dimension/literal (→ WHERE), per
// spec §4.5's HAVING-vs-WHERE routing rule.
type Criterion struct {
	SQL       string
	IsMeasure bool
}

// Compiler holds everything Compile needs to render field references and
// resolve dialect-specific casts while walking a filter tree.
type Compiler struct {
	Project *model.Project
	Engine  *expr.Engine
	Dialect dialect.Dialect

	// Now overrides the clock compileMatches uses to resolve "today" for
	// natural-language date phrases; nil means time.Now.
	Now func() time.Time
}

// Compile translates one filter node (possibly a nested group) into a
// single boolean SQL fragment (spec §4.4). Groups are parenthesized;
// a single comparison is not.
func (c *Compiler) Compile(n Node) (Criterion, error) {
	switch {
	case n.IsGroup():
		return c.compileGroup(n)
	case n.IsLiteral():
		return c.compileLiteral(n)
	case n.IsField():
		return c.compileFieldFilter(n)
	default:
		return Criterion{}, model.NewParseError("", "filter node has no field, literal, or conditions")
	}
}

func (c *Compiler) compileGroup(n Node) (Criterion, error) {
	if len(n.Conditions) == 0 {
		return Criterion{}, model.NewParseError("", "filter group has no conditions")
	}
	if n.Logical != And && n.Logical != Or {
		return Criterion{}, model.NewParseError(string(n.Logical), "unknown logical operator")
	}
	parts := make([]string, 0, len(n.Conditions))
	isMeasure := false
	for _, child := range n.Conditions {
		crit, err := c.Compile(child)
		if err != nil {
			return Criterion{}, err
		}
		parts = append(parts, crit.SQL)
		isMeasure = isMeasure || crit.IsMeasure
	}
	joiner := " AND "
	if n.Logical == Or {
		joiner = " OR "
	}
	return Criterion{SQL: "(" + strings.Join(parts, joiner) + ")", IsMeasure: isMeasure}, nil
}

// compileLiteral re-emits a literal SQL filter after ${...} substitution,
// treating it as an anonymous expression homed on no particular view
// (spec §4.4: "the same treatment as a synthetic field").
func (c *Compiler) compileLiteral(n Node) (Criterion, error) {
	sql, err := c.Engine.Interpolate("", n.Literal)
	if err != nil {
		return Criterion{}, err
	}
	return Criterion{SQL: sql, IsMeasure: false}, nil
}

func (c *Compiler) compileFieldFilter(n Node) (Criterion, error) {
	if n.Field == "" {
		return Criterion{}, model.NewParseError(n.Field, "filter is missing field")
	}
	view, field, err := c.Project.ResolveField(n.Field)
	if err != nil {
		return Criterion{}, err
	}

	expression := n.Expression
	value := n.Value
	if field.DimensionType == model.DimensionTypeYesNo {
		expression, value = normalizeYesNo(expression, value)
	}

	if expression == Matches {
		return c.compileMatches(view, field, value)
	}
	if expression == Converted || expression == DroppedOff {
		return Criterion{}, model.NewNotImplementedError(n.Field, "funnel expressions are not supported by this compiler")
	}

	fieldSQL, err := c.Engine.Render(n.Field)
	if err != nil {
		return Criterion{}, err
	}

	sql, err := c.compileComparison(fieldSQL, field, expression, value)
	if err != nil {
		return Criterion{}, err
	}
	return Criterion{SQL: sql, IsMeasure: field.FieldType == model.FieldTypeMeasure}, nil
}

// CompileOnColumn compiles a field filter's comparison against an
// explicit SQL column rather than the field's own rendered SQL. The
// cumulative planner uses this to re-apply a default-date WHERE, excluded
// from the per-row subquery, as a HAVING bound on the aggregated CTE's
// date_spine.date.
func (c *Compiler) CompileOnColumn(n Node, columnSQL string) (Criterion, error) {
	if !n.IsField() {
		return Criterion{}, model.NewParseError("", "filter node is not a field filter")
	}
	view, field, err := c.Project.ResolveField(n.Field)
	if err != nil {
		return Criterion{}, err
	}

	expression := n.Expression
	value := n.Value
	if field.DimensionType == model.DimensionTypeYesNo {
		expression, value = normalizeYesNo(expression, value)
	}

	if expression == Matches {
		return c.compileMatchesOnColumn(view, columnSQL, value)
	}
	if expression == Converted || expression == DroppedOff {
		return Criterion{}, model.NewNotImplementedError(n.Field, "funnel expressions are not supported by this compiler")
	}

	sql, err := c.compileComparison(columnSQL, field, expression, value)
	if err != nil {
		return Criterion{}, err
	}
	return Criterion{SQL: sql, IsMeasure: false}, nil
}

// normalizeYesNo rewrites equal_to "True"/"False" against a yesno field
// into boolean_true/boolean_false (spec §4.4).
func normalizeYesNo(expression Expression, value string) (Expression, string) {
	if expression != EqualTo && expression != NotEqualTo {
		return expression, value
	}
	truthy := strings.EqualFold(value, "true")
	falsy := strings.EqualFold(value, "false")
	if !truthy && !falsy {
		return expression, value
	}
	want := truthy
	if expression == NotEqualTo {
		want = !want
	}
	if want {
		return BooleanTrue, ""
	}
	return BooleanFalse, ""
}

func (c *Compiler) compileComparison(fieldSQL string, field *model.Field, expression Expression, value string) (string, error) {
	switch expression {
	case IsNull:
		return fieldSQL + " IS NULL", nil
	case IsNotNull:
		return fieldSQL + " IS NOT NULL", nil
	case BooleanTrue:
		return fieldSQL, nil
	case BooleanFalse:
		return "NOT (" + fieldSQL + ")", nil
	case IsIn:
		items := strings.Split(value, ",")
		quoted := make([]string, len(items))
		for i, it := range items {
			quoted[i] = c.literalOrFieldValue(field, strings.TrimSpace(it))
		}
		return fmt.Sprintf("%s IN (%s)", fieldSQL, strings.Join(quoted, ", ")), nil
	}

	valueSQL := c.literalOrFieldValue(field, value)
	lhs, rhs := fieldSQL, valueSQL
	if isCaseInsensitive(expression) {
		lhs = "LOWER(" + lhs + ")"
		rhs = "LOWER(" + rhs + ")"
	}

	switch stripCaseInsensitive(expression) {
	case EqualTo:
		return lhs + " = " + rhs, nil
	case NotEqualTo:
		return lhs + " <> " + rhs, nil
	case LessThan:
		return lhs + " < " + rhs, nil
	case LessOrEqualThan:
		return lhs + " <= " + rhs, nil
	case GreaterThan:
		return lhs + " > " + rhs, nil
	case GreaterOrEqualThan:
		return lhs + " >= " + rhs, nil
	case Contains:
		return lhs + " LIKE " + wildcard(rhs, true, true), nil
	case DoesNotContain:
		return "NOT (" + lhs + " LIKE " + wildcard(rhs, true, true) + ")", nil
	case StartsWith:
		return lhs + " LIKE " + wildcard(rhs, false, true), nil
	case EndsWith:
		return lhs + " LIKE " + wildcard(rhs, true, false), nil
	case DoesNotStartWith:
		return "NOT (" + lhs + " LIKE " + wildcard(rhs, false, true) + ")", nil
	case DoesNotEndWith:
		return "NOT (" + lhs + " LIKE " + wildcard(rhs, true, false) + ")", nil
	default:
		return "", model.NewParseError(string(expression), "unknown filter expression")
	}
}

// stripCaseInsensitive maps a _case_insensitive expression back to its
// base comparison, since the LOWER() wrapping above already handles
// case-folding.
func stripCaseInsensitive(e Expression) Expression {
	switch e {
	case ContainsCaseInsensitive:
		return Contains
	case DoesNotContainCaseInsensitive:
		return DoesNotContain
	case EqualToCaseInsensitive:
		return EqualTo
	case NotEqualToCaseInsensitive:
		return NotEqualTo
	case StartsWithCaseInsensitive:
		return StartsWith
	case EndsWithCaseInsensitive:
		return EndsWith
	case DoesNotStartWithCaseInsensitive:
		return DoesNotStartWith
	case DoesNotEndWithCaseInsensitive:
		return DoesNotEndWith
	default:
		return e
	}
}

// wildcard wraps a quoted SQL string literal's inner text with LIKE
// wildcards. rhs is expected to already be a quoted literal or rendered
// field SQL; when it isn't a simple quoted literal it is returned
// untouched, so a pattern match against another field's SQL carries no
// wildcards.
func wildcard(rhs string, leading, trailing bool) string {
	if len(rhs) < 2 || rhs[0] != '\'' || rhs[len(rhs)-1] != '\'' {
		return rhs
	}
	inner := rhs[1 : len(rhs)-1]
	if leading {
		inner = "%" + inner
	}
	if trailing {
		inner = inner + "%"
	}
	return "'" + inner + "'"
}

// literalOrFieldValue substitutes value for another field's rendered SQL
// when it names one, per spec §4.4's value-substitution rule, casting to
// the target's datatype when the dialect requires it (Redshift date
// comparisons). Otherwise quotes value as a literal appropriate to
// field's declared type.
func (c *Compiler) literalOrFieldValue(field *model.Field, value string) string {
	if _, targetField, err := c.Project.ResolveField(value); err == nil {
		sql, err := c.Engine.Render(value)
		if err == nil {
			if c.Dialect == dialect.Redshift && targetField.FieldType == model.FieldTypeDimensionGroup {
				sql = dialect.CastExpr(sql, "DATE")
			}
			return sql
		}
	}
	return quoteLiteral(field, value)
}

// quoteLiteral quotes value as a string literal unless field's declared
// type is numeric. Measures are left unquoted too: a measure's own SQL
// always yields a number, and measures don't carry a DimensionType at
// all (that attribute belongs to plain dimensions).
func quoteLiteral(field *model.Field, value string) string {
	if field.DimensionType == model.DimensionTypeNumber || field.FieldType == model.FieldTypeMeasure {
		return value
	}
	escaped := strings.ReplaceAll(value, "'", "''")
	return "'" + escaped + "'"
}
