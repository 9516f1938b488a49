package filter

import (
	"testing"
	"time"

	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/expr"
	"github.com/metricdef/metricdef/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProject() *model.Project {
	p := model.NewProject("UTC", model.WeekdayMonday)
	p.AddView(&model.View{
		Name: "simple", SQLTableName: "analytics.orders",
		Identifiers: []model.Identifier{{Name: "order_id", Type: model.IdentifierPrimary}},
		Fields: []model.Field{
			{Name: "order_id", ViewName: "simple", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.id"},
			{Name: "is_test", ViewName: "simple", FieldType: model.FieldTypeDimension, DimensionType: model.DimensionTypeYesNo, SQL: "${TABLE}.is_test"},
			{Name: "channel", ViewName: "simple", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.sales_channel"},
			{
				Name: "order", ViewName: "simple", FieldType: model.FieldTypeDimensionGroup, GroupType: model.DimensionGroupTime,
				SQL: "${TABLE}.order_date", Timeframes: []model.Timeframe{model.TimeframeRaw, model.TimeframeDate},
			},
			{Name: "total_revenue", ViewName: "simple", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureSum, SQL: "${TABLE}.revenue"},
		},
	})
	return p
}

func testCompiler(p *model.Project, d dialect.Dialect) *Compiler {
	return &Compiler{
		Project: p,
		Engine:  expr.NewEngine(p, d, nil),
		Dialect: d,
	}
}

func TestCompileGroupParenthesizesAndJoins(t *testing.T) {
	c := testCompiler(testProject(), dialect.Snowflake)
	n := Group(And,
		Field("simple.channel", EqualTo, "web"),
		Group(Or,
			Field("simple.order_id", EqualTo, "1"),
			Field("simple.order_id", EqualTo, "2"),
		),
	)
	crit, err := c.Compile(n)
	require.NoError(t, err)
	assert.Equal(t, "(simple.sales_channel = 'web' AND (simple.id = '1' OR simple.id = '2'))", crit.SQL)
	assert.False(t, crit.IsMeasure)
}

func TestCompileGroupMarksMeasureWhenAnyChildIsMeasure(t *testing.T) {
	c := testCompiler(testProject(), dialect.Snowflake)
	n := Group(And,
		Field("simple.channel", EqualTo, "web"),
		Field("simple.total_revenue", GreaterThan, "100"),
	)
	crit, err := c.Compile(n)
	require.NoError(t, err)
	assert.True(t, crit.IsMeasure)
}

func TestCompileYesNoNormalization(t *testing.T) {
	c := testCompiler(testProject(), dialect.Snowflake)

	crit, err := c.Compile(Field("simple.is_test", EqualTo, "True"))
	require.NoError(t, err)
	assert.Equal(t, "simple.is_test", crit.SQL)

	crit, err = c.Compile(Field("simple.is_test", EqualTo, "False"))
	require.NoError(t, err)
	assert.Equal(t, "NOT (simple.is_test)", crit.SQL)

	crit, err = c.Compile(Field("simple.is_test", NotEqualTo, "True"))
	require.NoError(t, err)
	assert.Equal(t, "NOT (simple.is_test)", crit.SQL)
}

func TestCompileCaseInsensitiveVariant(t *testing.T) {
	c := testCompiler(testProject(), dialect.Snowflake)
	crit, err := c.Compile(Field("simple.channel", EqualToCaseInsensitive, "WEB"))
	require.NoError(t, err)
	assert.Equal(t, "LOWER(simple.sales_channel) = LOWER('WEB')", crit.SQL)
}

func TestCompileIsNullAndIsNotNull(t *testing.T) {
	c := testCompiler(testProject(), dialect.Snowflake)

	crit, err := c.Compile(Field("simple.channel", IsNull, ""))
	require.NoError(t, err)
	assert.Equal(t, "simple.sales_channel IS NULL", crit.SQL)

	crit, err = c.Compile(Field("simple.channel", IsNotNull, ""))
	require.NoError(t, err)
	assert.Equal(t, "simple.sales_channel IS NOT NULL", crit.SQL)
}

func TestCompileIsInList(t *testing.T) {
	c := testCompiler(testProject(), dialect.Snowflake)
	crit, err := c.Compile(Field("simple.channel", IsIn, "web, app, retail"))
	require.NoError(t, err)
	assert.Equal(t, "simple.sales_channel IN ('web', 'app', 'retail')", crit.SQL)
}

func TestCompileContainsUsesLikeWildcards(t *testing.T) {
	c := testCompiler(testProject(), dialect.Snowflake)
	crit, err := c.Compile(Field("simple.channel", Contains, "web"))
	require.NoError(t, err)
	assert.Equal(t, "simple.sales_channel LIKE '%web%'", crit.SQL)
}

func TestCompileLiteralSQLPassesThroughInterpolation(t *testing.T) {
	c := testCompiler(testProject(), dialect.Snowflake)
	crit, err := c.Compile(LiteralSQL("${simple.channel} = 'web'"))
	require.NoError(t, err)
	assert.Equal(t, "simple.sales_channel = 'web'", crit.SQL)
}

func TestCompileFunnelExpressionNotImplemented(t *testing.T) {
	c := testCompiler(testProject(), dialect.Snowflake)
	_, err := c.Compile(Field("simple.channel", Converted, ""))
	require.Error(t, err)
	assert.IsType(t, &model.NotImplementedError{}, err)
}

func TestCompileMatchesLastYear(t *testing.T) {
	p := testProject()
	c := testCompiler(p, dialect.BigQuery)
	fixedNow := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	c.Now = func() time.Time { return fixedNow }

	crit, err := c.Compile(Field("simple.order_date", Matches, "last year"))
	require.NoError(t, err)
	assert.Contains(t, crit.SQL, "2023-01-01T00:00:00")
	assert.Contains(t, crit.SQL, "2023-12-31T23:59:59")
	assert.Contains(t, crit.SQL, "DATE_TRUNC")
}

func TestCompileMatchesThisWeekHonorsWeekStartDay(t *testing.T) {
	p := testProject()
	p.WeekStartDay = model.WeekdaySunday
	c := testCompiler(p, dialect.Snowflake)
	// 2024-06-12 is a Wednesday; week starting Sunday begins 2024-06-09.
	fixedNow := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	c.Now = func() time.Time { return fixedNow }

	crit, err := c.Compile(Field("simple.order_date", Matches, "this week"))
	require.NoError(t, err)
	assert.Contains(t, crit.SQL, "2024-06-09T00:00:00")
	assert.Contains(t, crit.SQL, "2024-06-15T23:59:59")
}

func TestCompileMissingFieldErrors(t *testing.T) {
	c := testCompiler(testProject(), dialect.Snowflake)
	_, err := c.Compile(Field("simple.does_not_exist", EqualTo, "x"))
	require.Error(t, err)
}
