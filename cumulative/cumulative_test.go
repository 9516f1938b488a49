package cumulative

import (
	"testing"

	"github.com/metricdef/metricdef/design"
	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/filter"
	"github.com/metricdef/metricdef/generator"
	"github.com/metricdef/metricdef/joingraph"
	"github.com/metricdef/metricdef/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cumulativeProject() *model.Project {
	p := model.NewProject("UTC", model.WeekdayMonday)
	p.AddView(&model.View{
		Name: "orders", SQLTableName: "analytics.orders", DefaultDate: "order",
		Identifiers: []model.Identifier{{Name: "order_id", Type: model.IdentifierPrimary}},
		Fields: []model.Field{
			{Name: "order_id", ViewName: "orders", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.id"},
			{Name: "channel", ViewName: "orders", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.sales_channel"},
			{Name: "order", ViewName: "orders", FieldType: model.FieldTypeDimensionGroup, GroupType: model.DimensionGroupTime,
				SQL: "${TABLE}.created_at", Timeframes: []model.Timeframe{model.TimeframeDate}},
			{Name: "revenue", ViewName: "orders", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureSum, SQL: "${TABLE}.revenue"},
			{Name: "cumulative_revenue", ViewName: "orders", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureCumulative, Measure: "revenue"},
		},
	})
	return p
}

func TestIsCumulativeDetectsCumulativeMeasure(t *testing.T) {
	p := cumulativeProject()
	req := &generator.Request{Metrics: []string{"orders.cumulative_revenue"}}
	ok, err := IsCumulative(p, req)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsCumulativeFalseForPlainMeasure(t *testing.T) {
	p := cumulativeProject()
	req := &generator.Request{Metrics: []string{"orders.revenue"}}
	ok, err := IsCumulative(p, req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateBuildsDateSpinePipeline(t *testing.T) {
	p := cumulativeProject()
	g := joingraph.Build(p)
	req := &generator.Request{Metrics: []string{"orders.cumulative_revenue"}, Dimensions: []string{"orders.channel"}}
	d, err := design.Resolve(p, g, req.Metrics, req.Dimensions, nil, req.Dimensions, false)
	require.NoError(t, err)

	sql, err := Generate(p, d, req, dialect.Postgres)
	require.NoError(t, err)
	assert.Contains(t, sql, "WITH date_spine AS (")
	assert.Contains(t, sql, "subquery_")
	assert.Contains(t, sql, "aggregated_")
	assert.Contains(t, sql, "orders.sales_channel AS orders_channel")
	assert.Contains(t, sql, "orders.revenue")
	assert.True(t, len(sql) > 0 && sql[len(sql)-1] == ';')
}

func TestGenerateRejectsUnsupportedDialect(t *testing.T) {
	p := cumulativeProject()
	g := joingraph.Build(p)
	req := &generator.Request{Metrics: []string{"orders.cumulative_revenue"}}
	d, err := design.Resolve(p, g, req.Metrics, req.Dimensions, nil, req.Dimensions, false)
	require.NoError(t, err)

	_, err = Generate(p, d, req, dialect.Druid)
	require.Error(t, err)
	assert.IsType(t, &model.NotImplementedError{}, err)
}

func TestGenerateReappliesDefaultDateWhereAsHaving(t *testing.T) {
	p := cumulativeProject()
	g := joingraph.Build(p)
	req := &generator.Request{
		Metrics: []string{"orders.cumulative_revenue"},
		WhereFilters: []filter.Node{
			filter.Field("orders.order_date", filter.GreaterOrEqualThan, "2024-01-01"),
		},
	}
	d, err := design.Resolve(p, g, req.Metrics, req.Dimensions, []string{"orders.order_date"}, req.Dimensions, false)
	require.NoError(t, err)

	sql, err := Generate(p, d, req, dialect.Postgres)
	require.NoError(t, err)
	assert.NotContains(t, sql, "WHERE")
	assert.Contains(t, sql, "HAVING date_spine.date >= '2024-01-01'")
}

func TestGenerateRejectsNoCumulativeMetrics(t *testing.T) {
	p := cumulativeProject()
	g := joingraph.Build(p)
	req := &generator.Request{Metrics: []string{"orders.revenue"}}
	d, err := design.Resolve(p, g, req.Metrics, req.Dimensions, nil, req.Dimensions, false)
	require.NoError(t, err)

	_, err = Generate(p, d, req, dialect.Postgres)
	require.Error(t, err)
	assert.IsType(t, &model.QueryError{}, err)
}
