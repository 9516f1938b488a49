package generator

import (
	"testing"

	"github.com/metricdef/metricdef/design"
	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/filter"
	"github.com/metricdef/metricdef/joingraph"
	"github.com/metricdef/metricdef/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleProject() *model.Project {
	p := model.NewProject("UTC", model.WeekdayMonday)
	p.AddView(&model.View{
		Name: "simple", SQLTableName: "analytics.orders",
		Identifiers: []model.Identifier{{Name: "order_id", Type: model.IdentifierPrimary}},
		Fields: []model.Field{
			{Name: "order_id", ViewName: "simple", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.id"},
			{Name: "channel", ViewName: "simple", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.sales_channel"},
			{Name: "total_revenue", ViewName: "simple", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureSum, SQL: "${TABLE}.revenue"},
		},
	})
	return p
}

func TestGenerateSingleDimensionSnowflakeDefaultSort(t *testing.T) {
	p := simpleProject()
	g := joingraph.Build(p)
	d, err := design.Resolve(p, g, []string{"simple.total_revenue"}, []string{"simple.channel"}, nil, []string{"simple.channel"}, false)
	require.NoError(t, err)

	req := &Request{Metrics: []string{"simple.total_revenue"}, Dimensions: []string{"simple.channel"}}
	sql, err := Generate(p, d, req, dialect.Snowflake)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT simple.sales_channel AS simple_channel, SUM(simple.revenue) AS simple_total_revenue FROM analytics.orders simple GROUP BY simple.sales_channel ORDER BY simple_total_revenue DESC;",
		sql,
	)
}

func TestGenerateNoGroupByWhenPrimaryKeySelected(t *testing.T) {
	p := simpleProject()
	g := joingraph.Build(p)
	d, err := design.Resolve(p, g, []string{"simple.total_revenue"}, []string{"simple.order_id"}, nil, []string{"simple.order_id"}, false)
	require.NoError(t, err)

	req := &Request{Metrics: []string{"simple.total_revenue"}, Dimensions: []string{"simple.order_id"}}
	sql, err := Generate(p, d, req, dialect.Postgres)
	require.NoError(t, err)
	assert.NotContains(t, sql, "GROUP BY")
}

func TestGenerateBigQueryNoDefaultOrderBy(t *testing.T) {
	p := simpleProject()
	g := joingraph.Build(p)
	d, err := design.Resolve(p, g, []string{"simple.total_revenue"}, []string{"simple.channel"}, nil, []string{"simple.channel"}, false)
	require.NoError(t, err)

	req := &Request{Metrics: []string{"simple.total_revenue"}, Dimensions: []string{"simple.channel"}}
	sql, err := Generate(p, d, req, dialect.BigQuery)
	require.NoError(t, err)
	assert.NotContains(t, sql, "ORDER BY")
}

func TestGenerateDruidSuppressesSemicolon(t *testing.T) {
	p := simpleProject()
	g := joingraph.Build(p)
	d, err := design.Resolve(p, g, []string{"simple.total_revenue"}, nil, nil, nil, false)
	require.NoError(t, err)

	req := &Request{Metrics: []string{"simple.total_revenue"}}
	sql, err := Generate(p, d, req, dialect.Druid)
	require.NoError(t, err)
	assert.False(t, len(sql) > 0 && sql[len(sql)-1] == ';')
}

func TestGenerateWhereOnMeasureRoutesToHaving(t *testing.T) {
	p := simpleProject()
	g := joingraph.Build(p)
	d, err := design.Resolve(p, g, []string{"simple.total_revenue"}, []string{"simple.channel"}, nil, []string{"simple.channel"}, false)
	require.NoError(t, err)

	req := &Request{
		Metrics:    []string{"simple.total_revenue"},
		Dimensions: []string{"simple.channel"},
		WhereFilters: []filter.Node{
			filter.Field("simple.total_revenue", filter.GreaterThan, "1000"),
			filter.Field("simple.channel", filter.EqualTo, "web"),
		},
	}
	sql, err := Generate(p, d, req, dialect.Snowflake)
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE simple.sales_channel = 'web'")
	assert.Contains(t, sql, "HAVING SUM(simple.revenue) > 1000")
	assert.NotContains(t, sql, "WHERE SUM(simple.revenue)")
}
