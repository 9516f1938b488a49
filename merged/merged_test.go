package merged

import (
	"testing"

	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/generator"
	"github.com/metricdef/metricdef/joingraph"
	"github.com/metricdef/metricdef/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func disjointProject() *model.Project {
	p := model.NewProject("UTC", model.WeekdayMonday)
	p.AddView(&model.View{
		Name: "orders", SQLTableName: "analytics.orders",
		Identifiers: []model.Identifier{{Name: "order_id", Type: model.IdentifierPrimary}},
		Fields: []model.Field{
			{Name: "channel", ViewName: "orders", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.channel"},
			{Name: "revenue", ViewName: "orders", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureSum, SQL: "${TABLE}.revenue"},
		},
	})
	p.AddView(&model.View{
		Name: "visits", SQLTableName: "analytics.visits",
		Identifiers: []model.Identifier{{Name: "visit_id", Type: model.IdentifierPrimary}},
		Fields: []model.Field{
			{Name: "channel", ViewName: "visits", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.channel"},
			{Name: "visit_count", ViewName: "visits", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureCount},
		},
	})
	p.Mappings = append(p.Mappings, model.Mapping{
		Name:   "channel",
		Fields: []string{"orders.channel", "visits.channel"},
	})
	return p
}

func TestIsMergedTrueForDisjointComponents(t *testing.T) {
	p := disjointProject()
	g := joingraph.Build(p)
	req := &generator.Request{Metrics: []string{"orders.revenue", "visits.visit_count"}}
	ok, err := IsMerged(p, g, req)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsMergedFalseForSingleView(t *testing.T) {
	p := disjointProject()
	g := joingraph.Build(p)
	req := &generator.Request{Metrics: []string{"orders.revenue"}, Dimensions: []string{"orders.channel"}}
	ok, err := IsMerged(p, g, req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateStitchesBucketsOnMappedDimension(t *testing.T) {
	p := disjointProject()
	g := joingraph.Build(p)
	req := &generator.Request{
		Metrics:    []string{"orders.revenue", "visits.visit_count"},
		Dimensions: []string{"orders.channel"},
	}
	sql, err := Generate(p, g, req, dialect.Postgres)
	require.NoError(t, err)
	assert.Contains(t, sql, "WITH bucket_")
	assert.Contains(t, sql, "INNER JOIN bucket_")
	assert.Contains(t, sql, "orders_revenue")
	assert.Contains(t, sql, "visits_visit_count")
	assert.True(t, len(sql) > 0 && sql[len(sql)-1] == ';')
}

func TestGenerateRejectsMergedMetricReferencingCumulative(t *testing.T) {
	p := disjointProject()
	view, _ := p.View("orders")
	view.Fields = append(view.Fields, model.Field{
		Name: "cumulative_revenue", ViewName: "orders", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureCumulative, Measure: "revenue",
	})
	view2, _ := p.View("visits")
	view2.Fields = append(view2.Fields, model.Field{
		Name: "blended", ViewName: "visits", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureNumber,
		IsMergedMetric: true, MergedSQL: "${orders.cumulative_revenue} / ${visits.visit_count}",
	})

	g := joingraph.Build(p)
	req := &generator.Request{Metrics: []string{"visits.blended"}}
	_, err := Generate(p, g, req, dialect.Postgres)
	require.Error(t, err)
	assert.IsType(t, &model.NotImplementedError{}, err)
}
