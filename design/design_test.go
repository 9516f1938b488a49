package design

import (
	"testing"

	"github.com/metricdef/metricdef/joingraph"
	"github.com/metricdef/metricdef/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeViewChain() *model.Project {
	p := model.NewProject("UTC", model.WeekdayMonday)
	p.AddView(&model.View{
		Name: "orders", SQLTableName: "analytics.orders",
		Identifiers: []model.Identifier{
			{Name: "order_id", Type: model.IdentifierPrimary},
			{Name: "customer_id", Type: model.IdentifierForeign},
		},
		Fields: []model.Field{
			{Name: "order_id", ViewName: "orders", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.id"},
			{Name: "total_revenue", ViewName: "orders", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureSum, SQL: "${TABLE}.revenue"},
		},
	})
	p.AddView(&model.View{
		Name: "customers", SQLTableName: "analytics.customers",
		Identifiers: []model.Identifier{
			{Name: "customer_id", Type: model.IdentifierPrimary},
		},
		Fields: []model.Field{
			{Name: "region", ViewName: "customers", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.region"},
		},
	})
	return p
}

func TestResolvePicksBaseFromFirstMetric(t *testing.T) {
	p := threeViewChain()
	g := joingraph.Build(p)

	d, err := Resolve(p, g, []string{"orders.total_revenue"}, []string{"customers.region"}, nil, []string{"customers.region"}, false)
	require.NoError(t, err)
	assert.Equal(t, "orders", d.BaseView)
	require.Len(t, d.Joins, 1)
	assert.Equal(t, "customers", d.Joins[0].View)
}

func TestFunctionalPKSyntheticOnFanOut(t *testing.T) {
	p := model.NewProject("UTC", model.WeekdayMonday)
	p.AddView(&model.View{
		Name: "customers", SQLTableName: "c",
		Identifiers: []model.Identifier{{Name: "customer_id", Type: model.IdentifierPrimary}},
		Fields:      []model.Field{{Name: "total_revenue", ViewName: "customers", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureSum, SQL: "${TABLE}.revenue"}},
	})
	p.AddView(&model.View{
		Name: "orders", SQLTableName: "o",
		Identifiers: []model.Identifier{{Name: "customer_id", Type: model.IdentifierForeign}},
		Fields:      []model.Field{{Name: "channel", ViewName: "orders", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.channel"}},
	})
	g := joingraph.Build(p)

	d, err := Resolve(p, g, []string{"customers.total_revenue"}, []string{"orders.channel"}, nil, []string{"orders.channel"}, false)
	require.NoError(t, err)
	assert.True(t, d.FunctionalPK.Synthetic)
	assert.True(t, d.FanOutViews["orders"])
}

func TestNoGroupByWhenBasePrimaryKeySelected(t *testing.T) {
	p := threeViewChain()
	g := joingraph.Build(p)

	d, err := Resolve(p, g, []string{"orders.total_revenue"}, []string{"orders.order_id"}, nil, []string{"orders.order_id"}, false)
	require.NoError(t, err)
	assert.True(t, d.NoGroupBy)
}

func TestJoinErrorWhenDisjointComponents(t *testing.T) {
	p := model.NewProject("UTC", model.WeekdayMonday)
	p.AddView(&model.View{
		Name: "orders", SQLTableName: "o",
		Fields: []model.Field{{Name: "total_revenue", ViewName: "orders", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureSum, SQL: "${TABLE}.revenue"}},
	})
	p.AddView(&model.View{
		Name: "sessions", SQLTableName: "s",
		Fields: []model.Field{{Name: "session_date", ViewName: "sessions", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.d"}},
	})
	g := joingraph.Build(p)

	_, err := Resolve(p, g, []string{"orders.total_revenue"}, []string{"sessions.session_date"}, nil, []string{"sessions.session_date"}, false)
	require.Error(t, err)
	assert.IsType(t, &model.JoinError{}, err)
}
