package resolver

import (
	"testing"

	"github.com/metricdef/metricdef/connection"
	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleProject() *model.Project {
	p := model.NewProject("UTC", model.WeekdayMonday)
	p.AddView(&model.View{
		Name: "simple", SQLTableName: "analytics.orders", Connection: "simple_conn",
		Identifiers: []model.Identifier{{Name: "order_id", Type: model.IdentifierPrimary}},
		Fields: []model.Field{
			{Name: "order_id", ViewName: "simple", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.id"},
			{Name: "channel", ViewName: "simple", FieldType: model.FieldTypeDimension, SQL: "${TABLE}.sales_channel"},
			{Name: "total_revenue", ViewName: "simple", FieldType: model.FieldTypeMeasure, MeasureType: model.MeasureSum, SQL: "${TABLE}.revenue"},
		},
	})
	return p
}

func registryFor(dlct dialect.Dialect) *connection.Registry {
	r := connection.NewRegistry()
	r.Register("simple_conn", dlct, "host=localhost dbname=test")
	return r
}

func TestCompileSimpleRequestReturnsConnection(t *testing.T) {
	p := simpleProject()
	raw := &RawRequest{
		Metrics:    []string{"simple.total_revenue"},
		Dimensions: []string{"simple.channel"},
		QueryType:  "snowflake",
	}
	result, err := Compile(p, registryFor(dialect.Snowflake), raw)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT simple.sales_channel AS simple_channel, SUM(simple.revenue) AS simple_total_revenue FROM analytics.orders simple GROUP BY simple.sales_channel ORDER BY simple_total_revenue DESC;",
		result.SQL,
	)
	require.NotNil(t, result.Connection)
	assert.Equal(t, "simple_conn", result.Connection.Name)
}

func TestCompileUnknownQueryType(t *testing.T) {
	p := simpleProject()
	raw := &RawRequest{Metrics: []string{"simple.total_revenue"}, QueryType: "oracle"}
	_, err := Compile(p, registryFor(dialect.Postgres), raw)
	require.Error(t, err)
	assert.IsType(t, &model.QueryError{}, err)
}

func TestCompileRejectsInvalidLiteralWhereOnPostgresDialects(t *testing.T) {
	p := simpleProject()
	raw := &RawRequest{
		Metrics:   []string{"simple.total_revenue"},
		Where:     "channel = ) AND (",
		QueryType: "postgres",
	}
	_, err := Compile(p, registryFor(dialect.Postgres), raw)
	require.Error(t, err)
	assert.IsType(t, &model.ParseError{}, err)
}

func TestCompileSkipsLiteralValidationOnDialectsItCannotSpeakFor(t *testing.T) {
	p := simpleProject()
	raw := &RawRequest{
		Metrics:   []string{"simple.total_revenue"},
		Where:     "channel = ) AND (",
		QueryType: "snowflake",
	}
	_, err := Compile(p, registryFor(dialect.Snowflake), raw)
	require.NoError(t, err)
}

func TestCompileAcceptsValidLiteralWhereOnPostgres(t *testing.T) {
	p := simpleProject()
	raw := &RawRequest{
		Metrics:    []string{"simple.total_revenue"},
		Dimensions: []string{"simple.channel"},
		Where:      "simple.sales_channel = 'web'",
		QueryType:  "postgres",
	}
	result, err := Compile(p, registryFor(dialect.Postgres), raw)
	require.NoError(t, err)
	assert.Contains(t, result.SQL, "WHERE simple.sales_channel = 'web'")
}

func TestCompileConnectionNotRegistered(t *testing.T) {
	p := simpleProject()
	raw := &RawRequest{Metrics: []string{"simple.total_revenue"}, QueryType: "postgres"}
	_, err := Compile(p, connection.NewRegistry(), raw)
	require.Error(t, err)
	assert.IsType(t, &model.QueryError{}, err)
}
