package joingraph

import (
	"testing"

	"github.com/metricdef/metricdef/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoViewProject() *model.Project {
	p := model.NewProject("UTC", model.WeekdayMonday)
	p.AddView(&model.View{
		Name: "orders", SQLTableName: "analytics.orders",
		Identifiers: []model.Identifier{
			{Name: "order_id", Type: model.IdentifierPrimary},
			{Name: "customer_id", Type: model.IdentifierForeign},
		},
	})
	p.AddView(&model.View{
		Name: "customers", SQLTableName: "analytics.customers",
		Identifiers: []model.Identifier{
			{Name: "customer_id", Type: model.IdentifierPrimary},
		},
	})
	p.AddView(&model.View{
		Name: "sessions", SQLTableName: "analytics.sessions",
		Identifiers: []model.Identifier{
			{Name: "session_id", Type: model.IdentifierPrimary},
		},
	})
	return p
}

func TestBuildJoinsSharedIdentifier(t *testing.T) {
	p := twoViewProject()
	g := Build(p)

	require.True(t, g.Joinable("orders", "customers"))
	require.False(t, g.Joinable("orders", "sessions"))

	neighbors := g.Neighbors("orders")
	require.Len(t, neighbors, 1)
	assert.Equal(t, "customers", neighbors[0].To)
	assert.Equal(t, model.RelationshipManyToOne, neighbors[0].Relationship)
}

func TestComponentIsolatesDisjointViews(t *testing.T) {
	p := twoViewProject()
	g := Build(p)

	members, _ := g.Component("orders")
	assert.ElementsMatch(t, []string{"orders", "customers"}, members)

	sessionMembers, _ := g.Component("sessions")
	assert.Equal(t, []string{"sessions"}, sessionMembers)
}

func TestHashStableAcrossMembers(t *testing.T) {
	p := twoViewProject()
	g := Build(p)
	assert.Equal(t, g.Hash("orders"), g.Hash("customers"))
	assert.NotEqual(t, g.Hash("orders"), g.Hash("sessions"))
}

func TestComposeRelationship(t *testing.T) {
	assert.Equal(t, model.RelationshipOneToMany, Compose(model.RelationshipOneToOne, model.RelationshipOneToMany))
	assert.Equal(t, model.RelationshipManyToMany, Compose(model.RelationshipOneToMany, model.RelationshipManyToOne))
	assert.True(t, FansOut(model.RelationshipOneToMany))
	assert.False(t, FansOut(model.RelationshipManyToOne))
}

func TestCustomJoinIdentifierConnectsViews(t *testing.T) {
	p := model.NewProject("UTC", model.WeekdayMonday)
	p.AddView(&model.View{
		Name: "a", SQLTableName: "a",
		Identifiers: []model.Identifier{
			{Name: "to_b", Type: model.IdentifierJoin, Reference: "b", SQLOn: "${a.id} = ${b.a_id}", JoinType: model.JoinInner, Relationship: model.RelationshipOneToMany},
		},
	})
	p.AddView(&model.View{Name: "b", SQLTableName: "b"})

	g := Build(p)
	assert.True(t, g.Joinable("a", "b"))
	neighbors := g.Neighbors("a")
	require.Len(t, neighbors, 1)
	assert.Equal(t, "${a.id} = ${b.a_id}", neighbors[0].SQLOn)
}
