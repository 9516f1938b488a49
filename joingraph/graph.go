// Package joingraph builds the undirected graph of views connected by
// shared identifiers or custom `join`-typed identifiers, and computes
// connected components (spec §4.2). The merged-results planner (package
// merged) uses a component's hash as its bucket key; the design resolver
// uses component membership to decide whether a request needs the merged
// planner at all.
package joingraph

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"

	"github.com/metricdef/metricdef/model"
)

// Edge connects two views, carrying the identifier name that produced it
// (empty for a custom join-typed identifier) and the relationship along
// that single hop.
type Edge struct {
	From, To     string
	IdentifierName string
	Relationship model.Relationship
	JoinType     model.JoinType
	SQLOn        string // only set for custom join-typed identifiers
}

// Graph is the undirected join graph over every view in a project.
type Graph struct {
	Views []string
	edges map[string][]Edge // adjacency list, keyed by view name
}

// Build constructs the join graph for every view in the project. Two
// views share an edge when both declare an identifier of the same name
// (any of {primary,foreign}, {primary,primary}, {foreign,foreign}
// pairings — spec §4.2), or when a `join`-typed identifier on one
// explicitly references the other.
func Build(p *model.Project) *Graph {
	g := &Graph{edges: map[string][]Edge{}}
	views := p.Views()

	byIdentifier := map[string][]*model.View{}
	for _, v := range views {
		g.Views = append(g.Views, v.Name)
		for i := range v.Identifiers {
			ident := &v.Identifiers[i]
			if ident.Type == model.IdentifierJoin {
				continue
			}
			byIdentifier[ident.Name] = append(byIdentifier[ident.Name], v)
		}
	}

	// Shared-identifier edges.
	for name, owners := range byIdentifier {
		for i := 0; i < len(owners); i++ {
			for j := i + 1; j < len(owners); j++ {
				a, b := owners[i], owners[j]
				identA, _ := a.Identifier(name)
				identB, _ := b.Identifier(name)
				rel := relationshipForPair(identA.Type, identB.Type)
				g.addEdge(a.Name, b.Name, name, rel, model.JoinLeftOuter, "")
			}
		}
	}

	// Custom join-typed identifiers.
	for _, v := range views {
		for i := range v.Identifiers {
			ident := &v.Identifiers[i]
			if ident.Type != model.IdentifierJoin {
				continue
			}
			if _, ok := p.View(ident.Reference); !ok {
				continue
			}
			g.addEdge(v.Name, ident.Reference, "", ident.Relationship, ident.JoinType, ident.SQLOn)
		}
	}

	return g
}

// relationshipForPair derives the cardinality of a shared-identifier edge
// from the pair of identifier types declaring it (spec §4.2).
func relationshipForPair(a, b model.IdentifierType) model.Relationship {
	switch {
	case a == model.IdentifierPrimary && b == model.IdentifierPrimary:
		return model.RelationshipOneToOne
	case a == model.IdentifierPrimary && b == model.IdentifierForeign:
		return model.RelationshipOneToMany
	case a == model.IdentifierForeign && b == model.IdentifierPrimary:
		return model.RelationshipManyToOne
	default:
		return model.RelationshipManyToMany
	}
}

func (g *Graph) addEdge(from, to, identifierName string, rel model.Relationship, joinType model.JoinType, sqlOn string) {
	g.edges[from] = append(g.edges[from], Edge{From: from, To: to, IdentifierName: identifierName, Relationship: rel, JoinType: joinType, SQLOn: sqlOn})
	g.edges[to] = append(g.edges[to], Edge{From: to, To: from, IdentifierName: identifierName, Relationship: invert(rel), JoinType: joinType, SQLOn: sqlOn})
}

func invert(r model.Relationship) model.Relationship {
	switch r {
	case model.RelationshipOneToMany:
		return model.RelationshipManyToOne
	case model.RelationshipManyToOne:
		return model.RelationshipOneToMany
	default:
		return r
	}
}

// Neighbors returns the edges leaving view, ordered deterministically by
// identifier name (spec §4.3: "ordering children by identifier name").
func (g *Graph) Neighbors(view string) []Edge {
	edges := append([]Edge(nil), g.edges[view]...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].IdentifierName != edges[j].IdentifierName {
			return edges[i].IdentifierName < edges[j].IdentifierName
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// Component returns every view reachable from start, and its stable hash
// (the join_graph_hash).
func (g *Graph) Component(start string) ([]string, string) {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.edges[cur] {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	members := make([]string, 0, len(visited))
	for v := range visited {
		members = append(members, v)
	}
	sort.Strings(members)
	return members, hashMembers(members)
}

// Hash is an alias of Component's second return value, for callers that
// only need the join_graph_hash of the view's component.
func (g *Graph) Hash(view string) string {
	_, h := g.Component(view)
	return h
}

// Joinable reports whether two views belong to the same connected
// component.
func (g *Graph) Joinable(a, b string) bool {
	return g.Hash(a) == g.Hash(b)
}

func hashMembers(members []string) string {
	sum := sha1.New()
	for _, m := range members {
		sum.Write([]byte(m))
		sum.Write([]byte{0})
	}
	return hex.EncodeToString(sum.Sum(nil))[:16]
}
