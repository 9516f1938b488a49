package joingraph

import "github.com/metricdef/metricdef/model"

// Compose combines the relationship of two adjacent edges on a join
// path into the path's overall relationship (spec §4.2: "Relationships
// compose: following identifiers yields the path's overall
// relationship"). "Many" dominates "one" on either side.
func Compose(a, b model.Relationship) model.Relationship {
	manyFrom := func(r model.Relationship) bool {
		return r == model.RelationshipManyToOne || r == model.RelationshipManyToMany
	}
	fromMany := manyFrom(a) || manyFrom(b)
	toMany := isManySide(a) || isManySide(b)
	switch {
	case !fromMany && !toMany:
		return model.RelationshipOneToOne
	case fromMany && !toMany:
		return model.RelationshipManyToOne
	case !fromMany && toMany:
		return model.RelationshipOneToMany
	default:
		return model.RelationshipManyToMany
	}
}

// isManySide reports whether the "from" side of a relationship fans out
// to many rows on the "to" side.
func isManySide(r model.Relationship) bool {
	return r == model.RelationshipOneToMany || r == model.RelationshipManyToMany
}

// FansOut reports whether following this edge (from base, outward) can
// multiply rows on the far side relative to the near side — i.e. the
// near view's rows each match more than one far-view row.
func FansOut(r model.Relationship) bool {
	return r == model.RelationshipOneToMany || r == model.RelationshipManyToMany
}
