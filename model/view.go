package model

// IdentifierType enumerates the roles an Identifier can play when two
// views are joined.
type IdentifierType int

const (
	IdentifierPrimary = IdentifierType(iota)
	IdentifierForeign
	IdentifierJoin
)

// JoinType is the SQL join kind a `join`-typed identifier declares.
type JoinType int

const (
	JoinLeftOuter = JoinType(iota)
	JoinInner
	JoinFullOuter
	JoinCross
)

// Relationship is the cardinality between two views connected by an
// identifier, or the composition of a chain of such cardinalities.
type Relationship int

const (
	RelationshipOneToOne = Relationship(iota)
	RelationshipOneToMany
	RelationshipManyToOne
	RelationshipManyToMany
)

// Identifier declares how a view participates in joins under a shared
// name. A primary identifier may be composite, nesting further
// identifiers that must resolve on the same view (see CollectErrors).
type Identifier struct {
	Name string
	Type IdentifierType

	// composite primary key
	SubIdentifiers []string // names of identifiers on the same view

	// join-typed identifier (custom join)
	Reference    string // target view name
	SQLOn        string
	JoinType     JoinType
	Relationship Relationship
}

// View is a logical table: either a physical relation (SQLTableName) or a
// derived one (DerivedTableSQL).
type View struct {
	Name            string
	SQLTableName    string
	DerivedTableSQL string
	DefaultDate     string // name of a time dimension_group field
	WeekStartDay    *Weekday
	Connection      string // named connection, looked up by the resolver

	Identifiers []Identifier
	Fields      []Field
	Sets        []Set

	AlwaysFilter         []FilterRef
	AccessFilters        []AccessFilter
	RequiredAccessGrants []string
}

// FilterRef is a {field, expression, value} triple baked into a view's
// always_filter.
type FilterRef struct {
	Field      string
	Expression string
	Value      string
}

// AccessFilter restricts rows by comparing a field against a caller
// attribute (modeled, not enforced, by the compiler).
type AccessFilter struct {
	Field        string
	UserAttribute string
}

// Field looks up a declared (non-derived) field by bare name.
func (v *View) Field(name string) (*Field, bool) {
	for i := range v.Fields {
		if v.Fields[i].Name == name {
			return &v.Fields[i], true
		}
	}
	return nil, false
}

// PrimaryKeyIdentifier returns the view's primary identifier, if any.
func (v *View) PrimaryKeyIdentifier() (*Identifier, bool) {
	for i := range v.Identifiers {
		if v.Identifiers[i].Type == IdentifierPrimary {
			return &v.Identifiers[i], true
		}
	}
	return nil, false
}

// PrimaryKeyField returns the field marked as this view's primary key:
// by convention the dimension named identically to the primary
// identifier, when one exists.
func (v *View) PrimaryKeyField() (*Field, bool) {
	pk, ok := v.PrimaryKeyIdentifier()
	if !ok {
		return nil, false
	}
	return v.Field(pk.Name)
}

// Identifier looks up a declared identifier by name.
func (v *View) Identifier(name string) (*Identifier, bool) {
	for i := range v.Identifiers {
		if v.Identifiers[i].Name == name {
			return &v.Identifiers[i], true
		}
	}
	return nil, false
}

// EffectiveWeekStartDay resolves week_start_day, honoring the view-level
// override over the project's model-level default (§9 Open Question:
// view setting wins on disagreement).
func (v *View) EffectiveWeekStartDay(modelDefault Weekday) Weekday {
	if v.WeekStartDay != nil {
		return *v.WeekStartDay
	}
	return modelDefault
}
