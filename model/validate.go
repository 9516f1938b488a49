package model

import "fmt"

// CollectErrors validates the whole project arena: each view's own
// shape (via collectErrors), field-ID uniqueness, and that every mapping
// field names a declared view. Mirrors each entity's own
// `collect_errors` the way the original Looker-style model validates per
// object, pooled into one project-wide list here.
func (p *Project) CollectErrors() []error {
	var errs []error

	seenFieldIDs := map[string]bool{}
	for _, v := range p.Views() {
		errs = append(errs, v.collectErrors()...)
		for i := range v.Fields {
			id := v.Fields[i].ID()
			if seenFieldIDs[id] {
				errs = append(errs, NewQueryError(id, "duplicate field ID in project"))
			}
			seenFieldIDs[id] = true
		}
	}

	for _, m := range p.Mappings {
		for _, f := range m.Fields {
			view, _ := splitFieldID(f)
			if _, ok := p.views[view]; !ok {
				errs = append(errs, NewAccessDeniedOrDoesNotExist(f))
			}
		}
	}

	return errs
}

// collectErrors validates a single view's internal shape: composite
// primary-key identifier references resolve on the same view, and
// dimension_group timeframes don't collide with a declared field.
func (v *View) collectErrors() []error {
	var errs []error

	if v.SQLTableName == "" && v.DerivedTableSQL == "" {
		errs = append(errs, NewQueryError(v.Name, "view declares neither sql_table_name nor derived_table.sql"))
	}

	for _, ident := range v.Identifiers {
		if ident.Type != IdentifierPrimary || len(ident.SubIdentifiers) == 0 {
			continue
		}
		for _, sub := range ident.SubIdentifiers {
			if _, ok := v.Identifier(sub); !ok {
				errs = append(errs, NewQueryError(fmt.Sprintf("%s.%s", v.Name, sub), "composite primary key references an undeclared identifier"))
			}
		}
	}

	derivedNames := map[string]bool{}
	for i := range v.Fields {
		g := &v.Fields[i]
		if g.FieldType != FieldTypeDimensionGroup {
			continue
		}
		if g.IsTimeDimensionGroup() {
			for _, tf := range g.Timeframes {
				name := g.Name + "_" + string(tf)
				if derivedNames[name] {
					errs = append(errs, NewQueryError(fmt.Sprintf("%s.%s", v.Name, name), "dimension_group produces a duplicate derived field name"))
				}
				derivedNames[name] = true
			}
		}
		if g.IsDurationDimensionGroup() {
			for _, iv := range g.Intervals {
				name := g.Name + "_" + string(iv)
				if derivedNames[name] {
					errs = append(errs, NewQueryError(fmt.Sprintf("%s.%s", v.Name, name), "dimension_group produces a duplicate derived field name"))
				}
				derivedNames[name] = true
			}
		}
	}

	for name := range derivedNames {
		if _, ok := v.Field(name); ok {
			errs = append(errs, NewQueryError(fmt.Sprintf("%s.%s", v.Name, name), "derived dimension_group field collides with a declared field"))
		}
	}

	return errs
}
