// Package model holds the in-memory semantic model: views, fields,
// identifiers, sets, mappings and the project arena that owns them. The
// model is constructed once at project-load time and is immutable for
// the remainder of the process; see DESIGN.md for the arena/ID-lookup
// rationale (spec §9: cyclic view/field/project references resolved by
// ID, never by shared pointers).
package model

import (
	"fmt"
	"strings"
)

// Project is the fully-loaded, validated semantic model: every view,
// indexed for O(1) lookup by name, plus project-wide mappings and
// timezone/week-start defaults.
type Project struct {
	Timezone     string // IANA zone name, e.g. "America/Los_Angeles"
	WeekStartDay Weekday
	Mappings     Mappings

	views   map[string]*View
	order   []string // view names in declaration order, for deterministic iteration
}

// NewProject builds an empty project arena with the given timezone and
// default week start.
func NewProject(timezone string, weekStartDay Weekday) *Project {
	return &Project{
		Timezone:     timezone,
		WeekStartDay: weekStartDay,
		views:        map[string]*View{},
	}
}

// AddView registers a view in the arena. Re-adding a view with the same
// name replaces it.
func (p *Project) AddView(v *View) {
	if _, exists := p.views[v.Name]; !exists {
		p.order = append(p.order, v.Name)
	}
	p.views[v.Name] = v
}

// View looks up a view by name.
func (p *Project) View(name string) (*View, bool) {
	v, ok := p.views[name]
	return v, ok
}

// Views returns every view in declaration order.
func (p *Project) Views() []*View {
	out := make([]*View, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.views[name])
	}
	return out
}

// splitFieldID splits a "view.field" or "view.field_timeframe" reference.
func splitFieldID(id string) (view, field string) {
	idx := strings.IndexByte(id, '.')
	if idx < 0 {
		return "", id
	}
	return id[:idx], id[idx+1:]
}

// ResolveField resolves a field ID. It accepts:
//   - "view.field": looked up directly on the named view.
//   - "field": a bare name, resolved only if exactly one view in the
//     project declares it (no view: AccessDeniedOrDoesNotExistException;
//     more than one view: QueryError reporting ambiguity).
//
// Derived timeframe fields ("order_date_month") and derived interval
// fields ("days_waiting_day") are synthesized on demand from their
// owning dimension_group, the way Looker-style semantic layers expand
// dimension_groups lazily rather than storing every timeframe as a
// separate persisted Field.
func (p *Project) ResolveField(id string) (*View, *Field, error) {
	view, field := splitFieldID(id)
	if view != "" {
		v, ok := p.views[view]
		if !ok {
			return nil, nil, NewAccessDeniedOrDoesNotExist(id)
		}
		f, err := resolveFieldOnView(v, field)
		if err != nil {
			return nil, nil, err
		}
		return v, f, nil
	}

	// Bare name: must be unambiguous across the whole project.
	var matchView *View
	var matchField *Field
	count := 0
	for _, v := range p.views {
		if f, err := resolveFieldOnView(v, field); err == nil {
			matchView = v
			matchField = f
			count++
		}
	}
	if count == 0 {
		return nil, nil, NewAccessDeniedOrDoesNotExist(id)
	}
	if count > 1 {
		return nil, nil, NewQueryError(id, "bare field name is ambiguous across views")
	}
	return matchView, matchField, nil
}

// resolveFieldOnView resolves a bare field name against a single view,
// expanding dimension_group timeframes/intervals on demand.
func resolveFieldOnView(v *View, name string) (*Field, error) {
	if f, ok := v.Field(name); ok {
		return f, nil
	}
	for i := range v.Fields {
		group := &v.Fields[i]
		if group.FieldType != FieldTypeDimensionGroup {
			continue
		}
		if !strings.HasPrefix(name, group.Name+"_") {
			continue
		}
		suffix := strings.TrimPrefix(name, group.Name+"_")
		if group.IsTimeDimensionGroup() {
			for _, tf := range group.Timeframes {
				if string(tf) == suffix {
					return deriveTimeframeField(group, tf), nil
				}
			}
		}
		if group.IsDurationDimensionGroup() {
			for _, iv := range group.Intervals {
				if string(iv) == suffix {
					return deriveIntervalField(group, iv), nil
				}
			}
		}
	}
	return nil, NewAccessDeniedOrDoesNotExist(fmt.Sprintf("%s.%s", v.Name, name))
}

// deriveTimeframeField synthesizes the derived field for one timeframe
// of a time dimension_group.
func deriveTimeframeField(group *Field, tf Timeframe) *Field {
	derived := *group
	derived.Name = group.Name + "_" + string(tf)
	derived.ParentGroup = group.Name
	derived.OwnTimeframe = tf
	return &derived
}

// deriveIntervalField synthesizes the derived field for one interval of
// a duration dimension_group.
func deriveIntervalField(group *Field, iv Interval) *Field {
	derived := *group
	derived.Name = group.Name + "_" + string(iv)
	derived.ParentGroup = group.Name
	derived.Intervals = []Interval{iv}
	return &derived
}
