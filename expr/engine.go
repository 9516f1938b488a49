// Package expr is the field & expression engine (spec §4.1): it
// interpolates ${...} references, expands dimension_group timeframes
// and durations into dialect-specific SQL, wraps measures in their
// aggregate form, and applies symmetric-aggregate wrapping when the
// design's functional primary key says a measure's home view fans out.
package expr

import (
	"github.com/metricdef/metricdef/design"
	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/model"
)

// Engine renders a field to SQL exactly once per (field, query) and
// memoizes the result in scratch state that lives only for one
// compilation (spec §9: "${...} substitution is done once per field per
// query and memoized"; never shared across requests).
type Engine struct {
	Project *model.Project
	Dialect dialect.Dialect
	Design  *design.Design // nil when rendering outside any particular join plan (e.g. filter-only fields)

	cache     map[string]string
	resolving map[string]bool
}

// NewEngine builds an expression engine scoped to one compilation.
func NewEngine(p *model.Project, d dialect.Dialect, dsn *design.Design) *Engine {
	return &Engine{
		Project:   p,
		Dialect:   d,
		Design:    dsn,
		cache:     map[string]string{},
		resolving: map[string]bool{},
	}
}

// Render returns the SQL fragment for a field ID, fully interpolated and,
// for measures, aggregate-wrapped. Dimension-group fields must be
// resolved to a specific timeframe/interval ID first (e.g.
// "order.order_date_month"), exactly as dimensions and measures already
// are by callers (spec: "Field IDs are view_name.field_name").
func (e *Engine) Render(fieldID string) (string, error) {
	if cached, ok := e.cache[fieldID]; ok {
		return cached, nil
	}
	if e.resolving[fieldID] {
		return "", model.NewQueryError(fieldID, "circular field reference")
	}
	e.resolving[fieldID] = true
	defer delete(e.resolving, fieldID)

	_, field, err := e.Project.ResolveField(fieldID)
	if err != nil {
		return "", err
	}

	var sql string
	switch {
	case field.FieldType == model.FieldTypeDimension:
		sql, err = e.Interpolate(field.ViewName, field.SQL)
	case field.FieldType == model.FieldTypeDimensionGroup && field.ParentGroup != "":
		sql, err = e.renderDerivedGroupField(field)
	case field.FieldType == model.FieldTypeDimensionGroup:
		// Bare dimension_group reference (no timeframe/interval chosen):
		// fall back to the raw/first-declared shape.
		sql, err = e.renderGroupBare(field)
	case field.FieldType == model.FieldTypeMeasure:
		sql, err = e.renderMeasure(field)
	default:
		err = model.NewQueryError(fieldID, "unknown field type")
	}
	if err != nil {
		return "", err
	}

	e.cache[fieldID] = sql
	return sql, nil
}

// RenderUnaggregated returns a measure's inner (pre-aggregate) SQL
// expression, used by the cumulative planner's subquery stage which
// selects the raw per-row value before re-aggregating over the date
// spine (spec §4.6 step 2).
func (e *Engine) RenderUnaggregated(fieldID string) (string, error) {
	_, field, err := e.Project.ResolveField(fieldID)
	if err != nil {
		return "", err
	}
	if field.FieldType != model.FieldTypeMeasure {
		return e.Render(fieldID)
	}
	return e.Interpolate(field.ViewName, field.SQL)
}

func (e *Engine) renderDerivedGroupField(field *model.Field) (string, error) {
	if field.IsTimeDimensionGroup() {
		return e.RenderTimeframe(field)
	}
	return e.RenderInterval(field)
}

func (e *Engine) renderGroupBare(field *model.Field) (string, error) {
	if field.IsTimeDimensionGroup() {
		raw := deriveTimeframe(field, model.TimeframeRaw)
		return e.RenderTimeframe(raw)
	}
	return e.Interpolate(field.ViewName, field.SQLStart)
}

func deriveTimeframe(group *model.Field, tf model.Timeframe) *model.Field {
	derived := *group
	derived.Name = group.Name + "_" + string(tf)
	derived.ParentGroup = group.Name
	derived.OwnTimeframe = tf
	return &derived
}
