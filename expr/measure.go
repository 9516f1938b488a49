package expr

import (
	"github.com/metricdef/metricdef/model"
)

// renderMeasure wraps a measure's inner SQL in its aggregate form (spec
// §4.1), applying symmetric-aggregate wrapping when the design says the
// measure's home view is on a fan-out path from the base.
func (e *Engine) renderMeasure(field *model.Field) (string, error) {
	switch field.MeasureType {
	case model.MeasureCount:
		return e.maybeSymmetric(field, "COUNT(*)")
	case model.MeasureCountDistinct:
		inner, err := e.Interpolate(field.ViewName, field.SQL)
		if err != nil {
			return "", err
		}
		// COUNT(DISTINCT ...) is already fan-out safe; no wrapping needed.
		return "COUNT(DISTINCT " + inner + ")", nil
	case model.MeasureSum:
		return e.wrapAggregate(field, "SUM")
	case model.MeasureAverage:
		return e.wrapAggregate(field, "AVG")
	case model.MeasureMedian:
		inner, err := e.Interpolate(field.ViewName, field.SQL)
		if err != nil {
			return "", err
		}
		// MEDIAN is emitted unwrapped: it gets no symmetric-aggregate
		// form, even when the measure's home view fans out.
		return "MEDIAN(" + inner + ")", nil
	case model.MeasureMax:
		inner, err := e.Interpolate(field.ViewName, field.SQL)
		if err != nil {
			return "", err
		}
		return "MAX(" + inner + ")", nil // MAX/MIN are idempotent under duplication: no wrapping needed
	case model.MeasureMin:
		inner, err := e.Interpolate(field.ViewName, field.SQL)
		if err != nil {
			return "", err
		}
		return "MIN(" + inner + ")", nil
	case model.MeasureNumber:
		// Recursive expansion of sql with inner references substituted;
		// inner measures stay aggregated (spec §4.1).
		return e.Interpolate(field.ViewName, field.SQL)
	case model.MeasureCumulative:
		// The cumulative planner (package cumulative) rewrites any
		// request containing one of these before the single-query
		// generator ever renders it directly.
		return "", model.NewNotImplementedError(field.ID(), "cumulative measures must be planned, not rendered directly")
	default:
		return "", model.NewQueryError(field.ID(), "unknown measure type")
	}
}

func (e *Engine) wrapAggregate(field *model.Field, fn string) (string, error) {
	inner, err := e.Interpolate(field.ViewName, field.SQL)
	if err != nil {
		return "", err
	}
	return e.maybeSymmetric(field, fn+"("+inner+")")
}

// maybeSymmetric applies symmetric-aggregate wrapping to plain, which is
// already the plain (unwrapped) SUM/COUNT form, when field's home view
// sits on a fan-out path from the design's base view.
func (e *Engine) maybeSymmetric(field *model.Field, plain string) (string, error) {
	if e.Design == nil || !e.Design.FanOutViews[field.ViewName] {
		return plain, nil
	}
	home, ok := e.Project.View(field.ViewName)
	if !ok {
		return plain, nil
	}
	pk, ok := home.PrimaryKeyIdentifier()
	if !ok {
		// No declared home-view primary key to hash against: fall back
		// to the plain (potentially inflated) aggregate rather than fail
		// the whole compilation.
		return plain, nil
	}
	pkSQL, err := e.Render(field.ViewName + "." + pk.Name)
	if err != nil {
		return "", err
	}
	switch field.MeasureType {
	case model.MeasureCount:
		return SymmetricCount(e.Dialect, pkSQL), nil
	case model.MeasureSum:
		inner, err := e.Interpolate(field.ViewName, field.SQL)
		if err != nil {
			return "", err
		}
		return SymmetricSum(e.Dialect, inner, pkSQL), nil
	case model.MeasureAverage:
		inner, err := e.Interpolate(field.ViewName, field.SQL)
		if err != nil {
			return "", err
		}
		return SymmetricAverage(e.Dialect, inner, pkSQL), nil
	default:
		return plain, nil
	}
}
