package expr

import (
	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/model"
)

// RenderInterval renders a single derived interval field of a duration
// dimension_group (spec §4.1). An unsupported unit (e.g. millisecond)
// raises AccessDeniedOrDoesNotExist, matching spec §4.1's
// duration-specific error carve-out (narrower than the project-wide
// "field not found" use of the same error kind).
func (e *Engine) RenderInterval(field *model.Field) (string, error) {
	_, group, err := e.Project.ResolveField(field.ViewName + "." + field.ParentGroup)
	if err != nil {
		return "", err
	}
	if len(field.Intervals) != 1 {
		return "", model.NewQueryError(field.ID(), "derived interval field must carry exactly one interval")
	}
	unit := field.Intervals[0]
	if !dialect.SupportsInterval(unit) {
		return "", model.NewAccessDeniedOrDoesNotExist(field.ID())
	}

	start, err := e.Interpolate(field.ViewName, group.SQLStart)
	if err != nil {
		return "", err
	}
	end, err := e.Interpolate(field.ViewName, group.SQLEnd)
	if err != nil {
		return "", err
	}
	return dialect.DateDiff(e.Dialect, unit, start, end), nil
}
