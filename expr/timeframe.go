package expr

import (
	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/model"
)

// RenderTimeframe renders a single derived timeframe field of a time
// dimension_group (spec §4.1).
func (e *Engine) RenderTimeframe(field *model.Field) (string, error) {
	_, group, err := e.Project.ResolveField(field.ViewName + "." + field.ParentGroup)
	if err != nil {
		return "", err
	}

	col, err := e.Interpolate(field.ViewName, group.SQL)
	if err != nil {
		return "", err
	}

	raw := col
	if group.ConvertTimezoneEnabled() {
		raw = dialect.ConvertTimezone(e.Dialect, e.Project.Timezone, col)
	}

	switch field.OwnTimeframe {
	case model.TimeframeRaw:
		return raw, nil
	case model.TimeframeTime:
		return dialect.CastTimestamp(e.Dialect, raw), nil
	case model.TimeframeDate:
		return dialect.DateTrunc(e.Dialect, "DAY", raw), nil
	case model.TimeframeWeek:
		view, _ := e.Project.View(field.ViewName)
		weekStart := view.EffectiveWeekStartDay(e.Project.WeekStartDay)
		return dialect.WeekTrunc(e.Dialect, weekStart, raw), nil
	case model.TimeframeMonth:
		return dialect.DateTrunc(e.Dialect, "MONTH", raw), nil
	case model.TimeframeQuarter:
		return dialect.DateTrunc(e.Dialect, "QUARTER", raw), nil
	case model.TimeframeYear:
		return dialect.DateTrunc(e.Dialect, "YEAR", raw), nil
	case model.TimeframeDayOfWeek:
		return dialect.DayOfWeek(e.Dialect, raw), nil
	case model.TimeframeDayOfMonth:
		return dialect.DayOfMonth(e.Dialect, raw), nil
	case model.TimeframeHourOfDay:
		return dialect.HourOfDay(e.Dialect, raw), nil
	default:
		return "", model.NewQueryError(field.ID(), "unsupported timeframe")
	}
}
