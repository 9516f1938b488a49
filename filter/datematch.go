package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/model"
)

// dateLayout is the literal format spec §8 scenario 5 expects for
// `matches` bounds: a timestamp with no UTC offset, rendered in the
// project timezone.
const dateLayout = "2006-01-02T15:04:05"

// ParseNaturalLanguageDate is the small grammar over tokens (spec §9:
// "a small grammar over tokens (number, unit, last/this/next, to date)")
// that resolves a natural-language date phrase to a closed interval
// [start, end] in the given location, anchored at now. Supported forms:
// "today", "yesterday", "this/last/next <day|week|month|quarter|year>",
// "last N days", "last N weeks", "last N months", "last N years",
// "month to date", "quarter to date", "year to date".
func ParseNaturalLanguageDate(phrase string, now time.Time, loc *time.Location, weekStart model.Weekday) (time.Time, time.Time, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(phrase)))

	switch {
	case phrase == "":
		return time.Time{}, time.Time{}, fmt.Errorf("empty date phrase")
	case len(tokens) == 1 && tokens[0] == "today":
		return today, endOfDay(today), nil
	case len(tokens) == 1 && tokens[0] == "yesterday":
		y := today.AddDate(0, 0, -1)
		return y, endOfDay(y), nil
	case len(tokens) >= 2 && tokens[len(tokens)-1] == "date" && tokens[len(tokens)-2] == "to":
		unit := strings.Join(tokens[:len(tokens)-2], " ")
		return toDateRange(unit, today)
	case len(tokens) == 3 && tokens[0] == "last" && isUnitPlural(tokens[2]):
		n, err := strconv.Atoi(tokens[1])
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid count in date phrase %q", phrase)
		}
		return lastNUnits(singularUnit(tokens[2]), n, today)
	case len(tokens) == 2 && (tokens[0] == "this" || tokens[0] == "last" || tokens[0] == "next"):
		return relativeUnit(tokens[0], tokens[1], today, weekStart)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unsupported date phrase %q", phrase)
	}
}

func endOfDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
}

func isUnitPlural(u string) bool {
	switch u {
	case "days", "weeks", "months", "quarters", "years":
		return true
	default:
		return false
	}
}

func singularUnit(u string) string {
	return strings.TrimSuffix(u, "s")
}

func lastNUnits(unit string, n int, today time.Time) (time.Time, time.Time, error) {
	end := today.AddDate(0, 0, -1)
	var start time.Time
	switch unit {
	case "day":
		start = today.AddDate(0, 0, -n)
	case "week":
		start = today.AddDate(0, 0, -7*n)
	case "month":
		start = today.AddDate(0, -n, 0)
	case "quarter":
		start = today.AddDate(0, -3*n, 0)
	case "year":
		start = today.AddDate(-n, 0, 0)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unsupported unit %q", unit)
	}
	return start, endOfDay(end), nil
}

func toDateRange(unit string, today time.Time) (time.Time, time.Time, error) {
	switch unit {
	case "month":
		return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), endOfDay(today), nil
	case "quarter":
		qMonth := time.Month((int(today.Month()-1)/3)*3 + 1)
		return time.Date(today.Year(), qMonth, 1, 0, 0, 0, 0, today.Location()), endOfDay(today), nil
	case "year":
		return time.Date(today.Year(), 1, 1, 0, 0, 0, 0, today.Location()), endOfDay(today), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unsupported 'to date' unit %q", unit)
	}
}

func relativeUnit(which, unit string, today time.Time, weekStart model.Weekday) (time.Time, time.Time, error) {
	offset := map[string]int{"last": -1, "this": 0, "next": 1}[which]
	switch unit {
	case "day":
		d := today.AddDate(0, 0, offset)
		return d, endOfDay(d), nil
	case "week":
		start := startOfWeek(today, weekStart).AddDate(0, 0, 7*offset)
		return start, endOfDay(start.AddDate(0, 0, 6)), nil
	case "month":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()).AddDate(0, offset, 0)
		last := first.AddDate(0, 1, -1)
		return first, endOfDay(last), nil
	case "quarter":
		qMonth := time.Month((int(today.Month()-1)/3)*3 + 1)
		first := time.Date(today.Year(), qMonth, 1, 0, 0, 0, 0, today.Location()).AddDate(0, 3*offset, 0)
		last := first.AddDate(0, 3, -1)
		return first, endOfDay(last), nil
	case "year":
		first := time.Date(today.Year()+offset, 1, 1, 0, 0, 0, 0, today.Location())
		last := time.Date(today.Year()+offset, 12, 31, 0, 0, 0, 0, today.Location())
		return first, endOfDay(last), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unsupported unit %q", unit)
	}
}

func startOfWeek(day time.Time, weekStart model.Weekday) time.Time {
	goStart := time.Monday
	switch weekStart {
	case model.WeekdaySunday:
		goStart = time.Sunday
	case model.WeekdaySaturday:
		goStart = time.Saturday
	}
	d := day
	for d.Weekday() != goStart {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// compileMatches expands a `matches` filter into the paired >=/<= bounds
// on the DATE-truncated field (spec §4.4 + §8 scenario 5).
func (c *Compiler) compileMatches(view *model.View, field *model.Field, phrase string) (Criterion, error) {
	fieldSQL, err := c.Engine.Render(field.ID())
	if err != nil {
		return Criterion{}, err
	}
	return c.compileMatchesOnColumn(view, fieldSQL, phrase)
}

// compileMatchesOnColumn is compileMatches generalized to an arbitrary SQL
// column instead of a field's own rendered SQL, so a `matches` filter
// excluded from the cumulative planner's subquery can be re-applied as a
// HAVING bound against date_spine.date.
func (c *Compiler) compileMatchesOnColumn(view *model.View, columnSQL, phrase string) (Criterion, error) {
	loc, err := c.timezoneLocation()
	if err != nil {
		return Criterion{}, err
	}
	weekStart := view.EffectiveWeekStartDay(c.Project.WeekStartDay)
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	start, end, parseErr := ParseNaturalLanguageDate(phrase, now(), loc, weekStart)
	if parseErr != nil {
		return Criterion{}, model.NewParseError(phrase, parseErr.Error())
	}

	truncated := dialect.DateTrunc(c.Dialect, "DAY", columnSQL)
	sql := fmt.Sprintf(
		"%s >= '%s' AND %s <= '%s'",
		truncated, start.Format(dateLayout),
		truncated, end.Format(dateLayout),
	)
	return Criterion{SQL: sql, IsMeasure: false}, nil
}

func (c *Compiler) timezoneLocation() (*time.Location, error) {
	if c.Project.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Project.Timezone)
	if err != nil {
		return nil, model.NewQueryError(c.Project.Timezone, "unknown project timezone")
	}
	return loc, nil
}
