package model

import "fmt"

// FromDict builds a Project from the map-of-maps shape an external
// YAML/LookML loader would hand the compiler (spec §6: "the core assumes
// the model is already parsed into in-memory dictionaries"). This is an
// object-construction convenience for tests and the CLI demo, not a
// YAML/LookML parser — it never reads a file or a byte stream.
func FromDict(dict map[string]any) (*Project, error) {
	timezone, _ := dict["timezone"].(string)
	weekStart := parseWeekday(stringOr(dict["week_start_day"], "monday"))

	p := NewProject(timezone, weekStart)

	if rawMappings, ok := dict["mappings"].([]any); ok {
		for _, rm := range rawMappings {
			m, err := mappingFromDict(asMap(rm))
			if err != nil {
				return nil, err
			}
			p.Mappings = append(p.Mappings, m)
		}
	}

	rawViews, _ := dict["views"].([]any)
	for _, rv := range rawViews {
		v, err := viewFromDict(asMap(rv))
		if err != nil {
			return nil, err
		}
		p.AddView(v)
	}

	return p, nil
}

func mappingFromDict(d map[string]any) (Mapping, error) {
	name, _ := d["name"].(string)
	if name == "" {
		return Mapping{}, fmt.Errorf("mapping missing name")
	}
	fields := stringSlice(d["fields"])
	return Mapping{Name: name, Fields: fields}, nil
}

func viewFromDict(d map[string]any) (*View, error) {
	name, _ := d["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("view missing name")
	}
	v := &View{
		Name:            name,
		SQLTableName:    stringOr(d["sql_table_name"], ""),
		DerivedTableSQL: stringOr(d["derived_table_sql"], ""),
		DefaultDate:     stringOr(d["default_date"], ""),
		Connection:      stringOr(d["connection"], ""),
	}
	if ws, ok := d["week_start_day"].(string); ok {
		wd := parseWeekday(ws)
		v.WeekStartDay = &wd
	}

	for _, ri := range asSlice(d["identifiers"]) {
		ident, err := identifierFromDict(asMap(ri))
		if err != nil {
			return nil, err
		}
		v.Identifiers = append(v.Identifiers, ident)
	}

	for _, rf := range asSlice(d["fields"]) {
		f, err := fieldFromDict(name, asMap(rf))
		if err != nil {
			return nil, err
		}
		v.Fields = append(v.Fields, f)
	}

	for _, rs := range asSlice(d["sets"]) {
		sm := asMap(rs)
		v.Sets = append(v.Sets, Set{
			Name: stringOr(sm["name"], ""),
			Refs: stringSlice(sm["fields"]),
		})
	}

	return v, nil
}

func identifierFromDict(d map[string]any) (Identifier, error) {
	name, _ := d["name"].(string)
	if name == "" {
		return Identifier{}, fmt.Errorf("identifier missing name")
	}
	ident := Identifier{
		Name:           name,
		Type:           parseIdentifierType(stringOr(d["type"], "foreign")),
		SubIdentifiers: stringSlice(d["identifiers"]),
		Reference:      stringOr(d["reference"], ""),
		SQLOn:          stringOr(d["sql_on"], ""),
		JoinType:       parseJoinType(stringOr(d["join_type"], "left_outer")),
		Relationship:   parseRelationship(stringOr(d["relationship"], "many_to_one")),
	}
	return ident, nil
}

func fieldFromDict(viewName string, d map[string]any) (Field, error) {
	name, _ := d["name"].(string)
	if name == "" {
		return Field{}, fmt.Errorf("field missing name")
	}
	f := Field{
		Name:     name,
		ViewName: viewName,
	}
	switch stringOr(d["field_type"], "dimension") {
	case "dimension":
		f.FieldType = FieldTypeDimension
		f.DimensionType = parseDimensionType(stringOr(d["type"], "string"))
		f.SQL = stringOr(d["sql"], "")
	case "dimension_group":
		f.FieldType = FieldTypeDimensionGroup
		switch stringOr(d["type"], "time") {
		case "duration":
			f.GroupType = DimensionGroupDuration
			f.SQLStart = stringOr(d["sql_start"], "")
			f.SQLEnd = stringOr(d["sql_end"], "")
			f.Intervals = intervalSlice(d["intervals"])
		default:
			f.GroupType = DimensionGroupTime
			f.SQL = stringOr(d["sql"], "")
			f.Timeframes = timeframeSlice(d["timeframes"])
			if dt, ok := d["datatype"].(string); ok {
				f.Datatype = DatagroupDatatype(dt)
			}
			if ct, ok := d["convert_timezone"].(bool); ok {
				f.ConvertTimezone = &ct
			}
		}
	case "measure":
		f.FieldType = FieldTypeMeasure
		f.MeasureType = parseMeasureType(stringOr(d["type"], "count"))
		f.SQL = stringOr(d["sql"], "")
		f.Measure = stringOr(d["measure"], "")
		f.CanonDate = stringOr(d["canon_date"], "")
		f.IsMergedMetric, _ = d["is_merged_metric"].(bool)
		f.MergedSQL = stringOr(d["merged_sql"], "")
	default:
		return Field{}, fmt.Errorf("field %q has unknown field_type", name)
	}
	return f, nil
}

func parseIdentifierType(s string) IdentifierType {
	switch s {
	case "primary":
		return IdentifierPrimary
	case "join":
		return IdentifierJoin
	default:
		return IdentifierForeign
	}
}

func parseJoinType(s string) JoinType {
	switch s {
	case "inner":
		return JoinInner
	case "full_outer":
		return JoinFullOuter
	case "cross":
		return JoinCross
	default:
		return JoinLeftOuter
	}
}

func parseRelationship(s string) Relationship {
	switch s {
	case "one_to_one":
		return RelationshipOneToOne
	case "one_to_many":
		return RelationshipOneToMany
	case "many_to_many":
		return RelationshipManyToMany
	default:
		return RelationshipManyToOne
	}
}

func parseDimensionType(s string) DimensionDataType {
	switch s {
	case "number":
		return DimensionTypeNumber
	case "yesno":
		return DimensionTypeYesNo
	case "tier":
		return DimensionTypeTier
	default:
		return DimensionTypeString
	}
}

func parseMeasureType(s string) MeasureType {
	switch s {
	case "count_distinct":
		return MeasureCountDistinct
	case "sum":
		return MeasureSum
	case "average":
		return MeasureAverage
	case "median":
		return MeasureMedian
	case "max":
		return MeasureMax
	case "min":
		return MeasureMin
	case "number":
		return MeasureNumber
	case "cumulative":
		return MeasureCumulative
	default:
		return MeasureCount
	}
}

func parseWeekday(s string) Weekday {
	switch s {
	case "sunday":
		return WeekdaySunday
	case "saturday":
		return WeekdaySaturday
	default:
		return WeekdayMonday
	}
}

func timeframeSlice(v any) []Timeframe {
	var out []Timeframe
	for _, s := range stringSlice(v) {
		out = append(out, Timeframe(s))
	}
	return out
}

func intervalSlice(v any) []Interval {
	var out []Interval
	for _, s := range stringSlice(v) {
		out = append(out, Interval(s))
	}
	return out
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}
