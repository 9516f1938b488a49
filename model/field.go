package model

// FieldType distinguishes the three kinds of fields a view can declare.
type FieldType int

const (
	FieldTypeDimension = FieldType(iota)
	FieldTypeDimensionGroup
	FieldTypeMeasure
)

// DimensionDataType covers the `type` attribute of a plain dimension.
type DimensionDataType int

const (
	DimensionTypeString = DimensionDataType(iota)
	DimensionTypeNumber
	DimensionTypeYesNo
	DimensionTypeTier
)

// DimensionGroupType covers the `type` attribute of a dimension_group.
type DimensionGroupType int

const (
	DimensionGroupTime = DimensionGroupType(iota)
	DimensionGroupDuration
)

// MeasureType enumerates the aggregate kinds a measure can be.
type MeasureType int

const (
	MeasureCount = MeasureType(iota)
	MeasureCountDistinct
	MeasureSum
	MeasureAverage
	MeasureMedian
	MeasureMax
	MeasureMin
	MeasureNumber
	MeasureCumulative
)

// Timeframe enumerates the timeframes a time dimension_group can expand
// into. Each produces a derived field named "<name>_<timeframe>".
type Timeframe string

const (
	TimeframeRaw        Timeframe = "raw"
	TimeframeTime       Timeframe = "time"
	TimeframeDate       Timeframe = "date"
	TimeframeWeek       Timeframe = "week"
	TimeframeMonth      Timeframe = "month"
	TimeframeQuarter    Timeframe = "quarter"
	TimeframeYear       Timeframe = "year"
	TimeframeDayOfWeek  Timeframe = "day_of_week"
	TimeframeDayOfMonth Timeframe = "day_of_month"
	TimeframeHourOfDay  Timeframe = "hour_of_day"
)

// DatagroupDatatype is the underlying SQL storage type of a time
// dimension_group's column, when explicit.
type DatagroupDatatype string

const (
	DatatypeTimestamp DatagroupDatatype = "timestamp"
	DatatypeDatetime  DatagroupDatatype = "datetime"
	DatatypeDate      DatagroupDatatype = "date"
)

// Interval enumerates the units a duration dimension_group can expand
// into.
type Interval string

const (
	IntervalSecond Interval = "second"
	IntervalMinute Interval = "minute"
	IntervalHour   Interval = "hour"
	IntervalDay    Interval = "day"
	IntervalWeek   Interval = "week"
	IntervalMonth  Interval = "month"
	IntervalQuarter Interval = "quarter"
	IntervalYear   Interval = "year"
)

// Field is a dimension, dimension_group, or measure declared on a view.
// Attributes not relevant to the field's FieldType/Type are simply left
// zero-valued; see DESIGN.md for why this is a flat struct rather than a
// Go interface hierarchy (mirrors the teacher's flat Column/Index ast).
type Field struct {
	Name      string
	ViewName  string
	FieldType FieldType

	// dimension
	DimensionType DimensionDataType
	SQL           string // contains ${...} references

	// dimension_group: time
	GroupType        DimensionGroupType
	Timeframes       []Timeframe
	Datatype         DatagroupDatatype
	ConvertTimezone  *bool // nil means default true
	WeekStartDay     *Weekday

	// dimension_group: duration
	SQLStart  string
	SQLEnd    string
	Intervals []Interval

	// measure
	MeasureType    MeasureType
	Measure        string // referenced metric name, for MeasureCumulative
	CanonDate      string // canon_date: "view.timeframe_field" or bare dimension-group name
	IsMergedMetric bool
	MergedSQL      string // SQL combining ${view.metric} references, only for merged metrics

	// for derived timeframe fields created from a dimension_group at load time
	ParentGroup string    // name of the owning dimension_group field, empty if not derived
	OwnTimeframe Timeframe // the timeframe this derived field represents
}

// Weekday names the first day of a week for week-boundary arithmetic.
type Weekday int

const (
	WeekdayMonday = Weekday(iota)
	WeekdaySunday
	WeekdaySaturday
)

// ID returns the field's fully qualified "view.field" identifier.
func (f *Field) ID() string {
	return f.ViewName + "." + f.Name
}

// IsTimeDimensionGroup reports whether this field is a time-typed
// dimension_group (as opposed to duration, or a plain dimension/measure).
func (f *Field) IsTimeDimensionGroup() bool {
	return f.FieldType == FieldTypeDimensionGroup && f.GroupType == DimensionGroupTime
}

// IsDurationDimensionGroup reports whether this field is a
// duration-typed dimension_group.
func (f *Field) IsDurationDimensionGroup() bool {
	return f.FieldType == FieldTypeDimensionGroup && f.GroupType == DimensionGroupDuration
}

// ConvertTimezoneEnabled resolves the effective convert_timezone flag,
// defaulting to true when unset.
func (f *Field) ConvertTimezoneEnabled() bool {
	if f.ConvertTimezone == nil {
		return true
	}
	return *f.ConvertTimezone
}
