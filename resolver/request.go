// Package resolver is the top-level resolver (spec §4.8): it parses a
// request's filter/order clauses, classifies it as single, cumulative,
// or merged, dispatches to the matching planner, and exposes the
// connection the resulting SQL should run against.
package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/metricdef/metricdef/filter"
	"github.com/metricdef/metricdef/generator"
	"github.com/metricdef/metricdef/model"
)

// RawRequest is the programmatic request shape spec §6 describes:
// metrics/dimensions as field IDs, where/having/order_by each either a
// literal SQL string or a structured list, and an optional limit,
// dialect hint, and raw select-list passthrough.
type RawRequest struct {
	Metrics      []string
	Dimensions   []string
	Where        any // string | []map[string]any
	Having       any // string | []map[string]any
	OrderBy      any // string | []map[string]any
	Limit        *int
	QueryType    string
	SelectRawSQL []string
	NoSemicolon  bool
	ForceGroupBy bool
}

// ParseRequest turns raw into a generator.Request, parsing whichever
// shape where/having/order_by were given in.
func ParseRequest(raw *RawRequest) (*generator.Request, error) {
	where, err := parseFilterClause(raw.Where)
	if err != nil {
		return nil, err
	}
	having, err := parseFilterClause(raw.Having)
	if err != nil {
		return nil, err
	}
	order, err := parseOrderClause(raw.OrderBy)
	if err != nil {
		return nil, err
	}
	return &generator.Request{
		Metrics:       raw.Metrics,
		Dimensions:    raw.Dimensions,
		WhereFilters:  where,
		HavingFilters: having,
		OrderBy:       order,
		Limit:         raw.Limit,
		SelectRawSQL:  raw.SelectRawSQL,
		NoSemicolon:   raw.NoSemicolon,
		ForceGroupBy:  raw.ForceGroupBy,
	}, nil
}

// parseFilterClause accepts nil, a literal SQL string, or a list of
// filter-object dicts, per spec §4.4's "Filter object shape" and §4.8's
// "either literal SQL ... or lists of filter objects".
func parseFilterClause(raw any) ([]filter.Node, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []filter.Node{filter.LiteralSQL(v)}, nil
	case []any:
		nodes := make([]filter.Node, 0, len(v))
		for _, item := range v {
			d, ok := item.(map[string]any)
			if !ok {
				return nil, model.NewParseError(fmt.Sprintf("%v", item), "filter entry is not an object")
			}
			n, err := parseFilterNode(d)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
		return nodes, nil
	default:
		return nil, model.NewParseError(fmt.Sprintf("%v", raw), "unsupported filter clause shape")
	}
}

func parseFilterNode(d map[string]any) (filter.Node, error) {
	if lit, ok := d["literal"].(string); ok {
		return filter.LiteralSQL(lit), nil
	}
	if rawConditions, ok := d["conditions"].([]any); ok {
		logical := filter.And
		if lo, ok := d["logical_operator"].(string); ok && strings.EqualFold(lo, "or") {
			logical = filter.Or
		}
		children := make([]filter.Node, 0, len(rawConditions))
		for _, c := range rawConditions {
			cd, ok := c.(map[string]any)
			if !ok {
				return filter.Node{}, model.NewParseError(fmt.Sprintf("%v", c), "filter condition is not an object")
			}
			child, err := parseFilterNode(cd)
			if err != nil {
				return filter.Node{}, err
			}
			children = append(children, child)
		}
		return filter.Group(logical, children...), nil
	}
	field, _ := d["field"].(string)
	if field == "" {
		return filter.Node{}, model.NewParseError("", "filter object has neither field, literal, nor conditions")
	}
	expression, _ := d["expression"].(string)
	value := stringifyValue(d["value"])
	return filter.Field(field, filter.Expression(expression), value), nil
}

// parseOrderClause accepts nil, a comma-separated "field[ desc]" string,
// or a list of {field, descending} dicts.
func parseOrderClause(raw any) ([]generator.Order, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out []generator.Order
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			fields := strings.Fields(part)
			o := generator.Order{FieldID: fields[0]}
			if len(fields) > 1 && strings.EqualFold(fields[1], "desc") {
				o.Descending = true
			}
			out = append(out, o)
		}
		return out, nil
	case []any:
		out := make([]generator.Order, 0, len(v))
		for _, item := range v {
			d, ok := item.(map[string]any)
			if !ok {
				return nil, model.NewParseError(fmt.Sprintf("%v", item), "order entry is not an object")
			}
			field, _ := d["field"].(string)
			if field == "" {
				return nil, model.NewParseError("", "order entry missing field")
			}
			desc, _ := d["descending"].(bool)
			out = append(out, generator.Order{FieldID: field, Descending: desc})
		}
		return out, nil
	default:
		return nil, model.NewParseError(fmt.Sprintf("%v", raw), "unsupported order_by clause shape")
	}
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
