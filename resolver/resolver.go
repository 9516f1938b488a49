package resolver

import (
	"strings"

	"github.com/metricdef/metricdef/connection"
	"github.com/metricdef/metricdef/cumulative"
	"github.com/metricdef/metricdef/design"
	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/expr"
	"github.com/metricdef/metricdef/filter"
	"github.com/metricdef/metricdef/generator"
	"github.com/metricdef/metricdef/joingraph"
	"github.com/metricdef/metricdef/merged"
	"github.com/metricdef/metricdef/model"
)

// Result is what Compile returns: the generated SQL plus the connection
// it should run against (spec §4.8's "derives and exposes the chosen
// connection" — Compile never opens or executes it).
type Result struct {
	SQL        string
	Connection *connection.Info
}

// Compile parses raw, classifies it as single/cumulative/merged, and
// dispatches to the matching planner (spec §4.8).
func Compile(p *model.Project, registry *connection.Registry, raw *RawRequest) (*Result, error) {
	dlct, ok := dialect.Parse(raw.QueryType)
	if !ok {
		return nil, model.NewQueryError(raw.QueryType, "unknown query_type")
	}

	req, err := ParseRequest(raw)
	if err != nil {
		return nil, err
	}
	if err := validateLiteralFilters(dlct, req.WhereFilters, req.HavingFilters); err != nil {
		return nil, err
	}

	g := joingraph.Build(p)

	isMerged, err := merged.IsMerged(p, g, req)
	if err != nil {
		return nil, err
	}
	if isMerged {
		sql, err := merged.Generate(p, g, req, dlct)
		if err != nil {
			return nil, err
		}
		conn, err := resolveConnection(p, registry, req.Metrics, req.Dimensions)
		if err != nil {
			return nil, err
		}
		return &Result{SQL: sql, Connection: conn}, nil
	}

	filterIDs := referencedFieldIDs(p, req.WhereFilters, req.HavingFilters)
	d, err := design.Resolve(p, g, req.Metrics, req.Dimensions, filterIDs, req.SelectedDimensionIDs(), req.ForceGroupBy)
	if err != nil {
		return nil, err
	}

	isCumulative, err := cumulative.IsCumulative(p, req)
	if err != nil {
		return nil, err
	}

	var sql string
	if isCumulative {
		sql, err = cumulative.Generate(p, d, req, dlct)
	} else {
		sql, err = generator.Generate(p, d, req, dlct)
	}
	if err != nil {
		return nil, err
	}

	conn, err := registry.Resolve(connectionName(p, d.BaseView))
	if err != nil {
		return nil, err
	}
	return &Result{SQL: sql, Connection: conn}, nil
}

// resolveConnection looks up the connection for a merged request, whose
// design spans several join components: every bucket's base view must
// declare the same connection, since a single SQL statement can only run
// against one.
func resolveConnection(p *model.Project, registry *connection.Registry, metricIDs, dimensionIDs []string) (*connection.Info, error) {
	var name string
	for _, id := range append(append([]string{}, metricIDs...), dimensionIDs...) {
		v, _, err := p.ResolveField(id)
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = v.Connection
			continue
		}
		if v.Connection != name {
			return nil, model.NewNotImplementedError(id, "merged request spans views declaring different connections")
		}
	}
	return registry.Resolve(name)
}

func connectionName(p *model.Project, viewName string) string {
	if v, ok := p.View(viewName); ok {
		return v.Connection
	}
	return ""
}

// validateLiteralFilters runs validateLiteralSQL over every literal node
// in the given filter trees, recursing into groups.
func validateLiteralFilters(dlct dialect.Dialect, filterLists ...[]filter.Node) error {
	var walk func(n filter.Node) error
	walk = func(n filter.Node) error {
		switch {
		case n.IsLiteral():
			return validateLiteralSQL(dlct, n.Literal)
		case n.IsGroup():
			for _, c := range n.Conditions {
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, nodes := range filterLists {
		for _, n := range nodes {
			if err := walk(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// referencedFieldIDs collects every field ID a filter tree touches, so
// design.Resolve can extend the join plan to cover filter-only fields
// that never appear in the select list. A literal filter's ${...}
// substitutions are always genuine field references; its bare tokenized
// identifiers are table/column text the literal author wrote directly,
// so only the ones that happen to also name a project field are kept —
// tokenizeIdentifiers is a lexical scan, not a semantic one, and most of
// what it finds in a hand-written literal won't be a field ID at all.
func referencedFieldIDs(p *model.Project, filterLists ...[]filter.Node) []string {
	var out []string
	var walk func(n filter.Node)
	walk = func(n filter.Node) {
		switch {
		case n.IsField():
			out = append(out, n.Field)
		case n.IsLiteral():
			out = append(out, expr.ExtractRefs(n.Literal)...)
			for _, tok := range tokenizeIdentifiers(n.Literal) {
				if !strings.Contains(tok, ".") {
					continue
				}
				if _, _, err := p.ResolveField(tok); err == nil {
					out = append(out, tok)
				}
			}
		case n.IsGroup():
			for _, c := range n.Conditions {
				walk(c)
			}
		}
	}
	for _, nodes := range filterLists {
		for _, n := range nodes {
			walk(n)
		}
	}
	return out
}
