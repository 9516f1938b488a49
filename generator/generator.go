// Package generator is the single-query generator (spec §4.5): given a
// resolved design and a request it assembles one SELECT statement,
// delegating clause assembly to squirrel and field rendering to the
// expr engine.
package generator

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/metricdef/metricdef/design"
	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/expr"
	"github.com/metricdef/metricdef/filter"
	"github.com/metricdef/metricdef/joingraph"
	"github.com/metricdef/metricdef/model"
)

// Order is one entry of a request's order_by list.
type Order struct {
	FieldID    string
	Descending bool
}

// Request is the query the generator compiles, already reduced to field
// IDs and compiled filter trees by the resolver (spec §4.8).
type Request struct {
	Metrics       []string
	Dimensions    []string
	WhereFilters  []filter.Node
	HavingFilters []filter.Node
	OrderBy       []Order
	Limit         *int
	SelectRawSQL  []string
	NoSemicolon   bool
	ForceGroupBy  bool
}

// SelectedDimensionIDs returns the dimension IDs that appear in the
// SELECT list, as opposed to filter-only references; design.Resolve
// needs this to compute no_group_by.
func (r *Request) SelectedDimensionIDs() []string {
	return r.Dimensions
}

// Generate emits the single SQL statement for req against d (spec
// §4.5). It builds its own expression engine, scoped to this one
// compilation.
func Generate(p *model.Project, d *design.Design, req *Request, dlct dialect.Dialect) (string, error) {
	engine := expr.NewEngine(p, dlct, d)
	compiler := &filter.Compiler{Project: p, Engine: engine, Dialect: dlct}

	base, ok := p.View(d.BaseView)
	if !ok {
		return "", model.NewQueryError(d.BaseView, "base view not found")
	}

	sb := squirrel.Select()

	dimensionSQLs := make([]string, 0, len(req.Dimensions))
	for _, id := range req.Dimensions {
		sql, err := engine.Render(id)
		if err != nil {
			return "", err
		}
		alias := columnAlias(id)
		sb = sb.Column(fmt.Sprintf("%s AS %s", sql, alias))
		dimensionSQLs = append(dimensionSQLs, sql)
	}
	for _, id := range req.Metrics {
		sql, err := engine.Render(id)
		if err != nil {
			return "", err
		}
		alias := columnAlias(id)
		sb = sb.Column(fmt.Sprintf("%s AS %s", sql, alias))
	}
	for _, raw := range req.SelectRawSQL {
		sql, err := engine.Interpolate(d.BaseView, raw)
		if err != nil {
			return "", err
		}
		sb = sb.Column(sql)
	}

	sb = sb.From(fmt.Sprintf("%s %s", tableExpr(base), base.Name))

	for _, step := range d.Joins {
		clause, err := joinClause(engine, step)
		if err != nil {
			return "", err
		}
		sb = sb.JoinClause(clause)
	}

	whereParts, havingParts, err := splitFilters(compiler, req.WhereFilters, req.HavingFilters)
	if err != nil {
		return "", err
	}
	for _, w := range whereParts {
		sb = sb.Where(squirrel.Expr(w))
	}
	for _, h := range havingParts {
		sb = sb.Having(squirrel.Expr(h))
	}

	if !d.NoGroupBy && len(dimensionSQLs) > 0 {
		sb = sb.GroupBy(dimensionSQLs...)
	}

	if len(req.OrderBy) > 0 {
		for _, o := range req.OrderBy {
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			sb = sb.OrderBy(fmt.Sprintf("%s %s", columnAlias(o.FieldID), dir))
		}
	} else if len(req.Metrics) > 0 && dlct.DefaultOrderByAllowed() {
		sb = sb.OrderBy(fmt.Sprintf("%s DESC", columnAlias(req.Metrics[0])))
	}

	if req.Limit != nil {
		sb = sb.Limit(uint64(*req.Limit))
	}

	sql, _, err := sb.ToSql()
	if err != nil {
		return "", fmt.Errorf("assembling query: %w", err)
	}

	if !req.NoSemicolon && dlct.EmitsSemicolon() {
		sql += ";"
	}
	return sql, nil
}

func tableExpr(v *model.View) string {
	if v.DerivedTableSQL != "" {
		return "(" + v.DerivedTableSQL + ")"
	}
	return v.SQLTableName
}

// columnAlias implements spec §4.5's "dots replaced by underscores"
// aliasing rule.
func columnAlias(fieldID string) string {
	return strings.ReplaceAll(fieldID, ".", "_")
}

// joinClause renders one JOIN step's keyword and ON clause (spec §4.5:
// "LEFT JOIN unless the identifier declares otherwise").
func joinClause(engine *expr.Engine, step design.JoinStep) (string, error) {
	_, toView, err := resolveView(engine, step.Edge.To)
	if err != nil {
		return "", err
	}

	on, err := joinOn(engine, step.Edge)
	if err != nil {
		return "", err
	}

	keyword := "LEFT JOIN"
	switch step.Edge.JoinType {
	case model.JoinInner:
		keyword = "INNER JOIN"
	case model.JoinFullOuter:
		keyword = "FULL OUTER JOIN"
	case model.JoinCross:
		return fmt.Sprintf("CROSS JOIN %s %s", tableExpr(toView), toView.Name), nil
	}
	return fmt.Sprintf("%s %s %s ON %s", keyword, tableExpr(toView), toView.Name, on), nil
}

func resolveView(engine *expr.Engine, name string) (string, *model.View, error) {
	v, ok := engine.Project.View(name)
	if !ok {
		return "", nil, model.NewQueryError(name, "view not found while emitting join")
	}
	return name, v, nil
}

// joinOn builds the ON predicate: a custom join-typed identifier's
// sql_on after ${...} substitution, or equality of the two views' shared
// identifier field otherwise.
func joinOn(engine *expr.Engine, e joingraph.Edge) (string, error) {
	if e.SQLOn != "" {
		return engine.Interpolate(e.To, e.SQLOn)
	}
	leftSQL, err := engine.Render(e.From + "." + e.IdentifierName)
	if err != nil {
		return "", err
	}
	rightSQL, err := engine.Render(e.To + "." + e.IdentifierName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s", leftSQL, rightSQL), nil
}

// splitFilters compiles both filter lists and routes every resulting
// criterion per spec §4.5's HAVING-vs-WHERE rule: filters declared on
// the having path always stay in HAVING; where-path filters move to
// HAVING only when they target a measure.
func splitFilters(c *filter.Compiler, where, having []filter.Node) (whereParts, havingParts []string, err error) {
	for _, n := range where {
		crit, err := c.Compile(n)
		if err != nil {
			return nil, nil, err
		}
		if crit.IsMeasure {
			havingParts = append(havingParts, crit.SQL)
		} else {
			whereParts = append(whereParts, crit.SQL)
		}
	}
	for _, n := range having {
		crit, err := c.Compile(n)
		if err != nil {
			return nil, nil, err
		}
		havingParts = append(havingParts, crit.SQL)
	}
	return whereParts, havingParts, nil
}
