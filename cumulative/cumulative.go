// Package cumulative is the cumulative planner (spec §4.6): it rewrites
// a request containing cumulative metrics into a CTE pipeline built
// around a dense date_spine.
package cumulative

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/metricdef/metricdef/design"
	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/expr"
	"github.com/metricdef/metricdef/filter"
	"github.com/metricdef/metricdef/generator"
	"github.com/metricdef/metricdef/logging"
	"github.com/metricdef/metricdef/model"
)

// IsCumulative reports whether req requires the cumulative pipeline:
// spec §4.6 activates it "when any requested metric is typed cumulative
// (or is a number metric whose sql references a cumulative measure)".
func IsCumulative(p *model.Project, req *generator.Request) (bool, error) {
	for _, id := range req.Metrics {
		_, field, err := p.ResolveField(id)
		if err != nil {
			return false, err
		}
		if field.MeasureType == model.MeasureCumulative {
			return true, nil
		}
		if field.MeasureType == model.MeasureNumber && referencesCumulative(p, field) {
			return true, nil
		}
	}
	return false, nil
}

func referencesCumulative(p *model.Project, field *model.Field) bool {
	for _, ref := range expr.ExtractRefs(field.SQL) {
		_, target, err := p.ResolveField(ref)
		if err != nil {
			continue
		}
		if target.MeasureType == model.MeasureCumulative {
			return true
		}
	}
	return false
}

// Generate emits the CTE pipeline for req (spec §4.6 steps 1-5).
func Generate(p *model.Project, d *design.Design, req *generator.Request, dlct dialect.Dialect) (string, error) {
	if !dlct.SupportsCumulative() {
		return "", model.NewNotImplementedError(dlct.String(), "cumulative metrics are not supported on this dialect")
	}

	cumulativeMetrics, plainMetrics, err := splitMetrics(p, req)
	if err != nil {
		return "", err
	}
	if len(cumulativeMetrics) == 0 {
		return "", model.NewQueryError("", "cumulative planner invoked with no cumulative metrics")
	}
	logging.CumulativePlanChosen(len(cumulativeMetrics))

	var buf strings.Builder
	buf.WriteString("WITH ")

	spineSQL, err := dialect.DateSpineSQL(dlct)
	if err != nil {
		return "", wrapSpineErr(err, dlct)
	}
	fmt.Fprintf(&buf, "date_spine AS (%s)", spineSQL)

	dimensionAliases := make([]string, 0, len(req.Dimensions))
	for _, id := range req.Dimensions {
		dimensionAliases = append(dimensionAliases, aliasOf(id))
	}

	aggregatedCTEs := make([]string, 0, len(cumulativeMetrics))
	for _, m := range cumulativeMetrics {
		prefix := ctePrefix(m.field.ID())

		subquerySQL, defaultDateAlias, compiler, droppedFilters, err := buildSubquery(p, d, req, m, dlct)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&buf, ",\nsubquery_%s AS (%s)", prefix, subquerySQL)

		aggregatedSQL, err := buildAggregated(prefix, defaultDateAlias, m, req, dimensionAliases, compiler, droppedFilters)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&buf, ",\naggregated_%s AS (%s)", prefix, aggregatedSQL)
		aggregatedCTEs = append(aggregatedCTEs, "aggregated_"+prefix)
	}

	anchor := aggregatedCTEs[0]
	if len(plainMetrics) > 0 {
		baseReq := *req
		baseReq.Metrics = plainMetrics
		baseSQL, err := generator.Generate(p, d, &baseReq, dlct)
		if err != nil {
			return "", err
		}
		baseSQL = strings.TrimSuffix(baseSQL, ";")
		fmt.Fprintf(&buf, ",\nbase AS (%s)", baseSQL)
		anchor = "base"
	}

	buf.WriteString("\nSELECT ")
	selectCols := make([]string, 0, len(dimensionAliases)+len(cumulativeMetrics)+len(plainMetrics))
	for _, a := range dimensionAliases {
		selectCols = append(selectCols, fmt.Sprintf("%s.%s", anchor, a))
	}
	for _, m := range cumulativeMetrics {
		prefix := ctePrefix(m.field.ID())
		selectCols = append(selectCols, fmt.Sprintf("aggregated_%s.%s AS %s", prefix, measureAlias(m.field), aliasOf(m.field.ID())))
	}
	for _, id := range plainMetrics {
		selectCols = append(selectCols, fmt.Sprintf("base.%s", aliasOf(id)))
	}
	buf.WriteString(strings.Join(selectCols, ", "))

	fmt.Fprintf(&buf, " FROM %s", anchor)
	for _, cte := range aggregatedCTEs {
		if cte == anchor {
			continue
		}
		buf.WriteString(" INNER JOIN ")
		buf.WriteString(cte)
		buf.WriteString(" ON ")
		buf.WriteString(joinCondition(anchor, cte, dimensionAliases))
	}

	if req.Limit != nil {
		fmt.Fprintf(&buf, " LIMIT %d", *req.Limit)
	}
	if !req.NoSemicolon && dlct.EmitsSemicolon() {
		buf.WriteString(";")
	}
	return buf.String(), nil
}

type cumulativeMetric struct {
	field       *model.Field
	view        string
	defaultDate string
}

func splitMetrics(p *model.Project, req *generator.Request) ([]cumulativeMetric, []string, error) {
	var cumulativeMetrics []cumulativeMetric
	var plain []string
	for _, id := range req.Metrics {
		v, field, err := p.ResolveField(id)
		if err != nil {
			return nil, nil, err
		}
		if field.MeasureType != model.MeasureCumulative {
			plain = append(plain, id)
			continue
		}
		if v.DefaultDate == "" {
			return nil, nil, model.NewQueryError(id, "cumulative measure's view has no default_date")
		}
		cumulativeMetrics = append(cumulativeMetrics, cumulativeMetric{field: field, view: v.Name, defaultDate: v.DefaultDate})
	}
	return cumulativeMetrics, plain, nil
}

// buildSubquery emits spec §4.6 step 2: a non-aggregated selection of
// M's referenced measure, its home view's default_date, the requested
// dimensions, and every WHERE except those on the default date. The
// filters excluded from this subquery's WHERE are returned alongside the
// compiler that rendered it, so buildAggregated can re-apply them as a
// HAVING bound on date_spine.date instead.
func buildSubquery(p *model.Project, d *design.Design, req *generator.Request, m cumulativeMetric, dlct dialect.Dialect) (string, string, *filter.Compiler, []filter.Node, error) {
	engine := expr.NewEngine(p, dlct, d)
	compiler := &filter.Compiler{Project: p, Engine: engine, Dialect: dlct}

	referencedSQL, err := engine.RenderUnaggregated(m.view + "." + m.field.Measure)
	if err != nil {
		return "", "", nil, nil, err
	}
	defaultDateID := m.view + "." + m.defaultDate + "_date"
	dateSQL, err := engine.Render(defaultDateID)
	if err != nil {
		return "", "", nil, nil, err
	}

	var cols []string
	cols = append(cols, fmt.Sprintf("%s AS subquery_value", referencedSQL))
	cols = append(cols, fmt.Sprintf("%s AS subquery_date", dateSQL))
	for _, id := range req.Dimensions {
		dimSQL, err := engine.Render(id)
		if err != nil {
			return "", "", nil, nil, err
		}
		cols = append(cols, fmt.Sprintf("%s AS %s", dimSQL, aliasOf(id)))
	}

	base, _ := p.View(d.BaseView)
	var buf strings.Builder
	fmt.Fprintf(&buf, "SELECT %s FROM %s %s", strings.Join(cols, ", "), tableExprOf(base), base.Name)
	for _, step := range d.Joins {
		to, _ := p.View(step.Edge.To)
		on, err := joinOn(engine, step)
		if err != nil {
			return "", "", nil, nil, err
		}
		fmt.Fprintf(&buf, " LEFT JOIN %s %s ON %s", tableExprOf(to), to.Name, on)
	}

	var whereParts []string
	var droppedFilters []filter.Node
	for _, n := range req.WhereFilters {
		if filterTargetsDefaultDate(n, defaultDateID) {
			droppedFilters = append(droppedFilters, n)
			continue
		}
		crit, err := compiler.Compile(n)
		if err != nil {
			return "", "", nil, nil, err
		}
		if !crit.IsMeasure {
			whereParts = append(whereParts, crit.SQL)
		}
	}
	if len(whereParts) > 0 {
		buf.WriteString(" WHERE ")
		buf.WriteString(strings.Join(whereParts, " AND "))
	}
	return buf.String(), "subquery_date", compiler, droppedFilters, nil
}

// buildAggregated emits spec §4.6 step 3: joins date_spine to the
// subquery on subquery.<date> <= date_spine.date, aggregates via M's
// aggregate function, and re-applies any default-date WHERE excluded from
// the subquery as a HAVING on date_spine.date.
func buildAggregated(prefix, dateAlias string, m cumulativeMetric, req *generator.Request, dimensionAliases []string, compiler *filter.Compiler, droppedFilters []filter.Node) (string, error) {
	cols := []string{"date_spine.date AS cumulative_date"}
	for _, a := range dimensionAliases {
		cols = append(cols, fmt.Sprintf("subquery_%s.%s", prefix, a))
	}
	cols = append(cols, fmt.Sprintf("%s AS %s", aggregateExpr(m.field, fmt.Sprintf("subquery_%s.subquery_value", prefix)), measureAlias(m.field)))

	var buf strings.Builder
	fmt.Fprintf(&buf, "SELECT %s FROM date_spine LEFT JOIN subquery_%s ON subquery_%s.%s <= date_spine.date",
		strings.Join(cols, ", "), prefix, prefix, dateAlias)

	groupCols := []string{"date_spine.date"}
	for _, a := range dimensionAliases {
		groupCols = append(groupCols, fmt.Sprintf("subquery_%s.%s", prefix, a))
	}
	fmt.Fprintf(&buf, " GROUP BY %s", strings.Join(groupCols, ", "))

	if len(droppedFilters) > 0 {
		havingParts := make([]string, 0, len(droppedFilters))
		for _, n := range droppedFilters {
			crit, err := compiler.CompileOnColumn(n, "date_spine.date")
			if err != nil {
				return "", err
			}
			havingParts = append(havingParts, crit.SQL)
		}
		fmt.Fprintf(&buf, " HAVING %s", strings.Join(havingParts, " AND "))
	}
	return buf.String(), nil
}

// aggregateExpr renders M's aggregate over column. It always emits SUM;
// the aggregate type of the measure M references is not consulted.
func aggregateExpr(field *model.Field, column string) string {
	return fmt.Sprintf("SUM(%s)", column)
}

func joinOn(engine *expr.Engine, step design.JoinStep) (string, error) {
	e := step.Edge
	if e.SQLOn != "" {
		return engine.Interpolate(e.To, e.SQLOn)
	}
	left, err := engine.Render(e.From + "." + e.IdentifierName)
	if err != nil {
		return "", err
	}
	right, err := engine.Render(e.To + "." + e.IdentifierName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s", left, right), nil
}

func tableExprOf(v *model.View) string {
	if v.DerivedTableSQL != "" {
		return "(" + v.DerivedTableSQL + ")"
	}
	return v.SQLTableName
}

// filterTargetsDefaultDate reports whether n is a field filter on the
// given field ID (spec §4.6 step 2: default-date WHEREs move to the date
// spine instead). Only top-level field filters are checked: a date filter
// inside an and/or group is not detected and stays in the subquery's
// WHERE.
func filterTargetsDefaultDate(n filter.Node, defaultDateID string) bool {
	if n.IsField() {
		return strings.HasPrefix(n.Field, defaultDateID)
	}
	return false
}

func aliasOf(fieldID string) string {
	return strings.ReplaceAll(fieldID, ".", "_")
}

func measureAlias(field *model.Field) string {
	return aliasOf(field.ID())
}

// ctePrefix derives a stable CTE name fragment from a measure's field ID.
// A hash, not the field's own name, keeps two distinctly-scoped measures
// that happen to share a bare name (e.g. "count" on two different views)
// from colliding in the WITH clause.
func ctePrefix(fieldID string) string {
	sum := sha1.Sum([]byte(fieldID))
	return hex.EncodeToString(sum[:])[:10]
}

func joinCondition(left, right string, dimensionAliases []string) string {
	if len(dimensionAliases) == 0 {
		return "1=1"
	}
	parts := make([]string, len(dimensionAliases))
	for i, a := range dimensionAliases {
		parts[i] = fmt.Sprintf("%s.%s = %s.%s", left, a, right, a)
	}
	return strings.Join(parts, " AND ")
}

func wrapSpineErr(err error, dlct dialect.Dialect) error {
	if dialect.IsNotImplementedDateSpine(err) {
		return model.NewNotImplementedError(dlct.String(), "date spine generation is not implemented for this dialect")
	}
	return err
}
