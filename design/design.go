// Package design implements the design resolver (spec §4.3): given the
// field IDs a request touches, it picks a base view, a deterministic DFS
// join order, and the functional primary key that drives symmetric
// aggregate wrapping.
package design

import (
	"sort"

	"github.com/metricdef/metricdef/joingraph"
	"github.com/metricdef/metricdef/logging"
	"github.com/metricdef/metricdef/model"
)

// JoinStep is one join emitted by the single-query generator, in the
// order the design resolver decided views should appear.
type JoinStep struct {
	View         string
	Edge         joingraph.Edge // From == parent in the DFS tree, To == View
}

// FunctionalPK is the minimal column set that uniquely identifies a row
// of the joined result (spec §4.3, §9 glossary).
type FunctionalPK struct {
	// Synthetic is true when no single base-view primary key identifies
	// a joined row (some edge out of the base fans out); measures whose
	// home view sits on the fan-out side must then be symmetric-
	// aggregate wrapped.
	Synthetic bool

	// BaseView/BaseField identify the base view's own primary key field,
	// populated whenever the base view declares one.
	BaseView  string
	BaseField string
}

// Design is the result of resolving a set of required fields against a
// project: the chosen base view, the join plan, and the functional PK.
type Design struct {
	Project      *model.Project
	Graph        *joingraph.Graph
	BaseView     string
	Joins        []JoinStep
	FunctionalPK FunctionalPK
	NoGroupBy    bool

	// FanOutViews names the near (parent) side of every edge whose
	// relationship fans out, plus every view joined below such an edge
	// (directly or transitively); measures homed there need
	// symmetric-aggregate wrapping.
	FanOutViews map[string]bool
}

// Resolve picks a base view and join plan for the given metric,
// dimension and filter field IDs, all already validated to exist.
// selectedDimensionIDs (a subset of dimensionIDs actually appearing in
// the SELECT list, as opposed to filter-only references) and
// forceGroupBy are needed to compute NoGroupBy.
func Resolve(p *model.Project, g *joingraph.Graph, metricIDs, dimensionIDs, filterIDs, selectedDimensionIDs []string, forceGroupBy bool) (*Design, error) {
	allIDs := append(append(append([]string{}, metricIDs...), dimensionIDs...), filterIDs...)
	if len(allIDs) == 0 {
		return nil, model.NewQueryError("", "request has no metrics or dimensions")
	}

	requiredViews := map[string]bool{}
	for _, id := range allIDs {
		v, _, err := p.ResolveField(id)
		if err != nil {
			return nil, err
		}
		requiredViews[v.Name] = true
	}

	base, err := pickBaseView(p, metricIDs, dimensionIDs)
	if err != nil {
		return nil, err
	}

	// All required views must share a connected component with base;
	// callers (resolver) are expected to have already routed
	// multi-component requests to the merged planner before calling
	// Resolve, but we defend here too.
	baseHash := g.Hash(base)
	for view := range requiredViews {
		if g.Hash(view) != baseHash {
			return nil, model.NewJoinError(view, "field is not joinable with the request's base view")
		}
	}

	joins, fanOutViews := planJoins(g, base, requiredViews)

	d := &Design{
		Project:     p,
		Graph:       g,
		BaseView:    base,
		Joins:       joins,
		FanOutViews: fanOutViews,
	}
	d.FunctionalPK = computeFunctionalPK(p, base, fanOutViews)
	d.NoGroupBy = computeNoGroupBy(p, base, selectedDimensionIDs, forceGroupBy)

	logging.JoinPlanChosen(base, d.OrderedJoinViews())
	for view := range fanOutViews {
		logging.FanOutWarning(base, view)
	}
	return d, nil
}

// pickBaseView implements spec §4.3 step 3: the home view of the first
// metric, or the first dimension if there are no metrics.
func pickBaseView(p *model.Project, metricIDs, dimensionIDs []string) (string, error) {
	if len(metricIDs) > 0 {
		v, _, err := p.ResolveField(metricIDs[0])
		if err != nil {
			return "", err
		}
		return v.Name, nil
	}
	if len(dimensionIDs) > 0 {
		v, _, err := p.ResolveField(dimensionIDs[0])
		if err != nil {
			return "", err
		}
		return v.Name, nil
	}
	return "", model.NewQueryError("", "request has neither metrics nor dimensions to pick a base view")
}

// planJoins performs a DFS from base, ordering children by identifier
// name (spec §4.3 step 3), pruning any subtree that contains no required
// view. It returns the join steps in DFS visitation order and the set of
// fan-out views: the near side of each fan-out edge plus every view
// reached through such an edge (directly or transitively) from base.
func planJoins(g *joingraph.Graph, base string, required map[string]bool) ([]JoinStep, map[string]bool) {
	visited := map[string]bool{base: true}
	fanOut := map[string]bool{}

	var dfs func(view string, fannedOutSoFar bool) []JoinStep
	dfs = func(view string, fannedOutSoFar bool) []JoinStep {
		var steps []JoinStep
		for _, e := range g.Neighbors(view) {
			if visited[e.To] {
				continue
			}
			if !subtreeContainsRequired(g, e.To, visited, required) {
				continue
			}
			visited[e.To] = true
			edgeFansOut := joingraph.FansOut(e.Relationship)
			if edgeFansOut {
				// The near (parent) side's rows get duplicated by this
				// join, so its measures need symmetric-aggregate
				// protection.
				fanOut[view] = true
			}
			childFannedOut := fannedOutSoFar || edgeFansOut
			if childFannedOut {
				// Once any ancestor join fans out, everything joined
				// below it rides along on the duplicated rows too.
				fanOut[e.To] = true
			}
			steps = append(steps, JoinStep{View: e.To, Edge: e})
			steps = append(steps, dfs(e.To, childFannedOut)...)
		}
		return steps
	}

	return dfs(base, false), fanOut
}

// subtreeContainsRequired reports whether some view reachable from start
// (without re-entering already-visited views) is in required. Mutates a
// scratch copy of visited so probing doesn't disturb the caller's set.
func subtreeContainsRequired(g *joingraph.Graph, start string, visited map[string]bool, required map[string]bool) bool {
	if required[start] {
		return true
	}
	scratch := map[string]bool{}
	for k := range visited {
		scratch[k] = true
	}
	scratch[start] = true
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.Neighbors(cur) {
			if scratch[e.To] {
				continue
			}
			if required[e.To] {
				return true
			}
			scratch[e.To] = true
			queue = append(queue, e.To)
		}
	}
	return false
}

// computeFunctionalPK implements spec §4.3 step 4.
func computeFunctionalPK(p *model.Project, base string, fanOut map[string]bool) FunctionalPK {
	pk := FunctionalPK{BaseView: base}
	if v, ok := p.View(base); ok {
		if ident, ok := v.PrimaryKeyIdentifier(); ok {
			pk.BaseField = ident.Name
		}
	}
	pk.Synthetic = len(fanOut) > 0
	return pk
}

// computeNoGroupBy implements spec §4.3 step 5.
func computeNoGroupBy(p *model.Project, base string, selectedDimensionIDs []string, forceGroupBy bool) bool {
	if forceGroupBy {
		return false
	}
	v, ok := p.View(base)
	if !ok {
		return false
	}
	pk, ok := v.PrimaryKeyIdentifier()
	if !ok {
		return false
	}
	pkFieldID := base + "." + pk.Name
	for _, id := range selectedDimensionIDs {
		if id == pkFieldID {
			return true
		}
	}
	return false
}

// OrderedJoinViews returns just the view names in join order, for
// callers that don't need the edge detail.
func (d *Design) OrderedJoinViews() []string {
	out := make([]string, 0, len(d.Joins))
	for _, j := range d.Joins {
		out = append(out, j.View)
	}
	return out
}

// AllViews returns the base view plus every joined view, sorted, mostly
// useful for tests and debug output.
func (d *Design) AllViews() []string {
	out := []string{d.BaseView}
	out = append(out, d.OrderedJoinViews()...)
	sort.Strings(out)
	return out
}
