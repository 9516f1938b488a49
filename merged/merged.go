// Package merged is the merged-results planner (spec §4.7): it buckets
// metrics by (canon_date, join_graph_hash), generates one single-query
// per bucket, and stitches the results together in an outer SELECT that
// INNER JOINs the buckets on the paired dimension columns.
package merged

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/metricdef/metricdef/design"
	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/generator"
	"github.com/metricdef/metricdef/joingraph"
	"github.com/metricdef/metricdef/logging"
	"github.com/metricdef/metricdef/model"
)

// bucketKey is the (canon_date, join_graph_hash) pair buckets are keyed
// by (spec §4.7 step 1).
type bucketKey struct {
	canonDate     string
	joinGraphHash string
}

type bucket struct {
	key       bucketKey
	baseView  string
	metricIDs []string
}

// IsMerged reports whether req spans multiple join components, or
// requests a merged metric, and so must route through this planner
// instead of the single-query generator (spec §4.7).
func IsMerged(p *model.Project, g *joingraph.Graph, req *generator.Request) (bool, error) {
	allIDs := append(append([]string{}, req.Metrics...), req.Dimensions...)
	if len(allIDs) == 0 {
		return false, nil
	}
	var firstHash string
	for i, id := range allIDs {
		v, field, err := p.ResolveField(id)
		if err != nil {
			return false, err
		}
		if field.IsMergedMetric {
			return true, nil
		}
		h := g.Hash(v.Name)
		if i == 0 {
			firstHash = h
		} else if h != firstHash {
			return true, nil
		}
	}
	return false, nil
}

// Generate emits the wrapping statement for req (spec §4.7 steps 1-5).
func Generate(p *model.Project, g *joingraph.Graph, req *generator.Request, dlct dialect.Dialect) (string, error) {
	metricBuckets, err := bucketMetrics(p, g, req)
	if err != nil {
		return "", err
	}

	keys := sortedKeys(metricBuckets)
	logging.MergedBucketsChosen(len(keys))
	cteNames := make(map[bucketKey]string, len(keys))
	for _, k := range keys {
		cteNames[k] = "bucket_" + bucketSuffix(k)
	}

	dimMapping, err := buildDimensionMapping(p, keys, metricBuckets, req.Dimensions)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	buf.WriteString("WITH ")
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(",\n")
		}
		b := metricBuckets[k]
		bucketReq, err := bucketRequest(req, b, dimMapping, k)
		if err != nil {
			return "", err
		}
		d, err := design.Resolve(p, g, bucketReq.Metrics, bucketReq.Dimensions, nil, bucketReq.Dimensions, req.ForceGroupBy)
		if err != nil {
			return "", err
		}
		sql, err := generator.Generate(p, d, bucketReq, dlct)
		if err != nil {
			return "", err
		}
		sql = strings.TrimSuffix(sql, ";")
		fmt.Fprintf(&buf, "%s AS (%s)", cteNames[k], sql)
	}

	anchor := cteNames[keys[0]]
	buf.WriteString("\nSELECT ")
	buf.WriteString(stitchedSelectList(keys, metricBuckets, req, cteNames, dimMapping))

	fmt.Fprintf(&buf, " FROM %s", anchor)
	for _, k := range keys[1:] {
		name := cteNames[k]
		cond := joinCondition(p, anchor, name, req.Dimensions, dimMapping, k, keys[0], metricBuckets)
		fmt.Fprintf(&buf, " INNER JOIN %s ON %s", name, cond)
	}

	if req.Limit != nil {
		fmt.Fprintf(&buf, " LIMIT %d", *req.Limit)
	}
	if !req.NoSemicolon && dlct.EmitsSemicolon() {
		buf.WriteString(";")
	}
	return buf.String(), nil
}

func bucketMetrics(p *model.Project, g *joingraph.Graph, req *generator.Request) (map[bucketKey]*bucket, error) {
	buckets := map[bucketKey]*bucket{}
	metricIDs, err := decomposeMergedMetrics(p, req.Metrics)
	if err != nil {
		return nil, err
	}
	for _, id := range metricIDs {
		v, field, err := p.ResolveField(id)
		if err != nil {
			return nil, err
		}
		if field.MeasureType == model.MeasureCumulative {
			return nil, model.NewNotImplementedError(id, "a merged metric cannot reference a cumulative measure")
		}
		k := bucketKey{canonDate: field.CanonDate, joinGraphHash: g.Hash(v.Name)}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{key: k, baseView: v.Name}
			buckets[k] = b
		}
		b.metricIDs = append(b.metricIDs, id)
	}
	return buckets, nil
}

// decomposeMergedMetrics expands any merged metric in ids into the
// atomic measures its MergedSQL references (spec §4.7 step 1). A merged
// metric that resolves to a cumulative measure is rejected: stitching a
// cumulative CTE pipeline's running total into a merged-results outer
// join isn't a combination this planner has a use case for yet.
func decomposeMergedMetrics(p *model.Project, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		_, field, err := p.ResolveField(id)
		if err != nil || !field.IsMergedMetric {
			out = append(out, id)
			continue
		}
		for _, ref := range extractRefsLocal(field.MergedSQL) {
			_, refField, err := p.ResolveField(ref)
			if err != nil {
				return nil, err
			}
			if refField.MeasureType == model.MeasureCumulative {
				return nil, model.NewNotImplementedError(id, "a merged metric cannot reference a cumulative measure")
			}
			out = append(out, ref)
		}
	}
	return out, nil
}

func extractRefsLocal(sql string) []string {
	var refs []string
	for {
		start := strings.Index(sql, "${")
		if start < 0 {
			break
		}
		end := strings.Index(sql[start:], "}")
		if end < 0 {
			break
		}
		refs = append(refs, sql[start+2:start+end])
		sql = sql[start+end+1:]
	}
	return refs
}

func sortedKeys(buckets map[bucketKey]*bucket) []bucketKey {
	keys := make([]bucketKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].canonDate != keys[j].canonDate {
			return keys[i].canonDate < keys[j].canonDate
		}
		return keys[i].joinGraphHash < keys[j].joinGraphHash
	})
	return keys
}

// buildDimensionMapping pairs each requested dimension to the ID it
// should be requested as within each bucket: itself when the bucket's
// component already declares it, or a declared model mapping's
// equivalent field, per spec §4.7 step 3.
func buildDimensionMapping(p *model.Project, keys []bucketKey, buckets map[bucketKey]*bucket, dimensionIDs []string) (map[bucketKey]map[string]string, error) {
	componentViews := map[bucketKey]map[string]bool{}
	for _, k := range keys {
		views, _ := allViewsInComponentOf(p, buckets[k].baseView)
		componentViews[k] = views
	}

	mapping := map[bucketKey]map[string]string{}
	for _, k := range keys {
		mapping[k] = map[string]string{}
		for _, dimID := range dimensionIDs {
			v, _, err := p.ResolveField(dimID)
			if err != nil {
				return nil, err
			}
			if componentViews[k][v.Name] {
				mapping[k][dimID] = dimID
				continue
			}
			translated, ok := p.Mappings.Translate(dimID, componentViews[k])
			if !ok {
				return nil, model.NewNotImplementedError(dimID, "dimension has no mapping into one of the request's join components")
			}
			mapping[k][dimID] = translated
		}
	}
	return mapping, nil
}

func allViewsInComponentOf(p *model.Project, view string) (map[string]bool, error) {
	// Builds a fresh join graph for the project on every call and returns
	// the members of view's connected component as a set.
	g := joingraph.Build(p)
	members, _ := g.Component(view)
	out := map[string]bool{}
	for _, m := range members {
		out[m] = true
	}
	return out, nil
}

func bucketRequest(req *generator.Request, b *bucket, mapping map[bucketKey]map[string]string, k bucketKey) (*generator.Request, error) {
	bucketDims := make([]string, 0, len(req.Dimensions))
	for _, d := range req.Dimensions {
		translated, ok := mapping[k][d]
		if !ok {
			return nil, model.NewNotImplementedError(d, "dimension could not be translated into this bucket")
		}
		bucketDims = append(bucketDims, translated)
	}
	return &generator.Request{
		Metrics:      b.metricIDs,
		Dimensions:   bucketDims,
		WhereFilters: req.WhereFilters,
		NoSemicolon:  true,
		ForceGroupBy: req.ForceGroupBy,
	}, nil
}

func stitchedSelectList(keys []bucketKey, buckets map[bucketKey]*bucket, req *generator.Request, cteNames map[bucketKey]string, mapping map[bucketKey]map[string]string) string {
	var cols []string
	anchorKey := keys[0]
	for _, dimID := range req.Dimensions {
		translated := mapping[anchorKey][dimID]
		cols = append(cols, fmt.Sprintf("%s.%s AS %s", cteNames[anchorKey], aliasOf(translated), aliasOf(dimID)))
	}
	for _, k := range keys {
		b := buckets[k]
		for _, m := range b.metricIDs {
			cols = append(cols, fmt.Sprintf("%s.%s", cteNames[k], aliasOf(m)))
		}
	}
	return strings.Join(cols, ", ")
}

func joinCondition(p *model.Project, anchorName, otherName string, dimensionIDs []string, mapping map[bucketKey]map[string]string, other, anchor bucketKey, buckets map[bucketKey]*bucket) string {
	if len(dimensionIDs) == 0 {
		return "1=1"
	}
	parts := make([]string, 0, len(dimensionIDs))
	for _, dimID := range dimensionIDs {
		anchorField := mapping[anchor][dimID]
		otherField := mapping[other][dimID]
		parts = append(parts, fmt.Sprintf("%s.%s = %s.%s", anchorName, aliasOf(anchorField), otherName, aliasOf(otherField)))
	}
	return strings.Join(parts, " AND ")
}

func aliasOf(fieldID string) string {
	return strings.ReplaceAll(fieldID, ".", "_")
}

// bucketNamespace scopes the content-derived UUIDs used for CTE names so
// they never collide with a UUID generated for an unrelated purpose.
var bucketNamespace = uuid.MustParse("6f9d6f4e-51d7-4f1a-9d3b-6a9c9f9e6b10")

// bucketSuffix derives a stable, SQL-identifier-safe fragment from a
// bucket's key. It's content-derived (uuid.NewSHA1, not uuid.New()) so
// the same request always produces the same CTE names, which matters
// for resumable/cacheable query text and for tests.
func bucketSuffix(k bucketKey) string {
	id := uuid.NewSHA1(bucketNamespace, []byte(k.canonDate+"|"+k.joinGraphHash))
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
