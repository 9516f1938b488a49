package expr

import (
	"regexp"
	"strings"
)

var refPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.]+)\}`)

// Interpolate replaces every ${...} reference inside sqlTemplate, in the
// context of currentView (used to resolve ${TABLE} and bare ${field}
// references). ${view.field} references another field anywhere in the
// project and is replaced by that field's fully-rendered SQL;
// ${TABLE} is replaced by the view's own alias, which per spec §4.5 is
// always the view name itself.
func (e *Engine) Interpolate(currentView, sqlTemplate string) (string, error) {
	var outerErr error
	result := refPattern.ReplaceAllStringFunc(sqlTemplate, func(match string) string {
		if outerErr != nil {
			return match
		}
		ref := refPattern.FindStringSubmatch(match)[1]
		replacement, err := e.resolveRef(currentView, ref)
		if err != nil {
			outerErr = err
			return match
		}
		return replacement
	})
	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

// ExtractRefs returns every bare ${...} reference name inside sqlTemplate,
// without resolving or interpolating them (used by the cumulative
// planner to detect a `number` metric that references a cumulative
// measure, per spec §4.6).
func ExtractRefs(sqlTemplate string) []string {
	matches := refPattern.FindAllStringSubmatch(sqlTemplate, -1)
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		if m[1] != "TABLE" {
			refs = append(refs, m[1])
		}
	}
	return refs
}

func (e *Engine) resolveRef(currentView, ref string) (string, error) {
	if ref == "TABLE" {
		return currentView, nil
	}
	fieldID := ref
	if !strings.Contains(ref, ".") {
		fieldID = currentView + "." + ref
	}
	return e.Render(fieldID)
}
