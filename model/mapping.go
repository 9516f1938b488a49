package model

// Mapping bundles equivalent dimension references across views so the
// merged-results planner (merged package) can align dimensions between
// independently-generated subqueries.
type Mapping struct {
	Name   string
	Fields []string // fully-qualified "view.field" references considered equivalent
}

// Mappings is the project-level collection of declared mappings.
type Mappings []Mapping

// Find returns the mapping, if any, that contains the given field ID.
func (ms Mappings) Find(fieldID string) (*Mapping, bool) {
	for i := range ms {
		for _, f := range ms[i].Fields {
			if f == fieldID {
				return &ms[i], true
			}
		}
	}
	return nil, false
}

// Translate finds a field ID equivalent to fieldID that belongs to one of
// the views in candidateViews, via a declared mapping. Returns false if
// no mapping covers fieldID or none of its peers live in candidateViews.
func (ms Mappings) Translate(fieldID string, candidateViews map[string]bool) (string, bool) {
	m, ok := ms.Find(fieldID)
	if !ok {
		return "", false
	}
	for _, f := range m.Fields {
		if f == fieldID {
			continue
		}
		view, _ := splitFieldID(f)
		if candidateViews[view] {
			return f, true
		}
	}
	return "", false
}
