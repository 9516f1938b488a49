package model

import "strings"

// AllFieldsMagicName is the magic include name that expands to every
// field declared directly on the owning view.
const AllFieldsMagicName = "ALL_FIELDS"

// Set is an ordered list of field references supporting include
// ("name" or "*set_name"), exclude ("-name", "-*set_name") and the magic
// name ALL_FIELDS.
type Set struct {
	Name string
	Refs []string // as authored, in order: "*other_set", "-field", "field", "ALL_FIELDS"
}

// Resolve expands a set to a deterministic, order-preserving list of bare
// field names: includes are appended in authored order (sets recursively
// expanded), then excludes are removed, preserving the relative order of
// whatever remains.
func (s *Set) Resolve(v *View) ([]string, error) {
	included := []string{}
	seen := map[string]bool{}
	excluded := map[string]bool{}

	appendInclude := func(name string) {
		if !seen[name] {
			seen[name] = true
			included = append(included, name)
		}
	}

	resolveSetByName := func(name string) (*Set, bool) {
		for i := range v.Sets {
			if v.Sets[i].Name == name {
				return &v.Sets[i], true
			}
		}
		return nil, false
	}

	var expand func(refs []string, stack map[string]bool) error
	expand = func(refs []string, stack map[string]bool) error {
		for _, ref := range refs {
			switch {
			case ref == AllFieldsMagicName:
				for i := range v.Fields {
					appendInclude(v.Fields[i].Name)
				}
			case strings.HasPrefix(ref, "-*"):
				setName := strings.TrimPrefix(ref, "-*")
				nested, ok := resolveSetByName(setName)
				if !ok {
					return NewQueryError(setName, "set reference not found")
				}
				for _, n := range nested.Refs {
					if strings.HasPrefix(n, "-") || strings.HasPrefix(n, "*") || n == AllFieldsMagicName {
						continue
					}
					excluded[n] = true
				}
			case strings.HasPrefix(ref, "-"):
				excluded[strings.TrimPrefix(ref, "-")] = true
			case strings.HasPrefix(ref, "*"):
				setName := strings.TrimPrefix(ref, "*")
				if stack[setName] {
					return NewQueryError(setName, "circular set reference")
				}
				nested, ok := resolveSetByName(setName)
				if !ok {
					return NewQueryError(setName, "set reference not found")
				}
				stack[setName] = true
				if err := expand(nested.Refs, stack); err != nil {
					return err
				}
				delete(stack, setName)
			default:
				appendInclude(ref)
			}
		}
		return nil
	}

	if err := expand(s.Refs, map[string]bool{s.Name: true}); err != nil {
		return nil, err
	}

	result := make([]string, 0, len(included))
	for _, name := range included {
		if !excluded[name] {
			result = append(result, name)
		}
	}
	return result, nil
}
