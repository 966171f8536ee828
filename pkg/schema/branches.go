package schema

import (
	"fmt"
	"strings"
)

// Discriminant is the kind/type pair that selects one variant of a Drone document
type Discriminant struct {
	Kind string
	Type string
}

func (d Discriminant) String() string {
	if d.Type == "" {
		return d.Kind
	}
	return d.Kind + "/" + d.Type
}

// Branch is one alternative of the root union together with the discriminant it requires
type Branch struct {
	Index        int
	Discriminant Discriminant
	// Required lists the top-level properties the alternative requires
	Required []string
	// locations are the schema fragments errors of this branch are reported under
	locations []string
}

// Matches reports whether the branch describes the variant the document declares.
// A branch without a type constraint matches any type of its kind.
func (b *Branch) Matches(inferred Discriminant) bool {
	if b == nil {
		return false
	}
	return b.Discriminant.Kind == inferred.Kind &&
		(b.Discriminant.Type == "" || b.Discriminant.Type == inferred.Type)
}

func (b *Branch) requires(property string) bool {
	for _, r := range b.Required {
		if r == property {
			return true
		}
	}
	return false
}

// BranchTable maps schema locations to the root union branch they belong to
type BranchTable struct {
	branches []*Branch
}

// ForeignRequired reports whether property is required only by variants other than
// the inferred one. Properties every branch requires, or none does, are never foreign.
func (t BranchTable) ForeignRequired(inferred Discriminant, property string) bool {
	requiredBy := 0
	for _, b := range t.branches {
		if !b.requires(property) {
			continue
		}
		if b.Matches(inferred) {
			return false
		}
		requiredBy++
	}
	return requiredBy > 0 && requiredBy < len(t.branches)
}

// Lookup returns the branch whose subschema contains the given schema location
func (t BranchTable) Lookup(schemaURL string) (*Branch, bool) {
	_, fragment, found := strings.Cut(schemaURL, "#")
	if !found {
		return nil, false
	}
	fragment = "#" + fragment
	for _, b := range t.branches {
		for _, loc := range b.locations {
			if fragment == loc || strings.HasPrefix(fragment, loc+"/") {
				return b, true
			}
		}
	}
	return nil, false
}

// buildBranchTable reads the discriminant of every alternative of the root
// oneOf/anyOf. Alternatives that do not pin a kind are left out.
func buildBranchTable(root map[string]any) BranchTable {
	var table BranchTable
	for _, keyword := range []string{"oneOf", "anyOf"} {
		alternatives, _ := root[keyword].([]any)
		for i, alt := range alternatives {
			sub, _ := alt.(map[string]any)
			if sub == nil {
				continue
			}

			locations := []string{fmt.Sprintf("#/%s/%d", keyword, i)}
			if ref, ok := sub["$ref"].(string); ok && strings.HasPrefix(ref, "#/") {
				locations = append(locations, ref)
				if target, ok := resolveLocal(root, ref).(map[string]any); ok {
					sub = target
				}
			}

			d := Discriminant{
				Kind: pinnedValue(sub, "kind"),
				Type: pinnedValue(sub, "type"),
			}
			if d.Kind == "" {
				continue
			}
			table.branches = append(table.branches, &Branch{
				Index:        i,
				Discriminant: d,
				Required:     requiredProperties(sub),
				locations:    locations,
			})
		}
	}
	return table
}

func requiredProperties(sub map[string]any) []string {
	list, _ := sub["required"].([]any)
	out := make([]string, 0, len(list))
	for _, r := range list {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// pinnedValue returns the single value a property is constrained to by const or a one-element enum
func pinnedValue(sub map[string]any, property string) string {
	props, _ := sub["properties"].(map[string]any)
	p, _ := props[property].(map[string]any)
	if p == nil {
		return ""
	}
	if c, ok := p["const"].(string); ok {
		return c
	}
	if values, ok := p["enum"].([]any); ok && len(values) == 1 {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	return ""
}

// resolveLocal follows a "#/a/b" reference inside the root document
func resolveLocal(root map[string]any, ref string) any {
	var cur any = root
	for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}
