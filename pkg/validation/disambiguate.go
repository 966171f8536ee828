package validation

import (
	"fmt"

	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
)

// Discriminant defaults applied when a document omits kind or type
const (
	DefaultKind = "pipeline"
	DefaultType = "docker"
)

// polymorphicSubtrees are locations whose values accept several shapes. "*" matches
// any sequence index. Type errors strictly below them are union side effects.
var polymorphicSubtrees = [][]string{
	{"trigger"},
	{"steps", "*", "when"},
	{"services", "*", "when"},
}

// InferDiscriminant reads kind and type from a document value, applying the defaults
func InferDiscriminant(value any) schema.Discriminant {
	d := schema.Discriminant{Kind: DefaultKind, Type: DefaultType}
	m, ok := value.(map[string]any)
	if !ok {
		return d
	}
	if kind, ok := m["kind"].(string); ok && kind != "" {
		d.Kind = kind
	}
	if typ, ok := m["type"].(string); ok && typ != "" {
		d.Type = typ
	}
	return d
}

// target is what the stages know about the document whose errors they filter
type target struct {
	inferred schema.Discriminant
	branches schema.BranchTable
}

// stage is one filter of the disambiguation pipeline. Stages return a new slice and
// never modify their input.
type stage struct {
	name  string
	apply func(errs []schema.ValidationError, t target) []schema.ValidationError
}

// Disambiguator removes errors produced by union branches the document does not use
type Disambiguator struct {
	stages []stage
}

// NewDisambiguator returns the standard pipeline: branch pruning, the four drop rules,
// then duplicate removal
func NewDisambiguator() *Disambiguator {
	return &Disambiguator{stages: []stage{
		{name: "prune-branches", apply: pruneBranches},
		{name: "foreign-required", apply: keepIf(notForeignRequired)},
		{name: "foreign-const", apply: keepIf(notForeignConst)},
		{name: "union-summaries", apply: keepIf(notUnionSummary)},
		{name: "polymorphic-types", apply: keepIf(notPolymorphicType)},
		{name: "duplicates", apply: dedupe},
	}}
}

// Filter runs every stage over errs. branches is the root union of the schema the
// errors came from; it decides which required properties belong to which variant.
func (d *Disambiguator) Filter(errs []schema.ValidationError, inferred schema.Discriminant, branches schema.BranchTable) []schema.ValidationError {
	t := target{inferred: inferred, branches: branches}
	for _, st := range d.stages {
		before := len(errs)
		errs = st.apply(errs, t)
		if dropped := before - len(errs); dropped > 0 {
			log.Debugf("Disambiguation stage %s dropped %d of %d errors for %s", st.name, dropped, before, inferred)
		}
	}
	return errs
}

func keepIf(keep func(schema.ValidationError, target) bool) func([]schema.ValidationError, target) []schema.ValidationError {
	return func(errs []schema.ValidationError, t target) []schema.ValidationError {
		out := make([]schema.ValidationError, 0, len(errs))
		for _, e := range errs {
			if keep(e, t) {
				out = append(out, e)
			}
		}
		return out
	}
}

// pruneBranches drops errors tagged with a root union branch whose discriminant differs
// from the inferred one. When that would leave nothing, the document matches no known
// variant and the errors are kept for the remaining stages.
func pruneBranches(errs []schema.ValidationError, t target) []schema.ValidationError {
	out := make([]schema.ValidationError, 0, len(errs))
	for _, e := range errs {
		if e.Branch == nil || e.Branch.Matches(t.inferred) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return append(out, errs...)
	}
	return out
}

// notForeignRequired drops a missing top-level property that only other variants require
func notForeignRequired(e schema.ValidationError, t target) bool {
	if e.Keyword != "required" || len(e.Path) != 0 {
		return true
	}
	return !t.branches.ForeignRequired(t.inferred, e.Param("missingProperty"))
}

func notForeignConst(e schema.ValidationError, t target) bool {
	if e.Keyword != "const" || len(e.Path) != 1 || e.Path[0].IsIndex() {
		return true
	}
	allowed := fmt.Sprint(e.Params["allowedValue"])
	switch e.Path[0].Key() {
	case "kind":
		return allowed == t.inferred.Kind
	case "type":
		return allowed == t.inferred.Type
	}
	return true
}

func notUnionSummary(e schema.ValidationError, _ target) bool {
	switch e.Keyword {
	case "oneOf", "anyOf", "allOf":
		return false
	}
	return true
}

func notPolymorphicType(e schema.ValidationError, _ target) bool {
	if e.Keyword != "type" {
		return true
	}
	for _, prefix := range polymorphicSubtrees {
		if strictlyBelow(e.Path, prefix) {
			return false
		}
	}
	return true
}

func strictlyBelow(path schema.Path, prefix []string) bool {
	if len(path) <= len(prefix) {
		return false
	}
	for i, want := range prefix {
		seg := path[i]
		if want == "*" {
			if !seg.IsIndex() {
				return false
			}
			continue
		}
		if seg.IsIndex() || seg.Key() != want {
			return false
		}
	}
	return true
}

// dedupe collapses errors that agree on location, keyword and message, keeping the first
func dedupe(errs []schema.ValidationError, _ target) []schema.ValidationError {
	seen := make(map[string]bool, len(errs))
	out := make([]schema.ValidationError, 0, len(errs))
	for _, e := range errs {
		key := e.Path.Pointer() + "\x00" + e.Keyword + "\x00" + e.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
