package schema

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// ValidationError is a single schema violation. Errors are produced fresh by every
// validation run and are never modified afterwards.
type ValidationError struct {
	// Path is the location of the offending instance; for additionalProperties it ends at the extra key
	Path Path
	// Keyword is the schema keyword that failed: required, enum, const, type, oneOf, ...
	Keyword string
	// Message is the validator's own wording
	Message string
	// Params holds keyword details: missingProperty, additionalProperty, allowedValue,
	// allowedValues, type, pattern and the offending value under got
	Params map[string]any
	// SchemaURL is the absolute location of the failing subschema
	SchemaURL string
	// Branch is the root union alternative the error was produced under, nil outside any
	Branch *Branch
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Param returns a string parameter, or "" when absent
func (e ValidationError) Param(name string) string {
	v, ok := e.Params[name]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Validate checks a plain-data value against the schema. It is a thin wrapper over
// Evaluate for callers that do not need to tell validator failures apart.
func (d *Document) Validate(value any) (bool, []ValidationError) {
	errs, err := d.Evaluate(value)
	if err != nil {
		log.Errorf("Schema validation failed: %s", err)
		return false, nil
	}
	return len(errs) == 0, errs
}

// Evaluate checks a plain-data value against the schema and returns the flattened
// violations. A non-nil error means the validator itself could not run.
func (d *Document) Evaluate(value any) ([]ValidationError, error) {
	if d == nil || d.compiled == nil {
		return nil, ErrNotLoaded
	}

	instance, err := normalize(value)
	if err != nil {
		return nil, err
	}

	err = d.compiled.Validate(instance)
	if err == nil {
		return nil, nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	out := d.flatten(verr, instance, nil, nil)
	if len(out) == 0 {
		out = append(out, ValidationError{
			Path:      typedPath(instance, verr.InstanceLocation),
			Keyword:   "schema",
			Message:   verr.ErrorKind.LocalizedString(printer),
			SchemaURL: verr.SchemaURL,
		})
	}
	return out, nil
}

// normalize round-trips a value through JSON so numbers and nested types match
// what the validator expects
func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document to JSON: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode document JSON: %w", err)
	}
	return instance, nil
}

// flatten walks the cause tree depth first. Leaf errors and union errors are emitted;
// wrapper nodes only contribute their branch tag.
func (d *Document) flatten(verr *jsonschema.ValidationError, instance any, branch *Branch, out []ValidationError) []ValidationError {
	if branch == nil {
		if b, ok := d.branches.Lookup(verr.SchemaURL); ok {
			branch = b
		}
	}

	path := typedPath(instance, verr.InstanceLocation)
	emit := func(p Path, keyword string, k jsonschema.ErrorKind, params map[string]any) {
		out = append(out, ValidationError{
			Path:      p,
			Keyword:   keyword,
			Message:   k.LocalizedString(printer),
			Params:    params,
			SchemaURL: verr.SchemaURL,
			Branch:    branch,
		})
	}

	switch k := verr.ErrorKind.(type) {
	case *kind.Schema, *kind.Group, *kind.Reference:
	case *kind.Required:
		for _, missing := range k.Missing {
			emit(path, "required", &kind.Required{Missing: []string{missing}},
				map[string]any{"missingProperty": missing})
		}
	case *kind.AdditionalProperties:
		for _, property := range k.Properties {
			emit(path.Child(KeySegment(property)), "additionalProperties",
				&kind.AdditionalProperties{Properties: []string{property}},
				map[string]any{"additionalProperty": property})
		}
	case *kind.Const:
		emit(path, "const", k, map[string]any{"allowedValue": k.Want, "got": k.Got})
	case *kind.Enum:
		allowed := make([]string, 0, len(k.Want))
		for _, w := range k.Want {
			allowed = append(allowed, fmt.Sprint(w))
		}
		emit(path, "enum", k, map[string]any{"allowedValues": allowed, "got": k.Got})
	case *kind.Type:
		emit(path, "type", k, map[string]any{"type": strings.Join(k.Want, ", "), "got": k.Got})
	case *kind.Pattern:
		emit(path, "pattern", k, map[string]any{"pattern": k.Want, "got": k.Got})
	default:
		if len(verr.Causes) == 0 || isUnion(verr.ErrorKind) {
			emit(path, keywordOf(verr.ErrorKind), verr.ErrorKind, nil)
		}
	}

	for _, cause := range verr.Causes {
		out = d.flatten(cause, instance, branch, out)
	}
	return out
}

func isUnion(k jsonschema.ErrorKind) bool {
	switch k.(type) {
	case *kind.OneOf, *kind.AnyOf, *kind.AllOf:
		return true
	}
	return false
}

func keywordOf(k jsonschema.ErrorKind) string {
	if kp := k.KeywordPath(); len(kp) > 0 {
		return kp[len(kp)-1]
	}
	if _, ok := k.(*kind.FalseSchema); ok {
		return "false"
	}
	return "schema"
}

// typedPath converts validator path segments into key and index segments by
// following them through the instance
func typedPath(instance any, location []string) Path {
	path := make(Path, 0, len(location))
	cur := instance
	for _, seg := range location {
		switch v := cur.(type) {
		case []any:
			if i, err := strconv.Atoi(seg); err == nil && i >= 0 && i < len(v) {
				path = append(path, IndexSegment(i))
				cur = v[i]
				continue
			}
		case map[string]any:
			path = append(path, KeySegment(seg))
			cur = v[seg]
			continue
		}
		path = append(path, KeySegment(seg))
		cur = nil
	}
	return path
}
