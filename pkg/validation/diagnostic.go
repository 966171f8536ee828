package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dipievil/drone-ci-ex-helper/internal/mapper"
	"github.com/dipievil/drone-ci-ex-helper/pkg/constants"
	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/dipievil/drone-ci-ex-helper/pkg/parser"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
)

// Severity follows the language server protocol numbering
type Severity int

// SeverityError is the only severity this engine produces
const SeverityError Severity = 1

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// RelatedInformation points at a location that explains a diagnostic
type RelatedInformation struct {
	Range   document.Range `json:"range"`
	Message string         `json:"message"`
}

// Diagnostic is one user-facing problem report
type Diagnostic struct {
	Span     document.Span        `json:"-"`
	Range    document.Range       `json:"range"`
	Severity Severity             `json:"severity"`
	Message  string               `json:"message"`
	Source   string               `json:"source"`
	Keyword  string               `json:"keyword,omitempty"`
	Path     string               `json:"path,omitempty"`
	Related  []RelatedInformation `json:"relatedInformation,omitempty"`
}

// BuildParseDiagnostic reports a YAML syntax error
func BuildParseDiagnostic(doc *document.Document, err parser.Error) Diagnostic {
	return Diagnostic{
		Span:     err.Span,
		Range:    doc.RangeOf(err.Span),
		Severity: SeverityError,
		Message:  err.Message,
		Source:   constants.ParserSource,
	}
}

// BuildSchemaDiagnostic reports a schema violation at its resolved location
func BuildSchemaDiagnostic(doc *document.Document, err schema.ValidationError, res mapper.Resolution) Diagnostic {
	r := doc.RangeOf(res.Span)
	related := err.Keyword
	if related == "" {
		related = "Validation error"
	}
	return Diagnostic{
		Span:     res.Span,
		Range:    r,
		Severity: SeverityError,
		Message:  Message(err),
		Source:   constants.SchemaSource,
		Keyword:  err.Keyword,
		Path:     err.Path.String(),
		Related:  []RelatedInformation{{Range: r, Message: related}},
	}
}

// Message renders a validation error for display, prefixed with its instance path
func Message(err schema.ValidationError) string {
	prefix := err.Path.String()
	switch err.Keyword {
	case "enum":
		allowed, _ := err.Params["allowedValues"].([]string)
		return fmt.Sprintf("%s: invalid value %s, must be one of: %s",
			prefix, formatValue(err.Params["got"]), strings.Join(allowed, ", "))
	case "additionalProperties":
		return fmt.Sprintf("%s: property %q is not allowed", prefix, err.Param("additionalProperty"))
	case "required":
		return fmt.Sprintf("%s: missing required property %q", prefix, err.Param("missingProperty"))
	case "type":
		if got := err.Param("got"); got != "" {
			return fmt.Sprintf("%s: expected %s, got %s", prefix, err.Param("type"), got)
		}
		return fmt.Sprintf("%s: expected %s", prefix, err.Param("type"))
	case "const":
		return fmt.Sprintf("%s: must be %s", prefix, formatValue(err.Params["allowedValue"]))
	default:
		return fmt.Sprintf("%s: %s", prefix, err.Message)
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}

// sortDiagnostics orders diagnostics by position, then message, so output is stable
func sortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Span.Start != diags[j].Span.Start {
			return diags[i].Span.Start < diags[j].Span.Start
		}
		if diags[i].Span.End != diags[j].Span.End {
			return diags[i].Span.End < diags[j].Span.End
		}
		return diags[i].Message < diags[j].Message
	})
}
