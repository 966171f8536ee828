package validation

import (
	"encoding/json"
	"testing"

	"github.com/dipievil/drone-ci-ex-helper/internal/mapper"
	"github.com/dipievil/drone-ci-ex-helper/pkg/constants"
	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/dipievil/drone-ci-ex-helper/pkg/parser"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      schema.ValidationError
		expected string
	}{
		{
			name: "enum lists allowed values",
			err: schema.ValidationError{
				Path: path("trigger", "event", 1), Keyword: "enum",
				Params: map[string]any{"allowedValues": []string{"push", "tag"}, "got": "bogus"},
			},
			expected: `/trigger/event/1: invalid value "bogus", must be one of: push, tag`,
		},
		{
			name: "additional property",
			err: schema.ValidationError{
				Path: path("steps", 0, "foo"), Keyword: "additionalProperties",
				Params: map[string]any{"additionalProperty": "foo"},
			},
			expected: `/steps/0/foo: property "foo" is not allowed`,
		},
		{
			name: "required at root",
			err: schema.ValidationError{
				Path: path(), Keyword: "required",
				Params: map[string]any{"missingProperty": "kind"},
			},
			expected: `/: missing required property "kind"`,
		},
		{
			name: "type with actual type",
			err: schema.ValidationError{
				Path: path("name"), Keyword: "type",
				Params: map[string]any{"type": "string", "got": "number"},
			},
			expected: `/name: expected string, got number`,
		},
		{
			name: "const",
			err: schema.ValidationError{
				Path: path("kind"), Keyword: "const",
				Params: map[string]any{"allowedValue": "pipeline"},
			},
			expected: `/kind: must be "pipeline"`,
		},
		{
			name: "raw message fallback",
			err: schema.ValidationError{
				Path: path("clone", "depth"), Keyword: "minimum",
				Message: "minimum: got -1, want 0",
			},
			expected: `/clone/depth: minimum: got -1, want 0`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestBuildDiagnostics(t *testing.T) {
	doc := document.New("u", 1, "kind: pipeline\nsteps: []\n")

	parseDiag := BuildParseDiagnostic(doc, parser.Error{
		Message: "unexpected token",
		Span:    document.Span{Start: 15, End: 20},
	})
	if parseDiag.Source != constants.ParserSource {
		t.Errorf("Expected source %q, got %q", constants.ParserSource, parseDiag.Source)
	}
	if parseDiag.Range.Start != (document.Position{Line: 1, Character: 0}) {
		t.Errorf("Unexpected range %+v", parseDiag.Range)
	}
	if parseDiag.Related != nil {
		t.Errorf("Parse diagnostics carry no related information")
	}

	schemaDiag := BuildSchemaDiagnostic(doc, schema.ValidationError{
		Path: path("kind"), Keyword: "", Message: "bad",
	}, mapper.Resolution{Span: document.Span{Start: 6, End: 14}, Exact: true})
	if schemaDiag.Severity.String() != "error" {
		t.Errorf("Expected error severity, got %s", schemaDiag.Severity)
	}
	if len(schemaDiag.Related) != 1 || schemaDiag.Related[0].Message != "Validation error" {
		t.Errorf("Unexpected related information %+v", schemaDiag.Related)
	}

	data, err := json.Marshal(schemaDiag)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := decoded["Span"]; ok {
		t.Errorf("Byte spans should not be serialized")
	}
	if decoded["source"] != constants.SchemaSource {
		t.Errorf("Expected source %q, got %v", constants.SchemaSource, decoded["source"])
	}
}

func TestSortDiagnostics(t *testing.T) {
	diags := []Diagnostic{
		{Span: document.Span{Start: 10, End: 12}, Message: "b"},
		{Span: document.Span{Start: 0, End: 0}, Message: "z"},
		{Span: document.Span{Start: 10, End: 12}, Message: "a"},
		{Span: document.Span{Start: 10, End: 11}, Message: "c"},
	}
	sortDiagnostics(diags)

	var got []string
	for _, d := range diags {
		got = append(got, d.Message)
	}
	expected := []string{"z", "c", "a", "b"}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("Expected order %v, got %v", expected, got)
		}
	}
}
