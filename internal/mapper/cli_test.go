package mapper

import (
	"strings"
	"testing"

	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
)

func TestLocate(t *testing.T) {
	doc := document.New("file:///.drone.yml", 1, `kind: pipeline
steps:
  - name: build
    image: alpine
    foo: bar
`)

	req, err := ParseLocateRequest([]byte(`{
		"instancePath": "/steps/0/foo",
		"meta": {
			"kind": "additionalProperties",
			"property": "foo"
		}
	}`))
	if err != nil {
		t.Fatalf("ParseLocateRequest failed: %v", err)
	}

	loc, err := Locate(doc, req)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}

	expected := document.Range{
		Start: document.Position{Line: 4, Character: 4},
		End:   document.Position{Line: 4, Character: 7},
	}
	if loc.Range != expected {
		t.Errorf("Expected %+v, got %+v", expected, loc.Range)
	}
	if !strings.HasPrefix(loc.String(), "Line 5:5 - 5:8") {
		t.Errorf("Unexpected rendering %q", loc.String())
	}
}

func TestLocateErrors(t *testing.T) {
	valid := document.New("u", 1, "kind: pipeline\n")

	tests := []struct {
		name string
		doc  *document.Document
		req  LocateRequest
	}{
		{"invalid pointer", valid, LocateRequest{InstancePath: "kind"}},
		{"missing document", valid, LocateRequest{InstancePath: "/kind", Document: 3}},
		{"parse error", document.New("u", 1, "steps: [a, b\n"), LocateRequest{InstancePath: "/steps"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Locate(tt.doc, tt.req); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	if _, err := ParseLocateRequest([]byte(`{invalid json}`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
