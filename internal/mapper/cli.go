package mapper

import (
	"fmt"

	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/dipievil/drone-ci-ex-helper/pkg/parser"
	"github.com/goccy/go-json"
)

// LocateRequest is the error description accepted by the locate command
type LocateRequest struct {
	InstancePath string    `json:"instancePath"`
	Meta         ErrorMeta `json:"meta"`
	// Document selects the YAML document within a multi-document file
	Document int `json:"document,omitempty"`
}

// ParseLocateRequest decodes a JSON-formatted LocateRequest
func ParseLocateRequest(data []byte) (LocateRequest, error) {
	var req LocateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return LocateRequest{}, fmt.Errorf("failed to parse error JSON: %w", err)
	}
	return req, nil
}

// Location is a resolution expressed in editor coordinates
type Location struct {
	Range document.Range
	Resolution
}

// String renders the location with 1-based lines and characters
func (l Location) String() string {
	return fmt.Sprintf("Line %d:%d - %d:%d (%s)",
		l.Range.Start.Line+1, l.Range.Start.Character+1,
		l.Range.End.Line+1, l.Range.End.Character+1, l.Reason)
}

// Locate parses doc and resolves the request against the selected YAML document
func Locate(doc *document.Document, req LocateRequest) (Location, error) {
	path, err := ParsePointer(req.InstancePath)
	if err != nil {
		return Location{}, err
	}

	file, errs := parser.Parse(doc)
	if len(errs) > 0 {
		return Location{}, fmt.Errorf("yaml parse error: %w", errs[0])
	}
	if req.Document < 0 || req.Document >= len(file.Documents) {
		return Location{}, fmt.Errorf("document %d not found: file has %d documents", req.Document, len(file.Documents))
	}

	res := Resolve(file.Documents[req.Document], path, req.Meta)
	return Location{Range: doc.RangeOf(res.Span), Resolution: res}, nil
}
