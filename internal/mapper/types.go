package mapper

import "github.com/dipievil/drone-ci-ex-helper/pkg/document"

// Resolution describes where in the source an error was placed.
type Resolution struct {
	Span   document.Span
	Exact  bool   // every path segment was resolved
	Reason string // short reason why this span was chosen
}

// ErrorMeta contains validator-provided metadata about the error.
type ErrorMeta struct {
	Kind     string `json:"kind"`               // "type", "required", "additionalProperties", "oneOf", ...
	Property string `json:"property,omitempty"` // property name for additionalProperties or required
}
