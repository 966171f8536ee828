package mapper

import (
	"errors"
	"strconv"
	"strings"

	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
)

// ParsePointer decodes an RFC6901 pointer into a path. Numeric segments become
// index segments; the resolver still treats them as keys on mappings.
func ParsePointer(ptr string) (schema.Path, error) {
	parts, err := decodeJSONPointer(ptr)
	if err != nil {
		return nil, err
	}
	path := make(schema.Path, 0, len(parts))
	for _, p := range parts {
		if idx, err := parseIndex(p); err == nil {
			path = append(path, schema.IndexSegment(idx))
			continue
		}
		path = append(path, schema.KeySegment(p))
	}
	return path, nil
}

// decodeJSONPointer decodes an RFC6901 pointer (e.g. "/steps/0/image")
// into segments: ["steps","0","image"].
// Returns empty slice for "" or "/".
func decodeJSONPointer(ptr string) ([]string, error) {
	if ptr == "" || ptr == "/" {
		return []string{}, nil
	}
	if !strings.HasPrefix(ptr, "/") {
		return nil, errors.New("invalid json pointer: must start with '/'")
	}
	parts := strings.Split(ptr[1:], "/")
	for i, p := range parts {
		// Unescape per RFC6901
		p = strings.ReplaceAll(p, "~1", "/")
		p = strings.ReplaceAll(p, "~0", "~")
		parts[i] = p
	}
	return parts, nil
}

// isIndex determines whether a segment looks like an array index
func isIndex(segment string) bool {
	if len(segment) == 0 {
		return false
	}
	// Don't allow negative numbers as JSON Pointer indices
	if segment[0] == '-' {
		return false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseIndex parses a segment as an array index
func parseIndex(segment string) (int, error) {
	if !isIndex(segment) {
		return -1, errors.New("not an index")
	}
	return strconv.Atoi(segment)
}
