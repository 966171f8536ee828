package mapper

import (
	"fmt"

	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/dipievil/drone-ci-ex-helper/pkg/parser"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
)

// Resolve maps an instance path to the most specific span of tree it can reach.
// Resolution never fails: unresolved segments degrade to the last node found,
// and root-level errors fall back to an empty span at the start of the document.
func Resolve(tree *parser.Tree, path schema.Path, meta ErrorMeta) Resolution {
	if tree == nil {
		return Resolution{Reason: "document-level fallback"}
	}
	fallback := Resolution{
		Span:   document.Span{Start: tree.Span.Start, End: tree.Span.Start},
		Reason: "document-level fallback",
	}
	if len(path) == 0 || tree.Root == nil {
		return fallback
	}

	node, key, depth := traverseBySegments(tree.Root, path)
	if depth == 0 {
		return fallback
	}
	exact := depth == len(path)

	// Underline the offending key rather than its value
	if meta.Kind == "additionalProperties" && exact && key != nil && key.Text == meta.Property {
		return Resolution{Span: key.Span(), Exact: true, Reason: "additional property key"}
	}

	if !exact {
		return Resolution{
			Span:   node.Span(),
			Reason: fmt.Sprintf("parent context for missing segments at depth %d", depth),
		}
	}
	return Resolution{Span: node.Span(), Exact: true, Reason: "exact node"}
}

// traverseBySegments walks the tree using path segments. It returns the deepest node
// reached, the key it was reached through (nil for sequence items) and how many
// segments were consumed.
func traverseBySegments(root parser.Node, path schema.Path) (parser.Node, *parser.Key, int) {
	current := root
	var currentKey *parser.Key
	depth := 0

	for _, seg := range path {
		var next parser.Node
		var nextKey *parser.Key

		switch node := current.(type) {
		case *parser.Sequence:
			idx, ok := segmentIndex(seg)
			if !ok || idx >= len(node.Items) {
				return current, currentKey, depth
			}
			next = node.Items[idx]

		case *parser.Mapping:
			key, value, ok := node.Lookup(seg.String())
			if !ok {
				return current, currentKey, depth
			}
			next, nextKey = value, key
			if next == nil {
				next = key
			}

		case *parser.Scalar, *parser.Key:
			// Can't traverse further
			return current, currentKey, depth
		}

		current, currentKey = next, nextKey
		depth++
	}

	return current, currentKey, depth
}

// segmentIndex reads a segment as a sequence index. Key segments qualify when
// their text is a non-negative integer.
func segmentIndex(seg schema.Segment) (int, bool) {
	if seg.IsIndex() {
		return seg.Index(), seg.Index() >= 0
	}
	if !isIndex(seg.Key()) {
		return 0, false
	}
	idx, err := parseIndex(seg.Key())
	if err != nil {
		return 0, false
	}
	return idx, true
}
