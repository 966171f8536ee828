package parser

import (
	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
)

// NodeKind identifies the variant of a Node
type NodeKind int

const (
	ScalarKind NodeKind = iota
	SequenceKind
	MappingKind
	KeyKind
)

func (k NodeKind) String() string {
	switch k {
	case ScalarKind:
		return "scalar"
	case SequenceKind:
		return "sequence"
	case MappingKind:
		return "mapping"
	case KeyKind:
		return "key"
	default:
		return "unknown"
	}
}

// Node is a position-annotated YAML node. The set of implementations is closed:
// *Scalar, *Sequence, *Mapping and *Key.
type Node interface {
	Kind() NodeKind
	Span() document.Span
	node()
}

// Scalar is a leaf value. Value holds string, int64, uint64, float64, bool or nil.
type Scalar struct {
	Value any
	span  document.Span
}

// Sequence is an ordered list of nodes
type Sequence struct {
	Items []Node
	span  document.Span
}

// Pair is one key/value entry of a mapping
type Pair struct {
	Key   *Key
	Value Node
}

// Mapping is an ordered list of pairs. Keys are not required to be unique.
type Mapping struct {
	Pairs []Pair
	span  document.Span
}

// Key is the key token of a mapping pair
type Key struct {
	Text string
	span document.Span
}

func (n *Scalar) Kind() NodeKind   { return ScalarKind }
func (n *Sequence) Kind() NodeKind { return SequenceKind }
func (n *Mapping) Kind() NodeKind  { return MappingKind }
func (n *Key) Kind() NodeKind      { return KeyKind }

func (n *Scalar) Span() document.Span   { return n.span }
func (n *Sequence) Span() document.Span { return n.span }
func (n *Mapping) Span() document.Span  { return n.span }
func (n *Key) Span() document.Span      { return n.span }

func (*Scalar) node()   {}
func (*Sequence) node() {}
func (*Mapping) node()  {}
func (*Key) node()      {}

// Lookup returns the value of the last pair whose key text equals key, and the key itself.
// The last pair wins, matching how the plain-data rendering resolves duplicates.
func (m *Mapping) Lookup(key string) (*Key, Node, bool) {
	for i := len(m.Pairs) - 1; i >= 0; i-- {
		if m.Pairs[i].Key.Text == key {
			return m.Pairs[i].Key, m.Pairs[i].Value, true
		}
	}
	return nil, nil, false
}

// Tree is the parse result for one YAML document within a file
type Tree struct {
	// Root is nil for an empty document
	Root Node
	// Span covers the document's text, including any leading "---" marker
	Span document.Span
}

// Value renders the tree as plain data: map[string]any, []any and scalar values
func (t *Tree) Value() any {
	if t == nil || t.Root == nil {
		return nil
	}
	return plainValue(t.Root)
}

func plainValue(n Node) any {
	switch n := n.(type) {
	case *Scalar:
		return n.Value
	case *Sequence:
		out := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			out = append(out, plainValue(item))
		}
		return out
	case *Mapping:
		out := make(map[string]any, len(n.Pairs))
		for _, pair := range n.Pairs {
			out[pair.Key.Text] = plainValue(pair.Value)
		}
		return out
	case *Key:
		return n.Text
	}
	return nil
}
