package schema

import (
	"strconv"
	"strings"
)

// Segment is one step of an instance path: either a mapping key or a sequence index
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// KeySegment returns a segment addressing a mapping key
func KeySegment(key string) Segment {
	return Segment{key: key}
}

// IndexSegment returns a segment addressing a sequence item
func IndexSegment(index int) Segment {
	return Segment{index: index, isIndex: true}
}

func (s Segment) IsIndex() bool { return s.isIndex }
func (s Segment) Key() string   { return s.key }
func (s Segment) Index() int    { return s.index }

func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// Path locates a value inside a document. The empty path is the document root.
type Path []Segment

// Pointer renders the path as an RFC6901 JSON pointer. The root renders as "".
func (p Path) Pointer() string {
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		text := seg.String()
		text = strings.ReplaceAll(text, "~", "~0")
		text = strings.ReplaceAll(text, "/", "~1")
		b.WriteString(text)
	}
	return b.String()
}

// String renders the path for messages; the root renders as "/"
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	return p.Pointer()
}

// Child returns a new path extended by seg. The receiver is not modified.
func (p Path) Child(seg Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}
