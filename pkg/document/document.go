package document

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrInvalidRange is returned when an edit range falls outside the document
var ErrInvalidRange = errors.New("invalid range")

// Span is a byte range [Start, End) in document text
type Span struct {
	Start int
	End   int
}

// Len returns the span length in bytes
func (s Span) Len() int {
	return s.End - s.Start
}

// Contains reports whether other lies entirely inside s
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Union returns the smallest span covering both s and other
func (s Span) Union(other Span) Span {
	return Span{Start: min(s.Start, other.Start), End: max(s.End, other.End)}
}

// Position is a zero-based line and character, where character counts UTF-16
// code units as editors do
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a start/end pair of positions
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Change is a single content change. A nil Range replaces the whole text.
type Change struct {
	Range *Range
	Text  string
}

// Document is an immutable snapshot of one version of a text buffer
type Document struct {
	URI     string
	Version int32

	text        string
	lineOffsets []int
}

// New creates a document snapshot and indexes its line starts
func New(uri string, version int32, text string) *Document {
	return &Document{
		URI:         uri,
		Version:     version,
		text:        text,
		lineOffsets: computeLineOffsets(text),
	}
}

func computeLineOffsets(text string) []int {
	offsets := []int{0}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			offsets = append(offsets, i+1)
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// Text returns the full document text
func (d *Document) Text() string {
	return d.text
}

// Len returns the text length in bytes
func (d *Document) Len() int {
	return len(d.text)
}

// LineCount returns the number of lines; an empty document has one line
func (d *Document) LineCount() int {
	return len(d.lineOffsets)
}

// Line returns the text of a zero-based line without its terminator
func (d *Document) Line(line int) string {
	if line < 0 || line >= len(d.lineOffsets) {
		return ""
	}
	start, end := d.lineOffsets[line], d.lineEnd(line)
	return d.text[start:end]
}

// lineEnd returns the offset of the end of the line content, before any terminator
func (d *Document) lineEnd(line int) int {
	end := len(d.text)
	if line+1 < len(d.lineOffsets) {
		end = d.lineOffsets[line+1]
	}
	for end > d.lineOffsets[line] && (d.text[end-1] == '\n' || d.text[end-1] == '\r') {
		end--
	}
	return end
}

// LineEndOffset returns the offset just past the last character of the line containing offset
func (d *Document) LineEndOffset(offset int) int {
	return d.lineEnd(d.PositionAt(offset).Line)
}

// OffsetAt converts a position to a byte offset, clamping to document bounds
func (d *Document) OffsetAt(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(d.lineOffsets) {
		return len(d.text)
	}
	start, end := d.lineOffsets[pos.Line], d.lineEnd(pos.Line)
	units := 0
	for i := start; i < end; {
		if units >= pos.Character {
			return i
		}
		r, size := utf8.DecodeRuneInString(d.text[i:])
		units += utf16Len(r)
		i += size
	}
	return end
}

// PositionAt converts a byte offset to a position, clamping to document bounds
func (d *Document) PositionAt(offset int) Position {
	offset = max(0, min(offset, len(d.text)))
	line := sort.Search(len(d.lineOffsets), func(i int) bool {
		return d.lineOffsets[i] > offset
	}) - 1
	start := d.lineOffsets[line]
	units := 0
	for i := start; i < offset; {
		r, size := utf8.DecodeRuneInString(d.text[i:])
		units += utf16Len(r)
		i += size
	}
	return Position{Line: line, Character: units}
}

// OffsetAtRuneColumn converts a zero-based line and rune column, as reported by
// YAML tokenizers, to a byte offset
func (d *Document) OffsetAtRuneColumn(line, column int) int {
	if line < 0 {
		return 0
	}
	if line >= len(d.lineOffsets) {
		return len(d.text)
	}
	offset := d.lineOffsets[line]
	end := d.lineEnd(line)
	for n := 0; n < column && offset < end; n++ {
		_, size := utf8.DecodeRuneInString(d.text[offset:])
		offset += size
	}
	return offset
}

// RangeOf converts a byte span to a position range
func (d *Document) RangeOf(s Span) Range {
	return Range{Start: d.PositionAt(s.Start), End: d.PositionAt(s.End)}
}

// SpanOf converts a position range to a byte span
func (d *Document) SpanOf(r Range) Span {
	return Span{Start: d.OffsetAt(r.Start), End: d.OffsetAt(r.End)}
}

// Apply returns a new snapshot with the changes applied in order
func (d *Document) Apply(version int32, changes ...Change) (*Document, error) {
	text := d.text
	current := d
	for i, change := range changes {
		if change.Range == nil {
			text = change.Text
		} else {
			if change.Range.Start.Line < 0 || change.Range.End.Line < change.Range.Start.Line ||
				(change.Range.End.Line == change.Range.Start.Line && change.Range.End.Character < change.Range.Start.Character) {
				return nil, fmt.Errorf("change %d: %w", i, ErrInvalidRange)
			}
			span := current.SpanOf(*change.Range)
			var b strings.Builder
			b.Grow(len(text) - span.Len() + len(change.Text))
			b.WriteString(text[:span.Start])
			b.WriteString(change.Text)
			b.WriteString(text[span.End:])
			text = b.String()
		}
		current = New(d.URI, version, text)
	}
	if current == d {
		return New(d.URI, version, text), nil
	}
	return current, nil
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
