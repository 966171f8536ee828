package parser

import (
	"errors"
	"strings"

	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/goccy/go-yaml/ast"
	goyamlparser "github.com/goccy/go-yaml/parser"
	"github.com/goccy/go-yaml/token"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("drone-ls.parser")

// File is the parse result for a whole YAML file. Each "---" separated document
// gets its own tree.
type File struct {
	Documents []*Tree
}

// Error is a YAML syntax error located in the source text
type Error struct {
	Message string
	Span    document.Span
}

func (e Error) Error() string {
	return e.Message
}

// Parse parses document text into position-annotated trees. When the text is not
// well-formed YAML it returns a non-empty list of errors and a nil file.
func Parse(doc *document.Document) (*File, []Error) {
	astFile, err := goyamlparser.ParseBytes([]byte(doc.Text()), 0, goyamlparser.AllowDuplicateMapKey())
	if err != nil {
		parseErr := locateError(doc, err)
		log.Debugf("parse failed for %s: %s", doc.URI, parseErr.Message)
		return nil, []Error{parseErr}
	}

	b := &builder{doc: doc}
	file := &File{}
	for i, d := range astFile.Docs {
		file.Documents = append(file.Documents, b.buildTree(i, d))
	}
	return file, nil
}

// builder converts goccy AST nodes into the closed Node variant, computing byte spans
type builder struct {
	doc     *document.Document
	anchors map[string]Node
}

func (b *builder) buildTree(index int, d *ast.DocumentNode) *Tree {
	b.anchors = make(map[string]Node)
	tree := &Tree{}

	start := -1
	if d.Start != nil {
		start = b.offsetOf(d.Start)
	}
	if root := b.convert(d.Body, max(start, 0)); root != nil {
		tree.Root = root
		if start < 0 {
			start = root.Span().Start
		}
		tree.Span = document.Span{Start: start, End: root.Span().End}
	} else if start >= 0 {
		tree.Span = document.Span{Start: start, End: start}
	}
	if index == 0 {
		tree.Span.Start = 0
	}
	return tree
}

// convert returns nil for nodes that carry no data (empty bodies, comments, directives)
func (b *builder) convert(n ast.Node, fallback int) Node {
	switch n := n.(type) {
	case nil:
		return nil
	case *ast.MappingNode:
		return b.convertMapping(n, fallback)
	case *ast.MappingValueNode:
		m := &Mapping{span: b.startSpan(n.GetToken(), fallback)}
		b.appendPair(m, n)
		return m
	case *ast.SequenceNode:
		return b.convertSequence(n, fallback)
	case *ast.AnchorNode:
		value := b.convert(n.Value, fallback)
		if value == nil {
			value = &Scalar{span: b.startSpan(n.Start, fallback)}
		}
		if name := tokenValue(n.Name); name != "" {
			b.anchors[name] = value
		}
		return value
	case *ast.AliasNode:
		span := b.tokenSpan(n.Start, fallback)
		if n.Value != nil {
			span = span.Union(b.tokenSpan(n.Value.GetToken(), span.End))
		}
		if target, ok := b.anchors[tokenValue(n.Value)]; ok {
			return cloneAt(target, span)
		}
		return &Scalar{span: span}
	case *ast.TagNode:
		value := b.convert(n.Value, fallback)
		if value == nil {
			return &Scalar{span: b.tokenSpan(n.Start, fallback)}
		}
		return value
	case *ast.LiteralNode:
		value := ""
		if n.Value != nil {
			value = n.Value.Value
		}
		start := b.offsetOrFallback(n.Start, fallback)
		return &Scalar{Value: value, span: document.Span{Start: start, End: b.blockScalarEnd(start)}}
	case *ast.CommentGroupNode, *ast.CommentNode, *ast.DirectiveNode:
		return nil
	default:
		return b.convertScalar(n, fallback)
	}
}

func (b *builder) convertMapping(n *ast.MappingNode, fallback int) Node {
	m := &Mapping{span: b.startSpan(n.Start, fallback)}
	for _, pair := range n.Values {
		b.appendPair(m, pair)
	}
	if n.IsFlowStyle && n.End != nil {
		end := b.offsetOf(n.End) + 1
		m.span = m.span.Union(document.Span{Start: end, End: end})
	}
	return m
}

func (b *builder) appendPair(m *Mapping, pair *ast.MappingValueNode) {
	key := b.convertKey(pair.Key, m.span.Start)
	value := b.convert(pair.Value, key.span.End)
	// "key:" without a value
	if value == nil {
		value = &Scalar{span: document.Span{Start: key.span.End, End: key.span.End}}
	} else if s, ok := value.(*Scalar); ok && s.span.Start < key.span.End {
		s.span = document.Span{Start: key.span.End, End: key.span.End}
	}
	m.Pairs = append(m.Pairs, Pair{Key: key, Value: value})
	m.span = m.span.Union(key.span).Union(value.Span())
}

func (b *builder) convertSequence(n *ast.SequenceNode, fallback int) Node {
	seq := &Sequence{span: b.startSpan(n.Start, fallback)}
	for _, item := range n.Values {
		child := b.convert(item, seq.span.End)
		if child == nil {
			child = &Scalar{span: document.Span{Start: seq.span.End, End: seq.span.End}}
		}
		seq.Items = append(seq.Items, child)
		seq.span = seq.span.Union(child.Span())
	}
	if n.IsFlowStyle && n.End != nil {
		end := b.offsetOf(n.End) + 1
		seq.span = seq.span.Union(document.Span{Start: end, End: end})
	}
	return seq
}

func (b *builder) convertKey(n ast.MapKeyNode, fallback int) *Key {
	var tok *token.Token
	var text string
	switch k := n.(type) {
	case nil:
		return &Key{span: document.Span{Start: fallback, End: fallback}}
	case *ast.MappingKeyNode:
		if k.Value != nil {
			tok = k.Value.GetToken()
		}
		text = tokenValue(k.Value)
	case *ast.StringNode:
		tok = k.GetToken()
		text = k.Value
	default:
		tok = k.GetToken()
		text = tokenValue(k)
	}
	return &Key{Text: text, span: b.tokenSpan(tok, fallback)}
}

func (b *builder) convertScalar(n ast.Node, fallback int) Node {
	tok := n.GetToken()
	span := b.tokenSpan(tok, fallback)

	var value any
	switch v := n.(type) {
	case *ast.StringNode:
		value = v.Value
	case *ast.IntegerNode:
		value = v.Value
	case *ast.FloatNode:
		value = v.Value
	case *ast.BoolNode:
		value = v.Value
	case *ast.NullNode:
		if !hasNullLiteral(b.doc.Text()[span.Start:]) {
			span.End = span.Start
		}
	case *ast.InfinityNode, *ast.NanNode:
		// not representable as JSON numbers
		value = tokenValue(n)
	default:
		if sv, ok := n.(interface{ GetValue() any }); ok {
			value = sv.GetValue()
		} else {
			value = tokenValue(n)
		}
	}
	return &Scalar{Value: value, span: span}
}

// offsetOf converts a goccy token position (1-based line and rune column) to a byte offset
func (b *builder) offsetOf(tok *token.Token) int {
	return b.doc.OffsetAtRuneColumn(tok.Position.Line-1, tok.Position.Column-1)
}

func (b *builder) offsetOrFallback(tok *token.Token, fallback int) int {
	if tok == nil || tok.Position == nil {
		return fallback
	}
	return b.offsetOf(tok)
}

// startSpan returns a zero-width span at the token start
func (b *builder) startSpan(tok *token.Token, fallback int) document.Span {
	start := b.offsetOrFallback(tok, fallback)
	return document.Span{Start: start, End: start}
}

// tokenSpan returns the span of the token's source text
func (b *builder) tokenSpan(tok *token.Token, fallback int) document.Span {
	if tok == nil || tok.Position == nil {
		return document.Span{Start: fallback, End: fallback}
	}
	start := b.offsetOf(tok)
	text := b.doc.Text()
	var end int
	switch tok.Type {
	case token.DoubleQuoteType:
		end = scanQuoted(text, start, '"')
	case token.SingleQuoteType:
		end = scanQuoted(text, start, '\'')
	default:
		if strings.HasPrefix(text[start:], tok.Value) {
			end = start + len(tok.Value)
		} else {
			end = b.doc.LineEndOffset(start)
		}
	}
	if end < start {
		end = start
	}
	return document.Span{Start: start, End: end}
}

// blockScalarEnd finds the end of a "|" or ">" block whose indicator starts at offset:
// the last following line indented deeper than the indicator's line
func (b *builder) blockScalarEnd(offset int) int {
	pos := b.doc.PositionAt(offset)
	baseIndent := indentation(b.doc.Line(pos.Line))
	end := b.doc.LineEndOffset(offset)
	for line := pos.Line + 1; line < b.doc.LineCount(); line++ {
		text := b.doc.Line(line)
		if strings.TrimSpace(text) == "" {
			continue
		}
		if indentation(text) <= baseIndent {
			break
		}
		end = b.doc.OffsetAt(document.Position{Line: line, Character: len(text) + 1})
	}
	return end
}

// cloneAt copies an anchored subtree for an alias site, placing every node at span
func cloneAt(n Node, span document.Span) Node {
	switch n := n.(type) {
	case *Scalar:
		return &Scalar{Value: n.Value, span: span}
	case *Sequence:
		seq := &Sequence{span: span}
		for _, item := range n.Items {
			seq.Items = append(seq.Items, cloneAt(item, span))
		}
		return seq
	case *Mapping:
		m := &Mapping{span: span}
		for _, pair := range n.Pairs {
			m.Pairs = append(m.Pairs, Pair{
				Key:   &Key{Text: pair.Key.Text, span: span},
				Value: cloneAt(pair.Value, span),
			})
		}
		return m
	case *Key:
		return &Key{Text: n.Text, span: span}
	}
	return nil
}

// scanQuoted returns the offset just past the closing quote of a quoted scalar
// starting at start, or the end of the line when the scalar is unterminated
func scanQuoted(text string, start int, quote byte) int {
	if start >= len(text) || text[start] != quote {
		return start
	}
	for i := start + 1; i < len(text); i++ {
		switch {
		case quote == '"' && text[i] == '\\':
			i++
		case text[i] == quote:
			if quote == '\'' && i+1 < len(text) && text[i+1] == '\'' {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(text)
}

func tokenValue(n ast.Node) string {
	if n == nil {
		return ""
	}
	if tok := n.GetToken(); tok != nil {
		return tok.Value
	}
	return ""
}

func hasNullLiteral(text string) bool {
	for _, lit := range []string{"null", "Null", "NULL", "~"} {
		if strings.HasPrefix(text, lit) {
			return true
		}
	}
	return false
}

func indentation(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// tokenError is implemented by goccy syntax errors that know the offending token
type tokenError interface {
	GetToken() *token.Token
}

// messageError is implemented by goccy errors that expose the bare message
type messageError interface {
	GetMessage() string
}

// locateError converts a goccy parse error into an Error spanning the offending
// region: from the error token to the end of its line. goccy reports a "[" or "{"
// left open at whatever token follows it, so such errors start at the bracket.
func locateError(doc *document.Document, err error) Error {
	message := err.Error()
	var me messageError
	hasMessage := errors.As(err, &me)
	if hasMessage {
		message = me.GetMessage()
	}

	var te tokenError
	if errors.As(err, &te) {
		if tok := te.GetToken(); tok != nil && tok.Position != nil && tok.Position.Line > 0 {
			start := doc.OffsetAtRuneColumn(tok.Position.Line-1, max(tok.Position.Column-1, 0))
			if open, ok := unclosedFlowStart(doc.Text(), start); ok {
				start = open
			}
			return Error{Message: message, Span: errorSpan(doc, start)}
		}
	}

	// Fall back to the position embedded in the error text
	line, column, msg := ExtractYAMLError(err, 0)
	if line > 0 {
		if !hasMessage && msg != "" {
			message = msg
		}
		start := doc.OffsetAtRuneColumn(line-1, max(column-1, 0))
		if open, ok := unclosedFlowStart(doc.Text(), start); ok {
			start = open
		}
		return Error{Message: message, Span: errorSpan(doc, start)}
	}
	return Error{Message: firstLine(message), Span: document.Span{}}
}

func errorSpan(doc *document.Document, start int) document.Span {
	end := doc.LineEndOffset(start)
	if end <= start && start < doc.Len() {
		end = start + 1
	}
	return document.Span{Start: start, End: max(end, start)}
}

// unclosedFlowStart returns the offset of the innermost "[" or "{" opened before
// offset and not closed by then. Brackets inside quotes, comments and plain
// scalars do not count.
func unclosedFlowStart(text string, offset int) (int, bool) {
	if offset < len(text) && (text[offset] == '[' || text[offset] == '{') {
		return offset, true
	}
	var open []int
	valueStart := true
	for i := 0; i < min(offset, len(text)); i++ {
		c := text[i]
		switch {
		case c == '\n':
			valueStart = true
		case c == ' ' || c == '\t':
		case c == '#' && (i == 0 || text[i-1] == ' ' || text[i-1] == '\t' || text[i-1] == '\n'):
			for i+1 < len(text) && text[i+1] != '\n' {
				i++
			}
		case (c == '"' || c == '\'') && (valueStart || len(open) > 0):
			i = scanQuoted(text, i, c) - 1
			valueStart = false
		case (c == '[' || c == '{') && (valueStart || len(open) > 0):
			open = append(open, i)
			valueStart = true
		case (c == ']' || c == '}') && len(open) > 0:
			open = open[:len(open)-1]
			valueStart = false
		case c == ',' && len(open) > 0:
			valueStart = true
		case c == ':' || c == '-':
			valueStart = i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\n'
		default:
			valueStart = false
		}
	}
	if len(open) == 0 {
		return 0, false
	}
	return open[len(open)-1], true
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
