package lsp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dipievil/drone-ci-ex-helper/pkg/constants"
	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/dipievil/drone-ci-ex-helper/pkg/sanitizer"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// keyPattern finds the mapping key a hovered line starts with
var keyPattern = regexp.MustCompile(`^\s*(\w+):`)

type completionEntry struct {
	label  string
	detail string
}

var completionCatalog = []completionEntry{
	{"kind", "Pipeline kind"},
	{"type", "Pipeline type"},
	{"name", "Pipeline name"},
	{"steps", "Pipeline steps"},
	{"trigger", "Pipeline trigger"},
	{"image", "Docker image"},
	{"commands", "Shell commands"},
	{"services", "Services"},
	{"volumes", "Volumes"},
	{"environment", "Environment variables"},
	{"when", "Conditional execution"},
	{"depends_on", "Dependencies"},
	{"platform", "Platform settings"},
	{"clone", "Clone settings"},
	{"workspace", "Workspace settings"},
}

// completionItems returns the property catalog. The position is not consulted.
func completionItems() []protocol.CompletionItem {
	kind := protocol.CompletionItemKindProperty
	items := make([]protocol.CompletionItem, 0, len(completionCatalog))
	for _, entry := range completionCatalog {
		detail := entry.detail
		items = append(items, protocol.CompletionItem{
			Label:  entry.label,
			Kind:   &kind,
			Detail: &detail,
			Data:   entry.label,
		})
	}
	return items
}

// resolveCompletion adds the schema description of the item's property, when there is one
func resolveCompletion(sch *schema.Document, item *protocol.CompletionItem) *protocol.CompletionItem {
	name, _ := item.Data.(string)
	if name == "" {
		name = item.Label
	}
	prop, ok := sch.Property(name)
	if !ok || prop.Description == "" {
		return item
	}
	item.Documentation = sanitizer.FilterURLs(prop.Description, nil).FilteredContent
	return item
}

// hoverAt documents the top-level property named by the key on the hovered line
func hoverAt(sch *schema.Document, doc *document.Document, pos protocol.Position) *protocol.Hover {
	line := int(pos.Line)
	if line >= doc.LineCount() {
		return nil
	}
	text := doc.Line(line)
	match := keyPattern.FindStringSubmatchIndex(text)
	if match == nil {
		return nil
	}
	key := text[match[2]:match[3]]

	prop, ok := sch.Property(key)
	if !ok {
		return nil
	}

	lineStart := doc.OffsetAt(document.Position{Line: line})
	r := toProtocolRange(doc.RangeOf(document.Span{Start: lineStart + match[2], End: lineStart + match[3]}))
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: hoverMarkdown(prop),
		},
		Range: &r,
	}
}

func hoverMarkdown(prop schema.Property) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", prop.Name)
	if prop.Description != "" {
		result := sanitizer.FilterURLs(prop.Description, nil)
		if len(result.RemovedURLs) > 0 {
			log.Debugf("Filtered %d URLs from the description of %s", len(result.RemovedURLs), prop.Name)
		}
		fmt.Fprintf(&b, "%s\n\n", result.FilteredContent)
	}
	if prop.Type != "" {
		fmt.Fprintf(&b, "Type: `%s`\n\n", prop.Type)
	}
	if len(prop.Enum) > 0 {
		values := make([]string, len(prop.Enum))
		for i, v := range prop.Enum {
			values[i] = "`" + v + "`"
		}
		fmt.Fprintf(&b, "Valid values: %s\n\n", strings.Join(values, ", "))
	}
	fmt.Fprintf(&b, "[Drone CI Documentation](%s)", constants.DocumentationURL)
	return b.String()
}
