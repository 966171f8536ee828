package console

import (
	"fmt"
	"unicode/utf8"

	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/dipievil/drone-ci-ex-helper/pkg/validation"
)

// contextLines is how many lines are shown before and after the error line
const contextLines = 1

// FromDiagnostic positions a validation diagnostic in file for terminal output
func FromDiagnostic(file string, doc *document.Document, d validation.Diagnostic) SourceError {
	line := d.Range.Start.Line
	text := doc.Line(line)
	lineStart := doc.OffsetAt(document.Position{Line: line})

	start := max(0, min(d.Span.Start-lineStart, len(text)))
	end := max(start, min(d.Span.End-lineStart, len(text)))

	first := max(0, line-contextLines)
	last := min(doc.LineCount()-1, line+contextLines)
	context := make([]string, 0, last-first+1)
	for l := first; l <= last; l++ {
		context = append(context, doc.Line(l))
	}

	return SourceError{
		Position: ErrorPosition{
			File:   file,
			Line:   line + 1,
			Column: utf8.RuneCountInString(text[:start]) + 1,
		},
		Type:         d.Severity.String(),
		Source:       d.Source,
		Message:      d.Message,
		Context:      context,
		ContextStart: first + 1,
		Underline:    &Underline{Start: start, End: end},
		Hint:         hintFor(d),
	}
}

func hintFor(d validation.Diagnostic) string {
	switch d.Keyword {
	case "additionalProperties":
		return "check the spelling or indentation of this key"
	case "enum":
		return "use one of the listed values"
	default:
		return ""
	}
}

// FormatDiagnostics renders every diagnostic of one file
func FormatDiagnostics(file string, doc *document.Document, diags []validation.Diagnostic) string {
	var out string
	for _, d := range diags {
		out += FormatError(FromDiagnostic(file, doc, d))
	}
	return out
}

// FormatSummary reports how many problems were found in how many files
func FormatSummary(problems, files int) string {
	if problems == 0 {
		return FormatSuccessMessage(fmt.Sprintf("%d %s valid", files, plural(files, "file", "files")))
	}
	return FormatErrorMessage(fmt.Sprintf("%d %s in %d %s",
		problems, plural(problems, "problem", "problems"), files, plural(files, "file", "files")))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
