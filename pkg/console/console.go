package console

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// ErrorPosition is a 1-based line and column in a source file
type ErrorPosition struct {
	File   string
	Line   int
	Column int
}

// Underline marks the bytes [Start, End) of the error line
type Underline struct {
	Start int
	End   int
}

// SourceError is a problem located in a source file, rendered compiler style
type SourceError struct {
	Position ErrorPosition
	Type     string // "error", "warning", "info"
	Source   string // Tool that reported the problem
	Message  string
	Context  []string // Source lines around the error line
	// ContextStart is the line number of Context[0]; zero centers Context on the error line
	ContextStart int
	Underline    *Underline
	Hint         string
}

// Dracula palette
const (
	colorRed     = lipgloss.Color("#FF5555")
	colorOrange  = lipgloss.Color("#FFB86C")
	colorCyan    = lipgloss.Color("#8BE9FD")
	colorPurple  = lipgloss.Color("#BD93F9")
	colorComment = lipgloss.Color("#6272A4")
	colorFg      = lipgloss.Color("#F8F8F2")
	colorBg      = lipgloss.Color("#282A36")
	colorGreen   = lipgloss.Color("#50FA7B")
	colorYellow  = lipgloss.Color("#F1FA8C")
	colorLine    = lipgloss.Color("#44475A")
)

var (
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	warningStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorOrange)
	infoStyle        = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	filePathStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPurple)
	lineNumberStyle  = lipgloss.NewStyle().Foreground(colorComment)
	contextLineStyle = lipgloss.NewStyle().Foreground(colorFg)
	highlightStyle   = lipgloss.NewStyle().Background(colorRed).Foreground(colorBg)
	hintStyle        = lipgloss.NewStyle().Italic(true).Foreground(colorGreen)
	verboseStyle     = lipgloss.NewStyle().Italic(true).Foreground(colorComment)
	progressStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	listHeaderStyle  = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorGreen)
)

// isTTY checks if stdout is a terminal
func isTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// applyStyle conditionally applies styling based on TTY status
func applyStyle(style lipgloss.Style, text string) string {
	if isTTY() {
		return style.Render(text)
	}
	return text
}

// ToRelativePath converts an absolute path to a relative path from the current working directory
func ToRelativePath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}

	wd, err := os.Getwd()
	if err != nil {
		// If we can't get the working directory, return the original path
		return path
	}

	relPath, err := filepath.Rel(wd, path)
	if err != nil {
		// If we can't get a relative path, return the original path
		return path
	}

	return relPath
}

// FormatError renders a SourceError as "file:line:col: error: message" followed by the
// surrounding source with the offending text underlined
func FormatError(err SourceError) string {
	var output strings.Builder

	var typeStyle lipgloss.Style
	var prefix string
	switch err.Type {
	case "warning":
		typeStyle = warningStyle
		prefix = "warning"
	case "info":
		typeStyle = infoStyle
		prefix = "info"
	default:
		typeStyle = errorStyle
		prefix = "error"
	}

	// IDE-parseable format: file:line:column: type: message
	if err.Position.File != "" {
		location := fmt.Sprintf("%s:%d:%d:",
			ToRelativePath(err.Position.File),
			err.Position.Line,
			err.Position.Column)
		output.WriteString(applyStyle(filePathStyle, location))
		output.WriteString(" ")
	}

	output.WriteString(applyStyle(typeStyle, prefix+":"))
	output.WriteString(" ")
	output.WriteString(err.Message)
	if err.Source != "" {
		output.WriteString(" ")
		output.WriteString(applyStyle(lineNumberStyle, "["+err.Source+"]"))
	}
	output.WriteString("\n")

	if len(err.Context) > 0 && err.Position.Line > 0 {
		output.WriteString(renderContext(err))
	}

	if err.Hint != "" {
		output.WriteString(applyStyle(hintStyle, "hint: "))
		output.WriteString(err.Hint)
		output.WriteString("\n")
	}

	return output.String()
}

// renderContext renders source lines with line numbers, highlighting the error line
func renderContext(err SourceError) string {
	var output strings.Builder

	first := err.ContextStart
	if first == 0 {
		first = err.Position.Line - len(err.Context)/2
	}
	lineNumWidth := len(fmt.Sprintf("%d", first+len(err.Context)-1))

	for i, line := range err.Context {
		lineNum := first + i
		if lineNum < 1 {
			continue
		}

		output.WriteString(applyStyle(lineNumberStyle, fmt.Sprintf("%*d", lineNumWidth, lineNum)))
		output.WriteString(" | ")

		if lineNum != err.Position.Line {
			output.WriteString(applyStyle(contextLineStyle, line))
			output.WriteString("\n")
			continue
		}

		start, end := underlineBounds(err, line)
		output.WriteString(applyStyle(contextLineStyle, line[:start]))
		output.WriteString(applyStyle(highlightStyle, line[start:end]))
		output.WriteString(applyStyle(contextLineStyle, line[end:]))
		output.WriteString("\n")

		// Pointer line under the highlighted text
		padding := strings.Repeat(" ", lineNumWidth+3+displayWidth(line[:start]))
		marker := "^"
		if width := displayWidth(line[start:end]); width > 1 {
			marker += strings.Repeat("~", width-1)
		}
		output.WriteString(padding)
		output.WriteString(applyStyle(errorStyle, marker))
		output.WriteString("\n")
	}

	return output.String()
}

// underlineBounds returns the byte range of line to highlight. Without an explicit
// underline the character at the error column is used.
func underlineBounds(err SourceError, line string) (int, int) {
	var start, end int
	if err.Underline != nil {
		start, end = err.Underline.Start, err.Underline.End
	} else {
		start = byteOffsetOfColumn(line, err.Position.Column)
		end = start
	}
	start = max(0, min(start, len(line)))
	end = max(start, min(end, len(line)))
	if end == start && start < len(line) {
		_, size := utf8.DecodeRuneInString(line[start:])
		end = start + size
	}
	return start, end
}

func byteOffsetOfColumn(line string, column int) int {
	offset := 0
	for n := 1; n < column && offset < len(line); n++ {
		_, size := utf8.DecodeRuneInString(line[offset:])
		offset += size
	}
	return offset
}

func displayWidth(s string) int {
	return lipgloss.Width(s)
}
