package console

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	tableTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	tableHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPurple).Background(colorLine)
	tableCellStyle      = lipgloss.NewStyle().Foreground(colorFg)
	tableTotalStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	tableBorderStyle    = lipgloss.NewStyle().Foreground(colorComment)
	tableSeparatorStyle = lipgloss.NewStyle().Foreground(colorLine)
)

// TableConfig represents configuration for table rendering
type TableConfig struct {
	Headers   []string
	Rows      [][]string
	Title     string
	ShowTotal bool
	TotalRow  []string
}

// RenderTable renders rows under headers. Columns whose cells are all integers are
// right-aligned.
func RenderTable(config TableConfig) string {
	if len(config.Headers) == 0 {
		return ""
	}

	body := config.Rows
	if config.ShowTotal && len(config.TotalRow) > 0 {
		body = append(body[:len(body):len(body)], config.TotalRow)
	}

	widths := make([]int, len(config.Headers))
	numeric := make([]bool, len(config.Headers))
	for i, header := range config.Headers {
		widths[i] = lipgloss.Width(header)
		numeric[i] = len(body) > 0
	}
	for _, row := range body {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			widths[i] = max(widths[i], lipgloss.Width(cell))
			if _, err := strconv.Atoi(cell); err != nil {
				numeric[i] = false
			}
		}
	}

	separator := make([]string, len(widths))
	for i, w := range widths {
		separator[i] = strings.Repeat("-", w)
	}

	t := table{widths: widths, numeric: numeric}
	var out strings.Builder
	if config.Title != "" {
		out.WriteString(applyStyle(tableTitleStyle, config.Title))
		out.WriteString("\n\n")
	}
	t.writeRow(&out, config.Headers, tableHeaderStyle, false)
	t.writeRow(&out, separator, tableSeparatorStyle, false)
	for _, row := range config.Rows {
		t.writeRow(&out, row, tableCellStyle, true)
	}
	if config.ShowTotal && len(config.TotalRow) > 0 {
		t.writeRow(&out, separator, tableSeparatorStyle, false)
		t.writeRow(&out, config.TotalRow, tableTotalStyle, true)
	}
	return out.String()
}

type table struct {
	widths  []int
	numeric []bool
}

func (t table) writeRow(out *strings.Builder, cells []string, style lipgloss.Style, align bool) {
	for i, cell := range cells {
		if i >= len(t.widths) {
			break
		}
		if i > 0 {
			out.WriteString(applyStyle(tableBorderStyle, " | "))
		}
		pad := strings.Repeat(" ", t.widths[i]-lipgloss.Width(cell))
		if align && t.numeric[i] {
			cell = pad + cell
		} else {
			cell += pad
		}
		out.WriteString(applyStyle(style, cell))
	}
	out.WriteString("\n")
}
