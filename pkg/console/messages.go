package console

import "github.com/charmbracelet/lipgloss"

func iconMessage(style lipgloss.Style, icon, message string) string {
	return applyStyle(style, icon+" ") + message
}

// FormatSuccessMessage formats a success message with styling
func FormatSuccessMessage(message string) string {
	return iconMessage(successStyle, "✓", message)
}

// FormatInfoMessage formats an informational message
func FormatInfoMessage(message string) string {
	return iconMessage(infoStyle, "ℹ", message)
}

// FormatWarningMessage formats a warning message
func FormatWarningMessage(message string) string {
	return iconMessage(warningStyle, "⚠", message)
}

// FormatErrorMessage formats a simple error message (for stderr output)
func FormatErrorMessage(message string) string {
	return iconMessage(errorStyle, "✗", message)
}

// FormatProgressMessage formats a progress/activity message
func FormatProgressMessage(message string) string {
	return iconMessage(progressStyle, "🔨", message)
}

// FormatVerboseMessage formats verbose debugging output
func FormatVerboseMessage(message string) string {
	return iconMessage(verboseStyle, "🔍", message)
}

// FormatListHeader formats a section header for lists
func FormatListHeader(header string) string {
	return applyStyle(listHeaderStyle, header)
}

// FormatListItem formats an item in a list
func FormatListItem(item string) string {
	return applyStyle(contextLineStyle, "  • "+item)
}
