package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// goccyErrorPattern matches the "[line:column] message" prefix of goccy/go-yaml errors
var goccyErrorPattern = regexp.MustCompile(`^\[(\d+):(\d+)\]\s*(.*)`)

// ExtractYAMLError extracts line and column information from YAML parsing errors.
// It understands goccy/go-yaml's "[line:col] message" form and yaml.v3's
// "yaml: line X: message" forms. Line and column are 1-based; zero means unknown.
func ExtractYAMLError(err error, startLine int) (line int, column int, message string) {
	errStr := err.Error()

	// Parse "[X:Y] message" format (goccy/go-yaml)
	if match := goccyErrorPattern.FindStringSubmatch(strings.TrimSpace(errStr)); match != nil {
		if _, parseErr := fmt.Sscanf(match[1]+" "+match[2], "%d %d", &line, &column); parseErr == nil {
			return line + startLine, column, firstLine(match[3])
		}
		line, column = 0, 0
	}

	// Parse "yaml: line X: column Y: message" format (parsers that provide column info)
	if strings.Contains(errStr, "yaml: line ") && strings.Contains(errStr, "column ") {
		parts := strings.SplitN(errStr, "yaml: line ", 2)
		lineInfo := parts[1]
		if colonIndex := strings.Index(lineInfo, ":"); colonIndex > 0 {
			if _, parseErr := fmt.Sscanf(lineInfo[:colonIndex], "%d", &line); parseErr == nil {
				remaining := lineInfo[colonIndex+1:]
				if columnParts := strings.SplitN(remaining, "column ", 2); len(columnParts) > 1 {
					columnInfo := columnParts[1]
					if colonIndex2 := strings.Index(columnInfo, ":"); colonIndex2 > 0 {
						if _, parseErr := fmt.Sscanf(columnInfo[:colonIndex2], "%d", &column); parseErr == nil {
							return line + startLine, column, strings.TrimSpace(columnInfo[colonIndex2+1:])
						}
					}
				}
			}
		}
		line, column = 0, 0
	}

	// Parse "yaml: line X: message" format (standard format without column info)
	if strings.Contains(errStr, "yaml: line ") {
		parts := strings.SplitN(errStr, "yaml: line ", 2)
		lineInfo := parts[1]
		if colonIndex := strings.Index(lineInfo, ":"); colonIndex > 0 {
			if _, parseErr := fmt.Sscanf(lineInfo[:colonIndex], "%d", &line); parseErr == nil {
				return line + startLine, 1, strings.TrimSpace(lineInfo[colonIndex+1:])
			}
		}
		line = 0
	}

	// Parse "yaml: unmarshal errors:\n  line X: message" format (multiline errors)
	if strings.Contains(errStr, "yaml: unmarshal errors:") {
		for _, errorLine := range strings.Split(errStr, "\n") {
			errorLine = strings.TrimSpace(errorLine)
			parts := strings.SplitN(errorLine, "line ", 2)
			if len(parts) < 2 {
				continue
			}
			if colonIndex := strings.Index(parts[1], ":"); colonIndex > 0 {
				if _, parseErr := fmt.Sscanf(parts[1][:colonIndex], "%d", &line); parseErr == nil {
					return line + startLine, 1, strings.TrimSpace(parts[1][colonIndex+1:])
				}
			}
		}
		line = 0
	}

	// Fallback: return original error message
	return 0, 0, errStr
}
