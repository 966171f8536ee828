package parser

import (
	"errors"
	"testing"
)

func TestExtractYAMLError(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		startLine       int
		expectedLine    int
		expectedColumn  int
		expectedMessage string
	}{
		{
			name:            "goccy bracket format",
			err:             errors.New("[3:9] sequence end token ']' not found\n   3 | steps: [a, b\n               ^"),
			startLine:       0,
			expectedLine:    3,
			expectedColumn:  9,
			expectedMessage: "sequence end token ']' not found",
		},
		{
			name:            "goccy bracket format with offset",
			err:             errors.New("[1:1] unexpected key name"),
			startLine:       4,
			expectedLine:    5,
			expectedColumn:  1,
			expectedMessage: "unexpected key name",
		},
		{
			name:            "yaml line error",
			err:             errors.New("yaml: line 7: mapping values are not allowed in this context"),
			startLine:       1,
			expectedLine:    8, // 7 + 1
			expectedColumn:  1,
			expectedMessage: "mapping values are not allowed in this context",
		},
		{
			name:            "yaml line and column error",
			err:             errors.New("yaml: line 2: column 5: did not find expected key"),
			startLine:       0,
			expectedLine:    2,
			expectedColumn:  5,
			expectedMessage: "did not find expected key",
		},
		{
			name:            "yaml unmarshal errors",
			err:             errors.New("yaml: unmarshal errors:\n  line 4: cannot unmarshal !!str `yes` into bool"),
			startLine:       0,
			expectedLine:    4,
			expectedColumn:  1,
			expectedMessage: "cannot unmarshal !!str `yes` into bool",
		},
		{
			name:            "non-yaml error",
			err:             errors.New("some other error"),
			startLine:       1,
			expectedLine:    0,
			expectedColumn:  0,
			expectedMessage: "some other error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, column, message := ExtractYAMLError(tt.err, tt.startLine)

			if line != tt.expectedLine {
				t.Errorf("Expected line %d, got %d", tt.expectedLine, line)
			}
			if column != tt.expectedColumn {
				t.Errorf("Expected column %d, got %d", tt.expectedColumn, column)
			}
			if message != tt.expectedMessage {
				t.Errorf("Expected message %q, got %q", tt.expectedMessage, message)
			}
		})
	}
}
