package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dipievil/drone-ci-ex-helper/pkg/constants"
	"github.com/dipievil/drone-ci-ex-helper/pkg/parser"
	"github.com/dipievil/drone-ci-ex-helper/pkg/validation"
	"gopkg.in/yaml.v3"
)

// FileSettings is the content of a .drone-ls.yaml file
type FileSettings struct {
	validation.Settings `yaml:",inline"`
	// SchemaDir points at a directory holding drone-schema.json and
	// kubernetes-definitions.json, as written by "schema update"
	SchemaDir string `yaml:"schemaDir,omitempty"`
}

// DefaultFileSettings returns the settings used without a settings file
func DefaultFileSettings() FileSettings {
	return FileSettings{Settings: validation.DefaultSettings()}
}

// LoadSettingsFile reads settings from path. An empty path reads the default file in the
// working directory if it exists; an explicit path must exist.
func LoadSettingsFile(path string) (FileSettings, error) {
	settings := DefaultFileSettings()

	explicit := path != ""
	if !explicit {
		path = constants.SettingsFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read settings file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&settings); err != nil {
		if errors.Is(err, io.EOF) {
			return DefaultFileSettings(), nil
		}
		line, column, message := parser.ExtractYAMLError(err, 0)
		if line > 0 {
			return DefaultFileSettings(), fmt.Errorf("%s:%d:%d: %s", path, line, column, message)
		}
		return DefaultFileSettings(), fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}
