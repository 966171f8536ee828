package validation

import (
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
)

// ValidationSettings mirrors the "validation" block of the droneCI configuration section
type ValidationSettings struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	SchemaSource schema.Source `json:"schemaSource" yaml:"schemaSource"`
	SchemaURL    string        `json:"schemaUrl,omitempty" yaml:"schemaUrl,omitempty"`
}

// Settings are the user-facing options that influence a validation run
type Settings struct {
	Validation ValidationSettings `json:"validation" yaml:"validation"`
}

// DefaultSettings returns the settings used when the client supplies none
func DefaultSettings() Settings {
	return Settings{
		Validation: ValidationSettings{
			Enabled:      true,
			SchemaSource: schema.SourceBundled,
			SchemaURL:    schema.DefaultURL,
		},
	}
}

// SchemaOptions returns the loader options these settings select
func (s Settings) SchemaOptions() schema.Options {
	source := s.Validation.SchemaSource
	if source != schema.SourceRemote {
		source = schema.SourceBundled
	}
	return schema.Options{
		Source: source,
		URL:    s.Validation.SchemaURL,
	}
}

// Context is everything a validation run reads. It is built once per run by the caller
// and never modified by the run.
type Context struct {
	// Schema is nil when no schema could be loaded; runs then produce parse diagnostics only
	Schema   *schema.Document
	Settings Settings
}
