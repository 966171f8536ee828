package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("drone-ls.schema")

//go:embed schemas/drone-schema.json
var bundledRoot []byte

//go:embed schemas/kubernetes-definitions.json
var bundledKubernetes []byte

const (
	// DefaultURL is the canonical identifier of the Drone schema and the default remote location
	DefaultURL = "https://json.schemastore.org/drone.json"
	// KubernetesURL identifies the sub-schema referenced by kubernetes pipelines
	KubernetesURL = "https://json.schemastore.org/kubernetes-definitions.json"

	// RootAsset and KubernetesAsset are the on-disk names of the two schema documents
	RootAsset       = "drone-schema.json"
	KubernetesAsset = "kubernetes-definitions.json"
)

// Source selects where the root schema comes from
type Source string

const (
	SourceBundled Source = "bundled"
	SourceRemote  Source = "remote"
)

// ErrNotLoaded is returned when validation is attempted without a compiled schema
var ErrNotLoaded = errors.New("schema not loaded")

// LoadError reports a schema asset that could not be read, decoded or compiled
type LoadError struct {
	Asset string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Asset, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Options controls how a schema Document is loaded
type Options struct {
	Source Source
	// URL of the remote root schema; DefaultURL when empty
	URL string
	// Dir overrides the bundled assets with the two files found in this directory
	Dir string
	// Client is used for remote fetches; a client with a 30 second timeout when nil
	Client *http.Client
}

// Property describes one top-level key of the schema, for hover and completion
type Property struct {
	Name        string
	Description string
	Type        string
	Enum        []string
}

// Document is a compiled, immutable schema ready for validation
type Document struct {
	id       string
	source   Source
	root     map[string]any
	compiled *jsonschema.Schema
	branches BranchTable
}

// Load reads and compiles the schema. A failed remote fetch falls back to the bundled
// root schema; any other failure is returned as a *LoadError.
func Load(opts Options) (*Document, error) {
	rootData, kubernetesData, err := readAssets(opts.Dir)
	if err != nil {
		return nil, err
	}

	root, err := decodeObject(RootAsset, rootData)
	if err != nil {
		return nil, err
	}
	kubernetes, err := decodeObject(KubernetesAsset, kubernetesData)
	if err != nil {
		return nil, err
	}

	source := SourceBundled
	id := stringField(root, "$id", DefaultURL)
	var loader *httpURLLoader

	if opts.Source == SourceRemote {
		url := opts.URL
		if url == "" {
			url = DefaultURL
		}
		loader = newHTTPURLLoader(opts.Client)
		remote, err := loader.Load(url)
		if err != nil {
			log.Warningf("Using bundled schema: %s", err)
		} else if m, ok := remote.(map[string]any); ok {
			root = m
			id = url
			source = SourceRemote
		} else {
			log.Warningf("Using bundled schema: %s is not a JSON object", url)
		}
	}

	compiler := jsonschema.NewCompiler()
	if loader != nil {
		compiler.UseLoader(jsonschema.SchemeURLLoader{
			"https": loader,
			"http":  loader,
		})
	}

	if err := compiler.AddResource(stringField(kubernetes, "$id", KubernetesURL), kubernetes); err != nil {
		return nil, &LoadError{Asset: KubernetesAsset, Err: err}
	}
	if err := compiler.AddResource(id, root); err != nil {
		return nil, &LoadError{Asset: RootAsset, Err: err}
	}

	compiled, err := compiler.Compile(id)
	if err != nil {
		return nil, &LoadError{Asset: RootAsset, Err: err}
	}

	log.Infof("Loaded %s schema %s", source, id)
	return &Document{
		id:       id,
		source:   source,
		root:     root,
		compiled: compiled,
		branches: buildBranchTable(root),
	}, nil
}

// Bundled loads the schema embedded in the binary
func Bundled() (*Document, error) {
	return Load(Options{Source: SourceBundled})
}

// BundledAsset returns a copy of an embedded schema document, or nil for an unknown name
func BundledAsset(name string) []byte {
	switch name {
	case RootAsset:
		return bytes.Clone(bundledRoot)
	case KubernetesAsset:
		return bytes.Clone(bundledKubernetes)
	default:
		return nil
	}
}

func readAssets(dir string) ([]byte, []byte, error) {
	if dir == "" {
		return bundledRoot, bundledKubernetes, nil
	}
	root, err := os.ReadFile(filepath.Join(dir, RootAsset))
	if err != nil {
		return nil, nil, &LoadError{Asset: RootAsset, Err: err}
	}
	kubernetes, err := os.ReadFile(filepath.Join(dir, KubernetesAsset))
	if err != nil {
		return nil, nil, &LoadError{Asset: KubernetesAsset, Err: err}
	}
	return root, kubernetes, nil
}

func decodeObject(asset string, data []byte) (map[string]any, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Asset: asset, Err: err}
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, &LoadError{Asset: asset, Err: errors.New("schema is not a JSON object")}
	}
	return m, nil
}

// ID returns the identifier the root schema was compiled under
func (d *Document) ID() string {
	return d.id
}

// Source reports whether the bundled or the remote root schema is in use
func (d *Document) Source() Source {
	return d.source
}

// Branches returns the discriminants of the root union
func (d *Document) Branches() BranchTable {
	return d.branches
}

// Property looks up a top-level property of the root schema
func (d *Document) Property(name string) (Property, bool) {
	if d == nil {
		return Property{}, false
	}
	props, _ := d.root["properties"].(map[string]any)
	raw, ok := props[name].(map[string]any)
	if !ok {
		return Property{}, false
	}

	prop := Property{
		Name:        name,
		Description: stringField(raw, "description", ""),
	}
	switch t := raw["type"].(type) {
	case string:
		prop.Type = t
	case []any:
		for i, item := range t {
			if i > 0 {
				prop.Type += " | "
			}
			prop.Type += fmt.Sprint(item)
		}
	}
	if values, ok := raw["enum"].([]any); ok {
		for _, v := range values {
			prop.Enum = append(prop.Enum, fmt.Sprint(v))
		}
	}
	return prop, true
}

// Properties lists the top-level properties of the root schema sorted by name
func (d *Document) Properties() []Property {
	if d == nil {
		return nil
	}
	props, _ := d.root["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Property, 0, len(names))
	for _, name := range names {
		if prop, ok := d.Property(name); ok {
			out = append(out, prop)
		}
	}
	return out
}

func stringField(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// httpURLLoader implements URLLoader for HTTP(S) URLs
type httpURLLoader struct {
	client *http.Client
}

func newHTTPURLLoader(client *http.Client) *httpURLLoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &httpURLLoader{client: client}
}

// Load implements URLLoader interface for HTTP URLs
func (h *httpURLLoader) Load(url string) (any, error) {
	resp, err := h.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL %s: HTTP %d", url, resp.StatusCode)
	}

	result, err := jsonschema.UnmarshalJSON(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode JSON from %s: %w", url, err)
	}
	return result, nil
}
