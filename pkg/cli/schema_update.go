package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dipievil/drone-ci-ex-helper/pkg/console"
	"github.com/dipievil/drone-ci-ex-helper/pkg/sanitizer"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// UpdateOptions configures "schema update"
type UpdateOptions struct {
	URL string
	// Dir receives drone-schema.json and kubernetes-definitions.json
	Dir     string
	Client  *http.Client
	Verbose bool
}

// UpdateSchema downloads the root schema, checks that it compiles together with the
// bundled Kubernetes definitions, and writes both into opts.Dir
func UpdateSchema(ctx context.Context, opts UpdateOptions, out io.Writer) error {
	if opts.URL == "" {
		opts.URL = schema.DefaultURL
	}
	if opts.Dir == "" {
		return fmt.Errorf("no output directory given, use --dir or set schemaDir in the settings file")
	}
	if err := sanitizer.CheckSchemaURL(opts.URL); err != nil {
		return err
	}

	progress := console.NewProgress(os.Stderr, "Fetching schema from "+opts.URL)
	progress.Start()
	defer progress.Stop()
	data, err := fetchSchema(ctx, opts.Client, opts.URL)
	if err != nil {
		return err
	}

	progress.Step("Checking schema")
	if err := checkSchemaShape(data); err != nil {
		return fmt.Errorf("downloaded schema from %s is not usable: %w", opts.URL, err)
	}

	progress.Step("Compiling schema")
	kubernetes := schema.BundledAsset(schema.KubernetesAsset)

	// Compile in a scratch directory first so a broken download never replaces a working schema
	scratch, err := os.MkdirTemp("", "drone-schema-")
	if err != nil {
		return fmt.Errorf("failed to create temporary directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := writeSchemaAssets(scratch, data, kubernetes); err != nil {
		return err
	}
	doc, err := schema.Load(schema.Options{Source: schema.SourceBundled, Dir: scratch})
	progress.Stop()
	if err != nil {
		return fmt.Errorf("downloaded schema does not compile: %w", err)
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.Dir, err)
	}
	if err := writeSchemaAssets(opts.Dir, data, kubernetes); err != nil {
		return err
	}

	if opts.Verbose {
		fmt.Fprintln(out, console.FormatVerboseMessage(fmt.Sprintf("Schema %s has %d top-level properties", doc.ID(), len(doc.Properties()))))
	}
	fmt.Fprintln(out, console.FormatSuccessMessage(fmt.Sprintf("Schema written to %s", console.ToRelativePath(opts.Dir))))
	return nil
}

func fetchSchema(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/schema+json, application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return data, nil
}

// checkSchemaShape rejects documents that are valid JSON but clearly not a pipeline schema
func checkSchemaShape(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("expected a JSON object")
	}
	if _, ok := m["$schema"]; !ok {
		return fmt.Errorf("missing $schema")
	}
	_, hasDefinitions := m["definitions"]
	_, hasProperties := m["properties"]
	if !hasDefinitions && !hasProperties {
		return fmt.Errorf("missing definitions and properties")
	}
	return nil
}

func writeSchemaAssets(dir string, root, kubernetes []byte) error {
	assets := []struct {
		name string
		data []byte
	}{
		{schema.RootAsset, root},
		{schema.KubernetesAsset, kubernetes},
	}
	for _, asset := range assets {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, asset.data, "", "  "); err != nil {
			return fmt.Errorf("failed to format %s: %w", asset.name, err)
		}
		pretty.WriteByte('\n')
		path := filepath.Join(dir, asset.name)
		if err := os.WriteFile(path, pretty.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

// ListSchemaProperties prints the top-level properties of the current schema
func ListSchemaProperties(store *schema.Store, out io.Writer) error {
	doc := store.Current()
	if doc == nil {
		return schema.ErrNotLoaded
	}

	fmt.Fprintln(out, console.FormatListHeader(fmt.Sprintf("Top-level properties of %s", doc.ID())))
	for _, prop := range doc.Properties() {
		item := prop.Name
		if prop.Type != "" {
			item += " (" + prop.Type + ")"
		}
		if prop.Description != "" {
			item += ": " + prop.Description
		}
		fmt.Fprintln(out, console.FormatListItem(item))
	}
	return nil
}
