package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/dipievil/drone-ci-ex-helper/pkg/console"
	"github.com/dipievil/drone-ci-ex-helper/pkg/constants"
	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/dipievil/drone-ci-ex-helper/pkg/sanitizer"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
	"github.com/dipievil/drone-ci-ex-helper/pkg/validation"
	"github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("drone-ls.cli")

// ErrProblemsFound is returned when validation produced at least one diagnostic
var ErrProblemsFound = errors.New("validation found problems")

// Output formats of the validate command
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ValidateOptions configures a validation run over files
type ValidateOptions struct {
	Files    []string
	Format   string
	Settings FileSettings
	// Jobs limits the number of files validated in parallel; zero uses the CPU count
	Jobs    int
	Verbose bool
}

// FileResult is the outcome for one file
type FileResult struct {
	File        string                  `json:"file"`
	Diagnostics []validation.Diagnostic `json:"diagnostics"`
	Error       string                  `json:"error,omitempty"`

	doc   *document.Document
	index int
}

// Problems counts diagnostics and read failures
func (r FileResult) Problems() int {
	if r.Error != "" {
		return 1
	}
	return len(r.Diagnostics)
}

// ResolveFiles returns the files to validate: the given ones, or the default
// pipeline files present in the working directory
func ResolveFiles(files []string) ([]string, error) {
	if len(files) > 0 {
		return files, nil
	}
	for _, name := range constants.DefaultPipelineFiles {
		if _, err := os.Stat(name); err == nil {
			return []string{name}, nil
		}
	}
	return nil, fmt.Errorf("no pipeline file found, looked for %v", constants.DefaultPipelineFiles)
}

// LoadSchema loads the schema selected by settings, with a spinner while a remote
// schema is fetched
func LoadSchema(settings FileSettings, verbose bool) (*schema.Store, error) {
	return loadSchema(settings, verbose, nil, os.Stderr)
}

// loadSchema reports progress and fallbacks on stderr. client is used for remote fetches.
func loadSchema(settings FileSettings, verbose bool, client *http.Client, stderr io.Writer) (*schema.Store, error) {
	opts := settings.SchemaOptions()
	opts.Dir = settings.SchemaDir
	opts.Client = client
	remote := opts.Source == schema.SourceRemote
	if remote {
		if opts.URL == "" {
			opts.URL = schema.DefaultURL
		}
		if err := sanitizer.CheckSchemaURL(opts.URL); err != nil {
			return nil, err
		}
	}

	progress := console.NewProgress(stderr, "Fetching schema from "+opts.URL)
	if remote {
		progress.Start()
	}
	store := schema.NewStore(opts)
	current := store.Current()

	if remote && current != nil && current.Source() != schema.SourceRemote {
		progress.Done(console.FormatWarningMessage(fmt.Sprintf("Remote schema %s unavailable, using the bundled schema", opts.URL)))
	} else {
		progress.Stop()
	}
	if current == nil {
		return nil, fmt.Errorf("no schema could be loaded, see the log for details")
	}
	if verbose {
		fmt.Fprintln(stderr, console.FormatVerboseMessage(fmt.Sprintf("Using %s schema %s", current.Source(), current.ID())))
	}
	return store, nil
}

// ValidateFiles validates every file against the schema and writes a report to out.
// It returns ErrProblemsFound when any file has a diagnostic or could not be read.
func ValidateFiles(store *schema.Store, opts ValidateOptions, out io.Writer) ([]FileResult, error) {
	ctx := validationContext(store, opts.Settings)
	results := validateConcurrent(ctx, opts.Files, opts.Jobs)

	var err error
	switch opts.Format {
	case FormatJSON:
		err = writeJSONReport(out, results)
	case FormatText, "":
		writeTextReport(out, results, opts.Verbose)
	default:
		return results, fmt.Errorf("unknown output format %q", opts.Format)
	}
	if err != nil {
		return results, err
	}

	for _, r := range results {
		if r.Problems() > 0 {
			return results, ErrProblemsFound
		}
	}
	return results, nil
}

// validateConcurrent runs one independent session per file, keeping input order
func validateConcurrent(ctx validation.Context, files []string, jobs int) []FileResult {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	p := pool.NewWithResults[FileResult]().WithMaxGoroutines(jobs)
	for i, file := range files {
		p.Go(func() FileResult {
			result := validateFile(ctx, file)
			result.index = i
			return result
		})
	}

	// Wait returns results in completion order
	sorted := make([]FileResult, len(files))
	for _, r := range p.Wait() {
		sorted[r.index] = r
	}
	return sorted
}

func validateFile(ctx validation.Context, file string) FileResult {
	result := FileResult{File: file, Diagnostics: []validation.Diagnostic{}}

	data, err := os.ReadFile(file)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	uri := file
	if abs, err := filepath.Abs(file); err == nil {
		uri = "file://" + filepath.ToSlash(abs)
	}
	doc := document.New(uri, 1, string(data))
	result.doc = doc

	run := validation.NewSession(ctx, doc, nil).Run()
	if run.Diagnostics != nil {
		result.Diagnostics = run.Diagnostics
	}
	return result
}

func writeJSONReport(out io.Writer, results []FileResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func writeTextReport(out io.Writer, results []FileResult, verbose bool) {
	problems := 0
	for _, r := range results {
		problems += r.Problems()
		if r.Error != "" {
			fmt.Fprintln(out, console.FormatErrorMessage(fmt.Sprintf("%s: %s", r.File, r.Error)))
			continue
		}
		fmt.Fprint(out, console.FormatDiagnostics(r.File, r.doc, r.Diagnostics))
	}

	if verbose && len(results) > 1 {
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{console.ToRelativePath(r.File), strconv.Itoa(r.Problems())})
		}
		fmt.Fprint(out, console.RenderTable(console.TableConfig{
			Title:     "Validation Results",
			Headers:   []string{"File", "Problems"},
			Rows:      rows,
			ShowTotal: true,
			TotalRow:  []string{"TOTAL", strconv.Itoa(problems)},
		}))
	}

	fmt.Fprintln(out, console.FormatSummary(problems, len(results)))
}
