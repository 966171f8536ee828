package validation

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dipievil/drone-ci-ex-helper/pkg/constants"
	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/dipievil/drone-ci-ex-helper/pkg/parser"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bundledOnce sync.Once
	bundledDoc  *schema.Document
	bundledErr  error
)

func testContext(t *testing.T) Context {
	t.Helper()
	bundledOnce.Do(func() {
		bundledDoc, bundledErr = schema.Bundled()
	})
	require.NoError(t, bundledErr)
	return Context{Schema: bundledDoc, Settings: DefaultSettings()}
}

func run(t *testing.T, text string) (*document.Document, Result) {
	t.Helper()
	doc := document.New("file:///repo/.drone.yml", 1, text)
	return doc, NewSession(testContext(t), doc, nil).Run()
}

func spanText(doc *document.Document, d Diagnostic) string {
	return doc.Text()[d.Span.Start:d.Span.End]
}

const scenarioA = `kind: pipeline
type: docker
name: t
steps:
  - name: build
    image: "node:18"
    commands: [npm install]
`

func TestScenarioValidPipeline(t *testing.T) {
	_, result := run(t, scenarioA)
	assert.Empty(t, result.Diagnostics)
	assert.Equal(t, []State{Idle, Parsing, Validating, Disambiguating, Done}, result.Trace)
}

func TestScenarioMissingKind(t *testing.T) {
	_, result := run(t, "type: docker\nname: t\nsteps: []\n")
	require.Len(t, result.Diagnostics, 1, "diagnostics: %+v", result.Diagnostics)

	d := result.Diagnostics[0]
	assert.Equal(t, "required", d.Keyword)
	assert.Contains(t, d.Message, `"kind"`)
	assert.Equal(t, constants.SchemaSource, d.Source)
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, document.Range{}, d.Range)
}

func TestScenarioInvalidEvent(t *testing.T) {
	text := `kind: pipeline
type: docker
name: t
steps:
  - name: t
    image: a
trigger:
  event: [push, bogus]
`
	doc, result := run(t, text)
	require.Len(t, result.Diagnostics, 1, "diagnostics: %+v", result.Diagnostics)

	d := result.Diagnostics[0]
	assert.True(t, strings.HasPrefix(d.Path, "/trigger/event/"), "unexpected path %s", d.Path)
	assert.Equal(t, "enum", d.Keyword)
	assert.Contains(t, d.Message, `invalid value "bogus"`)
	assert.Contains(t, d.Message, "push")
	assert.Equal(t, "bogus", spanText(doc, d))
	for _, other := range result.Diagnostics {
		assert.NotContains(t, []string{"oneOf", "anyOf"}, other.Keyword)
	}
}

func TestScenarioUnterminatedSequence(t *testing.T) {
	doc, result := run(t, "kind: pipeline\nsteps: [a, b\n")
	require.Len(t, result.Diagnostics, 1)

	d := result.Diagnostics[0]
	assert.Equal(t, constants.ParserSource, d.Source)
	assert.Greater(t, d.Span.End, d.Span.Start)
	assert.LessOrEqual(t, d.Span.End, doc.Len())
	assert.Equal(t, []State{Idle, Parsing, ParseFailed, Done}, result.Trace)

	doc, result = run(t, "kind: pipeline\nsteps: [a, b\nname: x\n")
	require.Len(t, result.Diagnostics, 1)
	d = result.Diagnostics[0]
	assert.Equal(t, "[a, b", doc.Text()[d.Span.Start:d.Span.End])
}

func TestDuplicateKeysReachSchemaValidation(t *testing.T) {
	_, result := run(t, "kind: pipeline\ntype: docker\nname: a\nname: b\nsteps:\n  - name: s\n    image: x\n")
	assert.Empty(t, result.Diagnostics)
	assert.Contains(t, result.Trace, Validating)

	doc, result := run(t, "kind: pipeline\ntype: docker\nname: a\nsteps:\n  - name: s\n    image: x\ntrigger:\n  event: [push]\ntrigger:\n  event: [bogus]\n")
	require.NotEmpty(t, result.Diagnostics)
	assert.Contains(t, result.Trace, Validating)
	for _, d := range result.Diagnostics {
		assert.Equal(t, constants.SchemaSource, d.Source)
		assert.Equal(t, "bogus", doc.Text()[d.Span.Start:d.Span.End])
	}
}

func TestParseErrorsSuppressSchemaValidation(t *testing.T) {
	inputs := []string{
		"kind: pipeline\nsteps: [a, b\n",
		"kind: pipeline\ntrigger: {event: push\n",
		"kind: bogus\nname: \"abc\n",
		"kind: pipeline\nname: 'unterminated\n",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, result := run(t, input)
			require.NotEmpty(t, result.Diagnostics)
			for _, d := range result.Diagnostics {
				assert.Equal(t, constants.ParserSource, d.Source, "unexpected schema diagnostic: %s", d.Message)
			}
		})
	}
}

func TestValidationIsIdempotent(t *testing.T) {
	inputs := []string{
		scenarioA,
		"type: docker\nname: t\nsteps: []\n",
		"kind: pipeline\nsteps:\n  - name: a\n    image: b\n    foo: 1\n    bar: 2\n",
		"kind: secret\nname: x\n---\nkind: pipeline\nsteps: {}\n",
	}

	for _, input := range inputs {
		_, first := run(t, input)
		_, second := run(t, input)
		assert.Equal(t, first.Diagnostics, second.Diagnostics)
	}
}

func TestNoForeignTypeConstDiagnostics(t *testing.T) {
	_, result := run(t, "type: docker\nsteps:\n  - name: a\n    image: b\n")
	for _, d := range result.Diagnostics {
		assert.NotEqual(t, "const", d.Keyword, "unexpected diagnostic: %s", d.Message)
		for _, other := range []string{"kubernetes", "exec", "ssh", "digitalocean", "macstadium"} {
			assert.NotContains(t, d.Message, other)
		}
	}
}

func TestAdditionalPropertyUnderlinesKey(t *testing.T) {
	doc, result := run(t, "kind: pipeline\nsteps:\n  - name: a\n    image: b\n    foo: bar\n")
	require.Len(t, result.Diagnostics, 1, "diagnostics: %+v", result.Diagnostics)

	d := result.Diagnostics[0]
	assert.Equal(t, "/steps/0/foo", d.Path)
	assert.Equal(t, "foo", spanText(doc, d))
	assert.Equal(t, `/steps/0/foo: property "foo" is not allowed`, d.Message)
	require.Len(t, d.Related, 1)
	assert.Equal(t, "additionalProperties", d.Related[0].Message)
	assert.Equal(t, d.Range, d.Related[0].Range)
}

func TestMultipleDocuments(t *testing.T) {
	text := "kind: pipeline\ntype: docker\nsteps: []\n---\nkind: secret\nname: token\n"
	_, result := run(t, text)
	require.Len(t, result.Diagnostics, 1, "diagnostics: %+v", result.Diagnostics)

	d := result.Diagnostics[0]
	assert.Equal(t, "required", d.Keyword)
	assert.Contains(t, d.Message, `"get"`)
	assert.GreaterOrEqual(t, d.Range.Start.Line, 3)
}

func TestWrongKindReportsOnlyTheKind(t *testing.T) {
	doc, result := run(t, "kind: pipelin\nsteps: []\n")
	require.Len(t, result.Diagnostics, 1, "diagnostics: %+v", result.Diagnostics)
	assert.Equal(t, "enum", result.Diagnostics[0].Keyword)
	assert.Equal(t, "pipelin", spanText(doc, result.Diagnostics[0]))
}

func TestEmptyDocumentHasNoDiagnostics(t *testing.T) {
	_, result := run(t, "# nothing here yet\n")
	assert.Empty(t, result.Diagnostics)
}

func TestDisabledValidation(t *testing.T) {
	ctx := testContext(t)
	ctx.Settings.Validation.Enabled = false

	doc := document.New("u", 1, "steps: [a, b\n")
	result := NewSession(ctx, doc, nil).Run()
	assert.True(t, result.Disabled)
	assert.Empty(t, result.Diagnostics)
	assert.Equal(t, []State{Idle, Done}, result.Trace)

	published := 0
	m := NewManager(PublisherFunc(func(string, int32, []Diagnostic) { published++ }))
	m.Validate(ctx, doc)
	assert.Equal(t, 0, published)
}

func TestFailureDiagnosticComesFromSchema(t *testing.T) {
	doc := document.New("u", 1, "kind: pipeline\ntype: docker\n")
	file, errs := parser.Parse(doc)
	require.Empty(t, errs)

	d := NewSession(testContext(t), doc, nil).failureDiagnostic(file.Documents[0], errors.New("validator crashed"))
	assert.Equal(t, constants.SchemaSource, d.Source)
	assert.Equal(t, SeverityError, d.Severity)
	assert.Contains(t, d.Message, "validator crashed")
	assert.Equal(t, "kind: pipeline", doc.Text()[d.Span.Start:d.Span.End])
}

func TestMissingSchemaKeepsParseDiagnostics(t *testing.T) {
	ctx := Context{Settings: DefaultSettings()}

	valid := NewSession(ctx, document.New("u", 1, "type: docker\n"), nil).Run()
	assert.Empty(t, valid.Diagnostics)
	assert.Contains(t, valid.Trace, SchemaFailed)

	broken := NewSession(ctx, document.New("u", 1, "steps: [a\n"), nil).Run()
	assert.Len(t, broken.Diagnostics, 1)
}

func TestManagerPublishesNewestRun(t *testing.T) {
	type publication struct {
		uri     string
		version int32
		count   int
	}
	var published []publication
	m := NewManager(PublisherFunc(func(uri string, version int32, diags []Diagnostic) {
		published = append(published, publication{uri, version, len(diags)})
	}))

	ctx := testContext(t)
	older := document.New("u", 1, "type: docker\n")
	newer := document.New("u", 2, scenarioA)

	first := m.Begin(older.URI)
	second := m.Begin(newer.URI)

	r2 := m.Run(ctx, newer, second)
	r1 := m.Run(ctx, older, first)

	assert.False(t, r2.Superseded)
	assert.True(t, r1.Superseded)
	require.Len(t, published, 1)
	assert.Equal(t, publication{"u", 2, 0}, published[0])

	m.Validate(ctx, document.New("other", 1, "type: docker\n"))
	require.Len(t, published, 2)
	assert.Equal(t, "other", published[1].uri)

	stale := m.Begin("other")
	m.Forget("other")
	r := m.Run(ctx, document.New("other", 2, scenarioA), stale)
	assert.True(t, r.Superseded)
	assert.Len(t, published, 2)
}

func TestManagerIgnoresRunsFromBeforeReopen(t *testing.T) {
	var versions []int32
	m := NewManager(PublisherFunc(func(uri string, version int32, diags []Diagnostic) {
		versions = append(versions, version)
	}))
	ctx := testContext(t)

	beforeClose := m.Begin("u")
	m.Forget("u")
	afterReopen := m.Begin("u")
	assert.NotEqual(t, beforeClose, afterReopen)

	late := m.Run(ctx, document.New("u", 1, scenarioA), beforeClose)
	assert.True(t, late.Superseded)
	assert.Empty(t, versions)

	current := m.Run(ctx, document.New("u", 1, scenarioA), afterReopen)
	assert.False(t, current.Superseded)
	assert.Equal(t, []int32{1}, versions)
}
