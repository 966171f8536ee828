package validation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dipievil/drone-ci-ex-helper/internal/mapper"
	"github.com/dipievil/drone-ci-ex-helper/pkg/constants"
	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/dipievil/drone-ci-ex-helper/pkg/parser"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("drone-ls.validation")

// State is a step of a validation run
type State int

const (
	Idle State = iota
	Parsing
	ParseFailed
	Validating
	SchemaFailed
	Disambiguating
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Parsing:
		return "parsing"
	case ParseFailed:
		return "parse-failed"
	case Validating:
		return "validating"
	case SchemaFailed:
		return "schema-failed"
	case Disambiguating:
		return "disambiguating"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Result is the outcome of one run over one document snapshot
type Result struct {
	URI         string
	Version     int32
	Diagnostics []Diagnostic
	// Trace lists the states the run passed through, ending in Done
	Trace []State
	// Disabled is set when settings turned validation off; nothing is published
	Disabled bool
	// Superseded is set when a newer run for the same URI started before this one finished
	Superseded bool
}

// Session runs the parse, validate, disambiguate and resolve pipeline for one snapshot
type Session struct {
	ctx           Context
	doc           *document.Document
	disambiguator *Disambiguator
	trace         []State
}

// NewSession prepares a run of doc under ctx
func NewSession(ctx Context, doc *document.Document, d *Disambiguator) *Session {
	if d == nil {
		d = NewDisambiguator()
	}
	return &Session{ctx: ctx, doc: doc, disambiguator: d}
}

func (s *Session) enter(state State) {
	s.trace = append(s.trace, state)
}

type evaluated struct {
	tree  *parser.Tree
	value any
	errs  []schema.ValidationError
}

// Run executes the state machine to completion. It never fails: every problem
// becomes a diagnostic or a log entry.
func (s *Session) Run() Result {
	s.trace = nil
	s.enter(Idle)
	result := Result{URI: s.doc.URI, Version: s.doc.Version}

	if !s.ctx.Settings.Validation.Enabled {
		s.enter(Done)
		result.Disabled = true
		result.Trace = s.trace
		return result
	}

	s.enter(Parsing)
	file, parseErrs := parser.Parse(s.doc)
	if len(parseErrs) > 0 {
		s.enter(ParseFailed)
		for _, perr := range parseErrs {
			result.Diagnostics = append(result.Diagnostics, BuildParseDiagnostic(s.doc, perr))
		}
		return s.finish(result)
	}

	s.enter(Validating)
	var pending []evaluated
	failed := false
	for i, tree := range file.Documents {
		if tree.Root == nil {
			continue
		}
		value := tree.Value()
		errs, err := s.ctx.Schema.Evaluate(value)
		if err != nil {
			failed = true
			if errors.Is(err, schema.ErrNotLoaded) {
				log.Debugf("Skipping schema validation of %s: %s", s.doc.URI, err)
				continue
			}
			log.Errorf("Schema validation of %s document %d failed: %s", s.doc.URI, i, err)
			result.Diagnostics = append(result.Diagnostics, s.failureDiagnostic(tree, err))
			continue
		}
		pending = append(pending, evaluated{tree: tree, value: value, errs: errs})
	}

	if failed && len(pending) == 0 {
		s.enter(SchemaFailed)
		return s.finish(result)
	}

	s.enter(Disambiguating)
	for _, ev := range pending {
		if len(ev.errs) == 0 {
			continue
		}
		inferred := InferDiscriminant(ev.value)
		for _, verr := range s.disambiguator.Filter(ev.errs, inferred, s.ctx.Schema.Branches()) {
			meta := mapper.ErrorMeta{Kind: verr.Keyword, Property: verr.Param("additionalProperty")}
			if meta.Property == "" {
				meta.Property = verr.Param("missingProperty")
			}
			res := mapper.Resolve(ev.tree, verr.Path, meta)
			if !res.Exact && len(verr.Path) > 0 {
				log.Debugf("Could not fully resolve %s in %s: %s", verr.Path, s.doc.URI, res.Reason)
			}
			result.Diagnostics = append(result.Diagnostics, BuildSchemaDiagnostic(s.doc, verr, res))
		}
	}
	return s.finish(result)
}

func (s *Session) finish(result Result) Result {
	sortDiagnostics(result.Diagnostics)
	s.enter(Done)
	result.Trace = s.trace
	return result
}

// failureDiagnostic reports a validator that could not run, on the document's first line
func (s *Session) failureDiagnostic(tree *parser.Tree, err error) Diagnostic {
	start := tree.Span.Start
	span := document.Span{Start: start, End: s.doc.LineEndOffset(start)}
	return Diagnostic{
		Span:     span,
		Range:    s.doc.RangeOf(span),
		Severity: SeverityError,
		Message:  fmt.Sprintf("Failed to validate document: %s", err),
		Source:   constants.SchemaSource,
	}
}

// Publisher receives the diagnostics of finished runs
type Publisher interface {
	Publish(uri string, version int32, diagnostics []Diagnostic)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(uri string, version int32, diagnostics []Diagnostic)

func (f PublisherFunc) Publish(uri string, version int32, diagnostics []Diagnostic) {
	f(uri, version, diagnostics)
}

// Manager runs sessions per URI and publishes only the newest run's result
type Manager struct {
	mu            sync.Mutex
	// next is shared by all URIs so a generation is never handed out twice
	next          uint64
	generations   map[string]uint64
	publisher     Publisher
	disambiguator *Disambiguator
}

// NewManager returns a Manager publishing to p
func NewManager(p Publisher) *Manager {
	return &Manager{
		generations:   make(map[string]uint64),
		publisher:     p,
		disambiguator: NewDisambiguator(),
	}
}

// Validate starts a generation for doc and runs it. See Run.
func (m *Manager) Validate(ctx Context, doc *document.Document) Result {
	return m.Run(ctx, doc, m.Begin(doc.URI))
}

// Begin claims the next generation for uri. Callers that hand the run to another
// goroutine take the generation first so runs are ordered by request, not by completion.
func (m *Manager) Begin(uri string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.generations[uri] = m.next
	return m.next
}

// Run validates doc and publishes its diagnostics unless validation is disabled,
// a later generation for the same URI exists, or the document was closed
func (m *Manager) Run(ctx Context, doc *document.Document, gen uint64) Result {
	return m.finish(gen, NewSession(ctx, doc, m.disambiguator).Run())
}

// Forget drops the bookkeeping for a closed document. Runs still in flight for it
// will not publish, and generations are never reused, so a reopened document does
// not accept them either.
func (m *Manager) Forget(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.generations, uri)
}

func (m *Manager) finish(gen uint64, result Result) Result {
	if result.Disabled {
		return result
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.generations[result.URI]; !ok || current != gen {
		log.Debugf("Discarding superseded diagnostics for %s version %d", result.URI, result.Version)
		result.Superseded = true
		return result
	}
	m.publisher.Publish(result.URI, result.Version, result.Diagnostics)
	return result
}
