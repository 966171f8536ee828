// Package lsp serves Drone CI validation to editors over the language server protocol
package lsp

import (
	"errors"
	"sync"

	"github.com/dipievil/drone-ci-ex-helper/pkg/constants"
	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/dipievil/drone-ci-ex-helper/pkg/sanitizer"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
	"github.com/dipievil/drone-ci-ex-helper/pkg/validation"
	"github.com/goccy/go-json"
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
)

var log = commonlog.GetLogger("drone-ls.lsp")

var errNotConnected = errors.New("client connection not ready")

type clientCapabilities struct {
	configuration      bool
	relatedInformation bool
}

// Server keeps the editor's open documents validated
type Server struct {
	store     *schema.Store
	documents *documentStore
	settings  *settingsCache
	manager   *validation.Manager
	version   string

	// dispatch runs validation work off the request loop
	dispatch func(func())

	mu     sync.Mutex
	notify glsp.NotifyFunc
	call   glsp.CallFunc
	caps   clientCapabilities
}

// NewServer creates a server validating against the documents held by store
func NewServer(store *schema.Store, version string) *Server {
	s := &Server{
		store:     store,
		documents: newDocumentStore(),
		settings:  newSettingsCache(),
		version:   version,
		dispatch:  func(f func()) { go f() },
	}
	s.manager = validation.NewManager(s)
	return s
}

// handler adds the custom validate notification to the protocol handler
type handler struct {
	protocol.Handler
	server *Server
}

type validateParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
}

func (h *handler) Handle(ctx *glsp.Context) (r any, validMethod bool, validParams bool, err error) {
	if ctx.Method != constants.ValidateNotification {
		return h.Handler.Handle(ctx)
	}

	var params validateParams
	if err := json.Unmarshal(ctx.Params, &params); err != nil {
		return nil, true, false, err
	}
	h.server.bind(ctx)
	h.server.revalidate(params.TextDocument.URI)
	return nil, true, true, nil
}

// Handler returns the glsp handler for this server
func (s *Server) Handler() glsp.Handler {
	h := &handler{server: s}
	h.Handler = protocol.Handler{
		Initialize:                      s.initialize,
		Initialized:                     s.initialized,
		Shutdown:                        s.shutdown,
		SetTrace:                        s.setTrace,
		TextDocumentDidOpen:             s.didOpen,
		TextDocumentDidChange:           s.didChange,
		TextDocumentDidClose:            s.didClose,
		TextDocumentCompletion:          s.completion,
		CompletionItemResolve:           s.completionResolve,
		TextDocumentHover:               s.hover,
		WorkspaceDidChangeConfiguration: s.didChangeConfiguration,
	}
	return h
}

// RunStdio serves a single client over stdin and stdout
func (s *Server) RunStdio(debug bool) error {
	log.Infof("Starting %s language server on stdio", constants.ServerName)
	return glspserver.NewServer(s.Handler(), constants.ServerName, debug).RunStdio()
}

// RunTCP serves clients connecting to address
func (s *Server) RunTCP(address string, debug bool) error {
	log.Infof("Starting %s language server on %s", constants.ServerName, address)
	return glspserver.NewServer(s.Handler(), constants.ServerName, debug).RunTCP(address)
}

// bind remembers the connection callbacks of the current client
func (s *Server) bind(ctx *glsp.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Notify != nil {
		s.notify = ctx.Notify
	}
	if ctx.Call != nil {
		s.call = ctx.Call
	}
}

func (s *Server) capabilities() clientCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.bind(ctx)

	caps := params.Capabilities
	s.mu.Lock()
	s.caps = clientCapabilities{
		configuration: caps.Workspace != nil && isTrue(caps.Workspace.Configuration),
		relatedInformation: caps.TextDocument != nil && caps.TextDocument.PublishDiagnostics != nil &&
			isTrue(caps.TextDocument.PublishDiagnostics.RelatedInformation),
	}
	s.mu.Unlock()

	openClose := true
	change := protocol.TextDocumentSyncKindIncremental
	resolve := true

	capabilities := protocol.ServerCapabilities{
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: &openClose,
			Change:    &change,
		},
		CompletionProvider: &protocol.CompletionOptions{ResolveProvider: &resolve},
		HoverProvider:      true,
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    constants.ServerName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	s.bind(ctx)
	if !s.capabilities().configuration {
		return nil
	}
	s.dispatch(func() {
		s.registerConfigurationChanges()
		s.syncSchema(s.workspaceSettings())
	})
	return nil
}

func (s *Server) registerConfigurationChanges() {
	s.mu.Lock()
	call := s.call
	s.mu.Unlock()
	if call == nil {
		return
	}
	call(protocol.ServerClientRegisterCapability, protocol.RegistrationParams{
		Registrations: []protocol.Registration{{
			ID:     "drone-ls-configuration",
			Method: "workspace/didChangeConfiguration",
		}},
	}, nil)
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.bind(ctx)
	item := params.TextDocument
	doc := s.documents.open(item.URI, item.Version, item.Text)
	s.schedule(doc)
	return nil
}

func (s *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.bind(ctx)
	doc, err := s.documents.change(params.TextDocument.URI, params.TextDocument.Version, params.ContentChanges)
	if err != nil {
		log.Errorf("%s", err)
		return err
	}
	s.schedule(doc)
	return nil
}

func (s *Server) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.bind(ctx)
	uri := params.TextDocument.URI
	s.documents.close(uri)
	s.settings.forget(uri)
	s.manager.Forget(uri)
	s.Publish(uri, 0, nil)
	return nil
}

func (s *Server) didChangeConfiguration(ctx *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	s.bind(ctx)
	if s.capabilities().configuration {
		s.settings.reset()
	} else {
		settings, err := decodeSettings(sectionOf(params.Settings, constants.ConfigurationSection))
		if err != nil {
			log.Warningf("Ignoring malformed %s settings: %s", constants.ConfigurationSection, err)
		}
		s.settings.setGlobal(settings)
	}

	type pending struct {
		doc *document.Document
		gen uint64
	}
	var runs []pending
	for _, doc := range s.documents.all() {
		runs = append(runs, pending{doc, s.manager.Begin(doc.URI)})
	}
	s.dispatch(func() {
		s.syncSchema(s.workspaceSettings())
		for _, run := range runs {
			s.validate(run.doc, run.gen)
		}
	})
	return nil
}

func (s *Server) completion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	return completionItems(), nil
}

func (s *Server) completionResolve(ctx *glsp.Context, item *protocol.CompletionItem) (*protocol.CompletionItem, error) {
	return resolveCompletion(s.store.Current(), item), nil
}

func (s *Server) hover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.documents.get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return hoverAt(s.store.Current(), doc, params.Position), nil
}

// revalidate handles the validate notification for an open document
func (s *Server) revalidate(uri protocol.DocumentUri) {
	doc, ok := s.documents.get(uri)
	if !ok {
		log.Debugf("Ignoring validate request for %s, which is not open", uri)
		return
	}
	s.schedule(doc)
}

// schedule claims the document's generation on the request loop and validates it off it
func (s *Server) schedule(doc *document.Document) {
	gen := s.manager.Begin(doc.URI)
	s.dispatch(func() { s.validate(doc, gen) })
}

func (s *Server) validate(doc *document.Document, gen uint64) {
	var fetch func(string) (validation.Settings, error)
	if s.capabilities().configuration {
		fetch = s.fetchSettings
	}
	settings := s.settings.get(doc.URI, fetch)
	s.manager.Run(validation.Context{Schema: s.store.Current(), Settings: settings}, doc, gen)
}

// workspaceSettings returns the settings that are not scoped to a document
func (s *Server) workspaceSettings() validation.Settings {
	if !s.capabilities().configuration {
		return s.settings.globalSettings()
	}
	settings, err := s.fetchSettings("")
	if err != nil {
		log.Warningf("Using default workspace settings: %s", err)
		return validation.DefaultSettings()
	}
	return settings
}

// fetchSettings asks the client for the droneCI section, scoped to uri when it is set
func (s *Server) fetchSettings(uri string) (validation.Settings, error) {
	s.mu.Lock()
	call := s.call
	s.mu.Unlock()
	if call == nil {
		return validation.DefaultSettings(), errNotConnected
	}

	section := constants.ConfigurationSection
	item := protocol.ConfigurationItem{Section: &section}
	if uri != "" {
		scope := protocol.DocumentUri(uri)
		item.ScopeURI = &scope
	}

	var result []any
	call(protocol.ServerWorkspaceConfiguration, protocol.ConfigurationParams{
		Items: []protocol.ConfigurationItem{item},
	}, &result)
	if len(result) == 0 {
		return validation.DefaultSettings(), nil
	}
	return decodeSettings(result[0])
}

// syncSchema reloads the schema when the settings select a different source
func (s *Server) syncSchema(settings validation.Settings) {
	current := s.store.Options()
	want := settings.SchemaOptions()
	want.Dir = current.Dir
	want.Client = current.Client

	if want.Source == schema.SourceRemote {
		if want.URL == "" {
			want.URL = schema.DefaultURL
		}
		if err := sanitizer.CheckSchemaURL(want.URL); err != nil {
			log.Warningf("Keeping the bundled schema: %s", err)
			want.Source = schema.SourceBundled
		}
	}

	if want.Source == current.Source && (want.Source == schema.SourceBundled || want.URL == current.URL) {
		return
	}

	log.Infof("Reloading %s schema", want.Source)
	if _, err := s.store.Reload(want); err != nil {
		log.Errorf("Failed to reload schema: %s", err)
	}
}

// Publish sends diagnostics to the client. It implements validation.Publisher.
func (s *Server) Publish(uri string, version int32, diagnostics []validation.Diagnostic) {
	s.mu.Lock()
	notify := s.notify
	related := s.caps.relatedInformation
	s.mu.Unlock()
	if notify == nil {
		return
	}

	params := protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: toProtocolDiagnostics(uri, diagnostics, related),
	}
	if version > 0 {
		v := protocol.UInteger(version)
		params.Version = &v
	}
	notify(protocol.ServerTextDocumentPublishDiagnostics, params)
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
