package lsp

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// documentStore holds the open documents. Every edit replaces the stored snapshot,
// so a validation run keeps reading the version it started with.
type documentStore struct {
	mu        sync.RWMutex
	documents map[protocol.DocumentUri]*document.Document
}

func newDocumentStore() *documentStore {
	return &documentStore{documents: make(map[protocol.DocumentUri]*document.Document)}
}

func (s *documentStore) open(uri protocol.DocumentUri, version int32, text string) *document.Document {
	doc := document.New(uri, version, text)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[uri] = doc
	return doc
}

// change applies content changes in order and stores the new snapshot
func (s *documentStore) change(uri protocol.DocumentUri, version int32, changes []any) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.documents[uri]
	if !ok {
		return nil, fmt.Errorf("document %s is not open", uri)
	}

	converted := make([]document.Change, 0, len(changes))
	for _, raw := range changes {
		c, err := convertChange(raw)
		if err != nil {
			return nil, err
		}
		converted = append(converted, c)
	}

	next, err := current.Apply(version, converted...)
	if err != nil {
		return nil, fmt.Errorf("failed to apply changes to %s: %w", uri, err)
	}
	s.documents[uri] = next
	return next, nil
}

func (s *documentStore) close(uri protocol.DocumentUri) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, uri)
}

func (s *documentStore) get(uri protocol.DocumentUri) (*document.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[uri]
	return doc, ok
}

// all returns the open documents ordered by URI
func (s *documentStore) all() []*document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*document.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

func convertChange(raw any) (document.Change, error) {
	switch c := raw.(type) {
	case protocol.TextDocumentContentChangeEvent:
		if c.Range == nil {
			return document.Change{Text: c.Text}, nil
		}
		r := fromProtocolRange(*c.Range)
		return document.Change{Range: &r, Text: c.Text}, nil
	case protocol.TextDocumentContentChangeEventWhole:
		return document.Change{Text: c.Text}, nil
	default:
		return document.Change{}, fmt.Errorf("unsupported content change %T", raw)
	}
}

func fromProtocolRange(r protocol.Range) document.Range {
	return document.Range{
		Start: document.Position{Line: int(r.Start.Line), Character: int(r.Start.Character)},
		End:   document.Position{Line: int(r.End.Line), Character: int(r.End.Character)},
	}
}

func toProtocolRange(r document.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(r.Start.Line), Character: protocol.UInteger(r.Start.Character)},
		End:   protocol.Position{Line: protocol.UInteger(r.End.Line), Character: protocol.UInteger(r.End.Character)},
	}
}
