package schema

import (
	"sync"
	"sync/atomic"
)

// Store holds the schema Document shared by all validation sessions. Reload swaps
// the document atomically; sessions already holding the previous one keep using it.
type Store struct {
	mu      sync.Mutex
	opts    Options
	current atomic.Pointer[Document]
}

// NewStore loads the schema once. A load failure is logged and leaves the store empty,
// which disables schema validation until a successful Reload.
func NewStore(opts Options) *Store {
	s := &Store{opts: opts}
	if _, err := s.Reload(opts); err != nil {
		log.Errorf("Schema validation disabled: %s", err)
	}
	return s
}

// Current returns the active document or nil when no schema is loaded
func (s *Store) Current() *Document {
	return s.current.Load()
}

// Options returns the options the active document was loaded with
func (s *Store) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Reload loads the schema with new options. On failure the previous document stays active.
func (s *Store) Reload(opts Options) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := Load(opts)
	if err != nil {
		return s.current.Load(), err
	}
	s.opts = opts
	s.current.Store(doc)
	return doc, nil
}
