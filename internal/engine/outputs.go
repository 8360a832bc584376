package engine

import (
	"fmt"
	"slices"
	"sync"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

// outputStore holds the published outputs of a run. The coordinator writes,
// running pipelines read.
type outputStore struct {
	mu   sync.RWMutex
	docs map[string][]*document.Document
}

func newOutputStore() *outputStore {
	return &outputStore{docs: make(map[string][]*document.Document)}
}

func (s *outputStore) publish(name string, docs []*document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = slices.Clone(docs)
}

func (s *outputStore) get(name string) ([]*document.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs, ok := s.docs[name]
	return docs, ok
}

// outputsView is the module.Outputs seen by one pipeline. Only transitive
// dependencies are visible, which guarantees they finished before the caller started.
type outputsView struct {
	store    *outputStore
	pipeline string
	allowed  map[string]bool
}

func (v outputsView) FromPipelines(names ...string) ([]*document.Document, error) {
	var out []*document.Document
	for _, n := range names {
		if !v.allowed[n] {
			return nil, ferrors.ConfigError(fmt.Sprintf("pipeline %q is not a dependency of %q", n, v.pipeline)).
				WithContext("pipeline", v.pipeline).
				WithContext("requested", n).
				Build()
		}
		docs, ok := v.store.get(n)
		if !ok {
			return nil, ferrors.ConfigError(fmt.Sprintf("pipeline %q has no published outputs", n)).
				WithContext("pipeline", v.pipeline).
				WithContext("requested", n).
				Build()
		}
		out = append(out, docs...)
	}
	return out, nil
}
