package pipeline

import (
	"iter"
	"slices"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

// Collection maps unique pipeline names to pipelines and remembers insertion order.
// It is not safe for concurrent mutation; it is treated as immutable once a run starts.
type Collection struct {
	order  []string
	byName map[string]*Pipeline
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{byName: make(map[string]*Pipeline)}
}

// Add registers p under name. Empty names, nil pipelines and duplicates are config errors.
func (c *Collection) Add(name string, p *Pipeline) error {
	if name == "" {
		return ferrors.ConfigError("pipeline name must not be empty").Build()
	}
	if p == nil {
		return ferrors.ConfigError("pipeline must not be nil").WithContext("pipeline", name).Build()
	}
	if _, exists := c.byName[name]; exists {
		return ferrors.ConfigError("duplicate pipeline name").WithContext("pipeline", name).Build()
	}
	c.byName[name] = p
	c.order = append(c.order, name)
	return nil
}

// Get returns the pipeline registered under name.
func (c *Collection) Get(name string) (*Pipeline, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// Names returns pipeline names in insertion order.
func (c *Collection) Names() []string { return slices.Clone(c.order) }

// Len returns the number of pipelines.
func (c *Collection) Len() int { return len(c.order) }

// All enumerates pipelines in insertion order.
func (c *Collection) All() iter.Seq2[string, *Pipeline] {
	return func(yield func(string, *Pipeline) bool) {
		for _, name := range c.order {
			if !yield(name, c.byName[name]) {
				return
			}
		}
	}
}

// NonIsolated returns the names of every registered non-isolated pipeline except
// the excluded one, in insertion order.
func (c *Collection) NonIsolated(except string) []string {
	var names []string
	for name, p := range c.All() {
		if name != except && !p.Isolated() {
			names = append(names, name)
		}
	}
	return names
}
