package meta

import (
	"errors"
	"fmt"
	"iter"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

// DefaultMaxDepth bounds nested lazy value resolution when no explicit limit is set.
const DefaultMaxDepth = 32

var (
	// ErrKeyNotFound is returned by Get and GetRaw when no layer holds the key.
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidKey is returned for the empty key.
	ErrInvalidKey = errors.New("metadata key must not be empty")
	// ErrResolutionDepth is returned when lazy values nest deeper than the limit.
	ErrResolutionDepth = errors.New("lazy metadata resolution exceeded depth limit")
)

// layer is one immutable node of the persistent stack.
type layer struct {
	keys   []string
	values map[string]any
	next   *layer
}

func newLayer(items Items, next *layer) *layer {
	l := &layer{
		keys:   make([]string, 0, len(items)),
		values: make(map[string]any, len(items)),
		next:   next,
	}
	for _, it := range items {
		if _, seen := l.values[it.Key]; !seen {
			l.keys = append(l.keys, it.Key)
		}
		l.values[it.Key] = it.Value
	}
	return l
}

// Metadata is an immutable, layered key/value store. The zero value is an empty store.
type Metadata struct {
	top      *layer
	maxDepth int
	depth    int
}

// New creates a store with a single layer.
func New(items Items) Metadata {
	return Metadata{}.With(items)
}

// With returns a new store with items pushed as the top layer. The receiver is unchanged.
// Empty items return the receiver as-is.
func (m Metadata) With(items Items) Metadata {
	if len(items) == 0 {
		return m
	}
	return Metadata{top: newLayer(items, m.top), maxDepth: m.maxDepth, depth: m.depth}
}

// WithMap is With for a plain map.
func (m Metadata) WithMap(values map[string]any) Metadata {
	return m.With(FromMap(values))
}

// WithMaxDepth returns the same layers with a different lazy resolution limit.
func (m Metadata) WithMaxDepth(n int) Metadata {
	m.maxDepth = n
	return m
}

// MaxDepth reports the effective lazy resolution limit.
func (m Metadata) MaxDepth() int {
	if m.maxDepth <= 0 {
		return DefaultMaxDepth
	}
	return m.maxDepth
}

// Layers reports how many layers the stack holds.
func (m Metadata) Layers() int {
	n := 0
	for l := m.top; l != nil; l = l.next {
		n++
	}
	return n
}

func (m Metadata) find(key string) (any, bool) {
	for l := m.top; l != nil; l = l.next {
		if v, ok := l.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// ContainsKey reports whether any layer holds key. The empty key is never present.
func (m Metadata) ContainsKey(key string) bool {
	if key == "" {
		return false
	}
	_, ok := m.find(key)
	return ok
}

// GetRaw returns the stored value for key without resolving lazy values.
func (m Metadata) GetRaw(key string) (any, error) {
	if key == "" {
		return nil, invalidKey()
	}
	v, ok := m.find(key)
	if !ok {
		return nil, keyNotFound(key)
	}
	return v, nil
}

// Get returns the resolved value for key. A missing key fails with ErrKeyNotFound;
// callers that prefer a non-failing lookup use TryGet.
func (m Metadata) Get(key string) (any, error) {
	if key == "" {
		return nil, invalidKey()
	}
	raw, ok := m.find(key)
	if !ok {
		return nil, keyNotFound(key)
	}
	v, err := m.resolve(raw)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConversion, "failed to resolve metadata value").
			WithContext("key", key).
			Build()
	}
	return v, nil
}

// resolve expands Value implementations until a plain value is reached. Each nested
// resolution sees a store whose depth is one higher, so lazy values that read other
// lazy values share the same budget.
func (m Metadata) resolve(v any) (any, error) {
	limit := m.MaxDepth()
	depth := m.depth
	for {
		lv, ok := v.(Value)
		if !ok {
			return v, nil
		}
		depth++
		if depth > limit {
			return nil, ErrResolutionDepth
		}
		ctx := m
		ctx.depth = depth
		v = lv.Get(ctx)
	}
}

// Keys returns the keys of every layer, most recent layer first. Keys shadowed by a
// newer layer are listed once per layer that holds them.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, m.Count())
	for l := m.top; l != nil; l = l.next {
		keys = append(keys, l.keys...)
	}
	return keys
}

// Values returns the resolved values of every layer in Keys order. Values whose
// resolution fails are reported as nil.
func (m Metadata) Values() []any {
	values := make([]any, 0, m.Count())
	for _, v := range m.All() {
		values = append(values, v)
	}
	return values
}

// All enumerates every layer's entries with lazy values resolved.
func (m Metadata) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for l := m.top; l != nil; l = l.next {
			for _, k := range l.keys {
				v, err := m.resolve(l.values[k])
				if err != nil {
					v = nil
				}
				if !yield(k, v) {
					return
				}
			}
		}
	}
}

// Count returns the number of entries summed across all layers.
func (m Metadata) Count() int {
	n := 0
	for l := m.top; l != nil; l = l.next {
		n += len(l.keys)
	}
	return n
}

// Project returns a standalone single-layer store holding the resolved values of the
// requested keys. Keys that are absent, or whose value cannot be resolved, are skipped.
func (m Metadata) Project(keys ...string) Metadata {
	items := make(Items, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		raw, ok := m.find(k)
		if !ok {
			continue
		}
		v, err := m.resolve(raw)
		if err != nil {
			continue
		}
		items = append(items, Item{Key: k, Value: v})
	}
	return Metadata{maxDepth: m.maxDepth}.With(items)
}

// ToMap flattens the store into a map of resolved values where newer layers win.
func (m Metadata) ToMap() map[string]any {
	out := make(map[string]any, m.Count())
	for l := m.top; l != nil; l = l.next {
		for _, k := range l.keys {
			if _, seen := out[k]; seen {
				continue
			}
			v, err := m.resolve(l.values[k])
			if err != nil {
				continue
			}
			out[k] = v
		}
	}
	return out
}

// String returns the value for key converted to a string, or def.
func (m Metadata) String(key, def string) string {
	if v, ok := TryGet[string](m, key); ok {
		return v
	}
	return def
}

// Int returns the value for key converted to an int, or def.
func (m Metadata) Int(key string, def int) int {
	if v, ok := TryGet[int](m, key); ok {
		return v
	}
	return def
}

// Bool returns the value for key converted to a bool, or def.
func (m Metadata) Bool(key string, def bool) bool {
	if v, ok := TryGet[bool](m, key); ok {
		return v
	}
	return def
}

// Strings returns the value for key converted to a string slice, or nil.
func (m Metadata) Strings(key string) []string {
	v, _ := TryGet[[]string](m, key)
	return v
}

// TryGet resolves key and converts the result to T. It reports false when the key is
// missing, resolution fails, or the value cannot be converted; it never returns an error.
func TryGet[T any](m Metadata, key string) (T, bool) {
	var zero T
	if key == "" {
		return zero, false
	}
	raw, ok := m.find(key)
	if !ok {
		return zero, false
	}
	v, err := m.resolve(raw)
	if err != nil {
		return zero, false
	}
	return Convert[T](v)
}

func invalidKey() error {
	return ferrors.ValidationError("metadata key must not be empty").WithCause(ErrInvalidKey).Build()
}

func keyNotFound(key string) error {
	return ferrors.NotFoundError(fmt.Sprintf("the key %q was not found in metadata", key)).
		WithCause(ErrKeyNotFound).
		WithContext("key", key).
		Build()
}
