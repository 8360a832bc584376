package meta

import (
	"maps"
	"slices"
)

// Value is implemented by stored values that compute their real value on read.
// The store that owns the value is passed in, so a Value may read other keys of
// the same document, including keys added in later layers.
type Value interface {
	Get(md Metadata) any
}

// Lazy adapts an ordinary function to Value.
type Lazy func(md Metadata) any

// Get implements Value.
func (f Lazy) Get(md Metadata) any { return f(md) }

// Item is a single key/value pair of a metadata layer.
type Item struct {
	Key   string
	Value any
}

// Items is an ordered set of metadata overrides that becomes one layer.
// When a key appears more than once the last value wins.
type Items []Item

// Set starts an Items list with a single pair.
func Set(key string, value any) Items {
	return Items{{Key: key, Value: value}}
}

// Set returns a new list with the pair appended. The receiver is never modified,
// so several lists may branch off a shared prefix.
func (items Items) Set(key string, value any) Items {
	return append(slices.Clip(items), Item{Key: key, Value: value})
}

// FromMap converts a map into Items ordered by key for deterministic enumeration.
func FromMap(m map[string]any) Items {
	keys := slices.Sorted(maps.Keys(m))
	items := make(Items, 0, len(keys))
	for _, k := range keys {
		items = append(items, Item{Key: k, Value: m[k]})
	}
	return items
}
