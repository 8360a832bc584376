// Package meta implements the layered metadata store attached to every document.
//
// A Metadata value is an immutable stack of key/value layers. Adding metadata never
// mutates an existing store: With pushes one new layer on top of the shared stack,
// so derivations are O(1) in the number of ancestor layers and readers never lock.
//
// Lookups scan layers from the most recently added to the oldest and return the
// first hit. Stored values may implement Value, in which case they are resolved
// on read with the owning store as context:
//
//	md := meta.New(meta.Set("first", "Ada").Set("last", "Lovelace"))
//	md = md.With(meta.Set("name", meta.Lazy(func(m meta.Metadata) any {
//		return m.String("first", "") + " " + m.String("last", "")
//	})))
//	name, _ := meta.TryGet[string](md, "name") // "Ada Lovelace"
//
// Resolution is bounded: a chain of lazy values (or lazy values reading other lazy
// values) deeper than the store's depth limit fails with ErrResolutionDepth instead
// of recursing forever.
package meta
