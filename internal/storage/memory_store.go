package storage

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory ObjectStore. State is lost when the process exits,
// which suits single runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	refs    map[string][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*Object),
		refs:    make(map[string][]string),
	}
}

// Put stores an object and returns its content hash.
func (m *MemoryStore) Put(_ context.Context, obj *Object) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := obj.Hash
	if hash == "" {
		hash = HashData(obj.Data)
	}

	now := time.Now()
	if existing, ok := m.objects[hash]; ok {
		existing.Metadata.RefCount++
		existing.Metadata.LastAccessed = now
		return hash, nil
	}

	stored := &Object{
		Hash: hash,
		Type: obj.Type,
		Size: int64(len(obj.Data)),
		Data: slices.Clone(obj.Data),
		Metadata: Metadata{
			CreatedAt:    now,
			LastAccessed: now,
			RefCount:     1,
			Custom:       maps.Clone(obj.Metadata.Custom),
		},
	}
	m.objects[hash] = stored
	return hash, nil
}

// Get retrieves a copy of an object.
func (m *MemoryStore) Get(_ context.Context, hash string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}
	obj.Metadata.LastAccessed = time.Now()

	out := *obj
	out.Data = slices.Clone(obj.Data)
	out.Metadata.Custom = maps.Clone(obj.Metadata.Custom)
	return &out, nil
}

// Exists reports whether an object is stored.
func (m *MemoryStore) Exists(_ context.Context, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[hash]
	return ok, nil
}

// Delete removes an object.
func (m *MemoryStore) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[hash]; !ok {
		return ErrNotFound{Hash: hash}
	}
	delete(m.objects, hash)
	return nil
}

// List returns the sorted hashes of objects of the given type, or all objects.
func (m *MemoryStore) List(_ context.Context, objectType ObjectType) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hashes := make([]string, 0, len(m.objects))
	for hash, obj := range m.objects {
		if objectType == "" || obj.Type == objectType {
			hashes = append(hashes, hash)
		}
	}
	slices.Sort(hashes)
	return hashes, nil
}

// SetRef points a named ref at a set of object hashes.
func (m *MemoryStore) SetRef(_ context.Context, name string, hashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[name] = slices.Clone(hashes)
	return nil
}

// GetRef returns the hashes of a ref.
func (m *MemoryStore) GetRef(_ context.Context, name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.refs[name]), nil
}

// Refs returns every ref name, sorted.
func (m *MemoryStore) Refs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.refs)), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
