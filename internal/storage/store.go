// Package storage provides content-addressable storage for change detection state.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/zeebo/blake3"
)

// ObjectStore provides content-addressable storage. Objects are stored by their
// content hash, and named refs point at the objects that are currently in use.
type ObjectStore interface {
	// Put stores an object and returns its content hash.
	// If the object already exists, it returns the existing hash without writing.
	Put(ctx context.Context, obj *Object) (hash string, err error)

	// Get retrieves an object by its content hash.
	// Returns ErrNotFound if the object doesn't exist.
	Get(ctx context.Context, hash string) (*Object, error)

	// Exists checks if an object with the given hash exists.
	Exists(ctx context.Context, hash string) (bool, error)

	// Delete removes an object by its content hash.
	// Returns ErrNotFound if the object doesn't exist.
	Delete(ctx context.Context, hash string) error

	// List returns all object hashes matching the given type filter.
	// If objectType is empty, returns all objects.
	List(ctx context.Context, objectType ObjectType) ([]string, error)

	// SetRef points a named ref at a set of object hashes.
	SetRef(ctx context.Context, name string, hashes []string) error

	// GetRef returns the hashes of a ref, or nil when the ref does not exist.
	GetRef(ctx context.Context, name string) ([]string, error)

	// Refs returns every ref name.
	Refs(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Object represents a stored artifact with its metadata.
type Object struct {
	// Hash is the content hash (BLAKE3) of the data.
	Hash string

	// Type identifies the kind of object.
	Type ObjectType

	// Size is the size of the data in bytes.
	Size int64

	// Data is the object content.
	Data []byte

	// Metadata stores additional key-value pairs.
	Metadata Metadata
}

// Metadata stores object metadata.
type Metadata struct {
	// CreatedAt is when the object was first stored.
	CreatedAt time.Time

	// LastAccessed is when the object was last retrieved.
	LastAccessed time.Time

	// RefCount counts how many times the object has been put.
	RefCount int

	// Custom allows storage-specific metadata.
	Custom map[string]string
}

// ObjectType identifies the kind of stored object.
type ObjectType string

const (
	// ObjectTypeSourceManifest is the list of input files and digests a pipeline read.
	ObjectTypeSourceManifest ObjectType = "source_manifest"

	// ObjectTypeArtifact is an output written by a pipeline.
	ObjectTypeArtifact ObjectType = "artifact"
)

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Hash
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// HashData returns the hex BLAKE3 digest used as object hash.
func HashData(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GC removes every object that no ref points to and returns how many were removed.
func GC(ctx context.Context, store ObjectStore) (int, error) {
	names, err := store.Refs(ctx)
	if err != nil {
		return 0, err
	}
	referenced := make(map[string]bool)
	for _, n := range names {
		hashes, err := store.GetRef(ctx, n)
		if err != nil {
			return 0, err
		}
		for _, h := range hashes {
			referenced[h] = true
		}
	}
	all, err := store.List(ctx, "")
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, h := range all {
		if referenced[h] {
			continue
		}
		if err := store.Delete(ctx, h); err != nil && !IsNotFound(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
