// Package document defines the immutable unit of work that flows through pipelines.
package document

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/meta"
)

// Well-known metadata keys set by source and sink modules.
const (
	KeySource      = "source"      // path relative to the content root the document was read from
	KeyDestination = "destination" // path relative to the output root
)

// Document pairs a content reference with a metadata snapshot. Documents are never
// modified; every derivation returns a new Document and leaves the receiver intact.
// Two documents are the same entity only when they are the same pointer.
type Document struct {
	meta.Metadata

	id      string
	content Content
}

// New creates a document with the given content and a single metadata layer.
// A nil content is treated as empty.
func New(content Content, items meta.Items) *Document {
	return NewWithMetadata(content, meta.New(items))
}

// NewWithMetadata creates a document that shares an existing metadata stack.
func NewWithMetadata(content Content, md meta.Metadata) *Document {
	return &Document{Metadata: md, id: uuid.NewString(), content: content}
}

// ID returns a unique identifier for log correlation.
func (d *Document) ID() string { return d.id }

// Clone derives a document with items layered on top of the receiver's metadata.
func (d *Document) Clone(items meta.Items) *Document {
	return d.CloneWith(d.content, items)
}

// CloneContent derives a document with the same metadata and different content.
func (d *Document) CloneContent(content Content) *Document {
	return d.CloneWith(content, nil)
}

// CloneWith derives a document with new content and metadata overrides.
func (d *Document) CloneWith(content Content, items meta.Items) *Document {
	return &Document{Metadata: d.Metadata.With(items), id: uuid.NewString(), content: content}
}

// HasContent reports whether the document carries a content reference.
func (d *Document) HasContent() bool { return d.content != nil }

// Content resolves the document body. Deferred content is loaded at most once.
func (d *Document) Content(ctx context.Context) ([]byte, error) {
	if d.content == nil {
		return nil, nil
	}
	b, err := d.content.Bytes(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryIO, "failed to resolve document content").
			WithContext("source", d.Source()).
			Build()
	}
	return b, nil
}

// ContentString is Content as a string.
func (d *Document) ContentString(ctx context.Context) (string, error) {
	b, err := d.Content(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Fingerprint returns the hex BLAKE3 digest of the resolved content.
func (d *Document) Fingerprint(ctx context.Context) (string, error) {
	b, err := d.Content(ctx)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Source returns the source path, if any.
func (d *Document) Source() string { return d.String(KeySource, "") }

// Destination returns the output path, if any.
func (d *Document) Destination() string { return d.String(KeyDestination, "") }
