package document

import (
	"context"
	"sync"
)

// Content is an opaque reference to a document body. Implementations must be safe
// for concurrent use because derived documents share their parent's content.
type Content interface {
	Bytes(ctx context.Context) ([]byte, error)
}

type staticContent []byte

func (c staticContent) Bytes(context.Context) ([]byte, error) { return c, nil }

// FromString wraps an in-memory string.
func FromString(s string) Content { return staticContent(s) }

// FromBytes wraps a copy of b.
func FromBytes(b []byte) Content {
	cp := make([]byte, len(b))
	copy(cp, b)
	return staticContent(cp)
}

// Deferred returns content that is loaded on first use. A successful load is cached
// and shared by every reader; a failed load is retried by the next reader.
func Deferred(load func(ctx context.Context) ([]byte, error)) Content {
	return &deferredContent{load: load}
}

type deferredContent struct {
	load   func(ctx context.Context) ([]byte, error)
	mu     sync.Mutex
	loaded bool
	data   []byte
}

func (c *deferredContent) Bytes(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.data, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.data, c.loaded = data, true
	return data, nil
}
