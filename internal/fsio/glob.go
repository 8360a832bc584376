package fsio

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob is a validated path pattern in doublestar syntax: forward slashes, `*`
// within a segment, `**` across segments, `?`, `[...]` classes and `{a,b}`
// alternatives. A leading `!` turns the pattern into an exclusion.
type Glob struct {
	raw     string
	pattern string
	negate  bool
}

// CompileGlob validates a single pattern.
func CompileGlob(pattern string) (*Glob, error) {
	p := strings.TrimSpace(pattern)
	negate := strings.HasPrefix(p, "!")
	p = strings.TrimPrefix(p, "!")
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return nil, fmt.Errorf("empty glob pattern %q", pattern)
	}
	if !doublestar.ValidatePattern(p) {
		return nil, fmt.Errorf("compile glob %s: %w", pattern, doublestar.ErrBadPattern)
	}
	return &Glob{raw: pattern, pattern: p, negate: negate}, nil
}

// Match reports whether a slash-separated relative path matches the pattern,
// ignoring negation.
func (g *Glob) Match(name string) bool {
	return doublestar.MatchUnvalidated(g.pattern, name)
}

// Negated reports whether the pattern is an exclusion.
func (g *Glob) Negated() bool { return g.negate }

func (g *Glob) String() string { return g.raw }

// Matcher applies include and exclude globs together.
type Matcher struct {
	include []*Glob
	exclude []*Glob
}

// NewMatcher compiles patterns. A path matches when at least one include
// pattern matches and no exclusion does.
func NewMatcher(patterns ...string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		g, err := CompileGlob(p)
		if err != nil {
			return nil, err
		}
		if g.negate {
			m.exclude = append(m.exclude, g)
		} else {
			m.include = append(m.include, g)
		}
	}
	return m, nil
}

// Match reports whether name is selected.
func (m *Matcher) Match(name string) bool {
	for _, g := range m.exclude {
		if g.Match(name) {
			return false
		}
	}
	for _, g := range m.include {
		if g.Match(name) {
			return true
		}
	}
	return false
}
