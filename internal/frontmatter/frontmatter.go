// Package frontmatter moves YAML front matter between document content and
// metadata.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docflow/internal/meta"
)

const delimiter = "---"

// ErrMissingClosingDelimiter is returned for content that opens a front matter
// block and never closes it.
var ErrMissingClosingDelimiter = errors.New("front matter is missing its closing delimiter")

// Style is the line ending of the source, reused when a block is written back.
type Style struct {
	Newline            string
	HasTrailingNewline bool
}

func (s Style) newline() string {
	if s.Newline == "" {
		return "\n"
	}
	return s.Newline
}

// Split separates the raw front matter from the body. had is false, and body
// the whole input, when content does not start with a delimiter line.
func Split(content []byte) (fm, body []byte, had bool, style Style, err error) {
	style = detectStyle(content)
	nl := style.newline()
	line := []byte(delimiter + nl)

	if !bytes.HasPrefix(content, line) {
		return nil, content, false, style, nil
	}
	rest := content[len(line):]
	if bytes.HasPrefix(rest, line) {
		return []byte{}, rest[len(line):], true, style, nil
	}

	end := bytes.Index(rest, []byte(nl+delimiter+nl))
	if end < 0 {
		return nil, nil, false, style, ErrMissingClosingDelimiter
	}
	return rest[:end+len(nl)], rest[end+len(nl)+len(line):], true, style, nil
}

// Join is the inverse of Split.
func Join(fm, body []byte, had bool, style Style) []byte {
	if !had {
		return body
	}
	line := delimiter + style.newline()

	var buf bytes.Buffer
	buf.Grow(2*len(line) + len(fm) + len(body))
	buf.WriteString(line)
	buf.Write(fm)
	buf.WriteString(line)
	buf.Write(body)
	return buf.Bytes()
}

// Block is content split into decoded front matter and body.
type Block struct {
	// Fields holds the front matter keys in sorted order.
	Fields meta.Items
	Body   []byte
	Had    bool
	Style  Style
}

// Parse splits content and decodes its front matter. Content without front
// matter yields no fields and the full input as Body.
func Parse(content []byte) (*Block, error) {
	fm, body, had, style, err := Split(content)
	if err != nil {
		return nil, err
	}
	fields, err := decode(fm)
	if err != nil {
		return nil, fmt.Errorf("parse yaml front matter: %w", err)
	}
	return &Block{Fields: fields, Body: body, Had: had, Style: style}, nil
}

// Metadata returns the fields as a single-layer store.
func (b *Block) Metadata() meta.Metadata { return meta.New(b.Fields) }

// Bytes writes the fields back in front of the body. A block is emitted when the
// source had one or when there are fields to write.
func (b *Block) Bytes() ([]byte, error) {
	fm, err := Encode(b.Metadata(), b.Style)
	if err != nil {
		return nil, err
	}
	return Join(fm, b.Body, b.Had || len(fm) > 0, b.Style), nil
}

func decode(fm []byte) (meta.Items, error) {
	if len(bytes.TrimSpace(fm)) == 0 {
		return nil, nil
	}
	var fields map[string]any
	if err := yaml.Unmarshal(fm, &fields); err != nil {
		return nil, err
	}
	return meta.FromMap(fields), nil
}

func detectStyle(content []byte) Style {
	style := Style{Newline: "\n", HasTrailingNewline: bytes.HasSuffix(content, []byte("\n"))}
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		style.Newline = "\r\n"
	}
	return style
}
