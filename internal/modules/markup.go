package modules

import (
	"bytes"
	"context"
	"strings"

	"github.com/inful/mdfp"
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/frontmatter"
	"git.home.luguber.info/inful/docflow/internal/markdown"
	"git.home.luguber.info/inful/docflow/internal/meta"
	"git.home.luguber.info/inful/docflow/internal/module"
)

// Metadata keys set by the markup modules.
const (
	KeyLinks       = "links"
	KeyHeading     = "heading"
	KeyExcerpt     = "excerpt"
	KeyFingerprint = mdfp.FingerprintField
)

// FrontMatter moves YAML front matter into a metadata layer and strips it from
// the content. Documents without front matter pass through unchanged.
func FrontMatter() module.Module {
	return module.Map("front_matter", func(ctx context.Context, _ module.Context, doc *document.Document) (*document.Document, error) {
		data, err := doc.Content(ctx)
		if err != nil {
			return nil, err
		}
		parsed, err := frontmatter.Parse(data)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid front matter").
				WithContext("source", doc.Source()).
				Build()
		}
		if !parsed.Had {
			return doc, nil
		}
		return doc.CloneWith(document.FromBytes(parsed.Body), parsed.Fields), nil
	})
}

// EmbedFrontMatter writes the resolved values of keys into the content's YAML
// front matter, adding a front matter block when the content has none. Absent
// keys are skipped.
func EmbedFrontMatter(keys ...string) module.Module {
	return module.Map("embed_front_matter", func(ctx context.Context, _ module.Context, doc *document.Document) (*document.Document, error) {
		data, err := doc.Content(ctx)
		if err != nil {
			return nil, err
		}
		parsed, err := frontmatter.Parse(data)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid front matter").
				WithContext("source", doc.Source()).
				Build()
		}
		embedded := doc.Project(keys...)
		if embedded.Count() == 0 {
			return doc, nil
		}
		parsed.Fields = append(parsed.Fields, meta.FromMap(embedded.ToMap())...)
		out, err := parsed.Bytes()
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConversion, "failed to serialize front matter").
				WithContext("source", doc.Source()).
				Build()
		}
		return doc.CloneContent(document.FromBytes(out)), nil
	})
}

// RenderMarkdown converts Markdown content to HTML. The first level-1 heading and
// the link destinations of the source are recorded as metadata.
func RenderMarkdown(opts markdown.Options) module.Module {
	return module.Map("render_markdown", func(ctx context.Context, _ module.Context, doc *document.Document) (*document.Document, error) {
		body, err := doc.Content(ctx)
		if err != nil {
			return nil, err
		}
		rendered, err := markdown.Render(body, opts)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConversion, "failed to render markdown").
				WithContext("source", doc.Source()).
				Build()
		}
		links, err := markdown.ExtractLinks(body, opts)
		if err != nil {
			return nil, err
		}
		dests := markdown.Destinations(links)
		linkValues := make([]any, len(dests))
		for i, d := range dests {
			linkValues[i] = d
		}

		items := meta.Set(KeyLinks, linkValues)
		if h := markdown.FirstHeading(body); h != "" {
			items = items.Set(KeyHeading, h)
		}
		return doc.CloneWith(document.FromBytes(rendered), items), nil
	})
}

// Excerpt stores the text of the first HTML element named tag (a paragraph when
// tag is empty) under key. Documents without such an element pass through.
func Excerpt(key, tag string) module.Module {
	if key == "" {
		key = KeyExcerpt
	}
	if tag == "" {
		tag = "p"
	}
	return module.Map("excerpt", func(ctx context.Context, _ module.Context, doc *document.Document) (*document.Document, error) {
		data, err := doc.Content(ctx)
		if err != nil {
			return nil, err
		}
		root, err := html.Parse(bytes.NewReader(data))
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "failed to parse HTML").
				WithContext("source", doc.Source()).
				Build()
		}
		n := findElement(root, tag)
		if n == nil {
			return doc, nil
		}
		text := strings.Join(strings.Fields(extractText(n)), " ")
		if text == "" {
			return doc, nil
		}
		return doc.Clone(meta.Set(key, text)), nil
	})
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(extractText(c))
	}
	return b.String()
}

// fingerprintExcluded are front matter fields that do not affect the fingerprint.
var fingerprintExcluded = map[string]bool{
	mdfp.FingerprintField: true,
	"lastmod":             true,
	"uid":                 true,
	"aliases":             true,
}

// Fingerprint stores the mdfp content fingerprint of each document under
// KeyFingerprint. Front matter fields take part in the hash except the
// fingerprint itself, lastmod, uid and aliases.
func Fingerprint() module.Module {
	return module.Map("fingerprint", func(ctx context.Context, _ module.Context, doc *document.Document) (*document.Document, error) {
		data, err := doc.Content(ctx)
		if err != nil {
			return nil, err
		}
		fp, err := computeFingerprint(data)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "failed to fingerprint document").
				WithContext("source", doc.Source()).
				Build()
		}
		return doc.Clone(meta.Set(KeyFingerprint, fp)), nil
	})
}

func computeFingerprint(data []byte) (string, error) {
	parsed, err := frontmatter.Parse(data)
	if err != nil {
		return "", err
	}
	var fields meta.Items
	for _, it := range parsed.Fields {
		if !fingerprintExcluded[it.Key] {
			fields = append(fields, it)
		}
	}
	serialized, err := frontmatter.Encode(meta.New(fields), frontmatter.Style{})
	if err != nil {
		return "", err
	}
	fm := strings.TrimSuffix(string(serialized), "\n")
	return mdfp.CalculateFingerprintFromParts(fm, string(parsed.Body)), nil
}
