package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/markdown"
	"git.home.luguber.info/inful/docflow/internal/meta"
)

func TestFrontMatter(t *testing.T) {
	in := docs("---\ntitle: Hello\ntags: [a, b]\n---\n# Body\n", "no front matter")
	out := mustExecute(t, FrontMatter(), in)
	require.Len(t, out, 2)

	assert.Equal(t, "Hello", out[0].String("title", ""))
	assert.Equal(t, []string{"a", "b"}, out[0].Strings("tags"))
	assert.Equal(t, 0, out[0].Int("index", -1), "earlier layers stay visible")
	assert.Equal(t, []string{"# Body\n", "no front matter"}, contentsOf(t, out))
	assert.Same(t, in[1], out[1])
}

func TestFrontMatter_Invalid(t *testing.T) {
	_, err := execute(t, FrontMatter(), nil, docs("---\ntitle: x\n"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestEmbedFrontMatter(t *testing.T) {
	in := []*document.Document{
		document.New(document.FromString("---\ndraft: true\n---\nBody\n"), meta.Set("title", "Hello")),
	}
	out := mustExecute(t, EmbedFrontMatter("title", "missing"), in)
	assert.Equal(t, []string{"---\ndraft: true\ntitle: Hello\n---\nBody\n"}, contentsOf(t, out))
}

func TestEmbedFrontMatter_StructuredValues(t *testing.T) {
	author := meta.New(meta.Set("name", "Ada"))
	in := []*document.Document{
		document.New(document.FromString("Body\n"), meta.Set("author", author).Set("tags", []string{"x", "y"})),
	}
	out := mustExecute(t, EmbedFrontMatter("tags", "author"), in)
	assert.Equal(t, []string{"---\nauthor:\n  name: Ada\ntags:\n  - x\n  - y\n---\nBody\n"}, contentsOf(t, out))
}

func TestEmbedFrontMatter_NothingToEmbedKeepsContent(t *testing.T) {
	in := docs("---\nb: 1\na: 2\n---\nBody\n")
	out := mustExecute(t, EmbedFrontMatter("missing"), in)
	assert.Equal(t, []string{"---\nb: 1\na: 2\n---\nBody\n"}, contentsOf(t, out))
}

func TestRenderMarkdown(t *testing.T) {
	out := mustExecute(t, RenderMarkdown(markdown.Options{}), docs("# Title\n\nSee [docs](docs.md).\n"))
	require.Len(t, out, 1)
	assert.Equal(t, []string{"<h1>Title</h1>\n<p>See <a href=\"docs.md\">docs</a>.</p>\n"}, contentsOf(t, out))
	assert.Equal(t, "Title", out[0].String(KeyHeading, ""))
	assert.Equal(t, []string{"docs.md"}, out[0].Strings(KeyLinks))
}

func TestExcerpt(t *testing.T) {
	in := docs("<h1>T</h1><p>First   <b>para</b>\ngraph.</p><p>Second</p>", "<div>none</div>")
	out := mustExecute(t, Excerpt("", ""), in)
	assert.Equal(t, "First para graph.", out[0].String(KeyExcerpt, ""))
	assert.Same(t, in[1], out[1])

	out = mustExecute(t, Excerpt("summary", "h1"), in[:1])
	assert.Equal(t, "T", out[0].String("summary", ""))
}

func TestFingerprint(t *testing.T) {
	base := "---\ntitle: A\n---\nBody\n"
	withLastmod := "---\ntitle: A\nlastmod: 2024-01-01\n---\nBody\n"
	changed := "---\ntitle: B\n---\nBody\n"

	out := mustExecute(t, Fingerprint(), docs(base, withLastmod, changed))
	fp := func(i int) string { return out[i].String(KeyFingerprint, "") }

	assert.NotEmpty(t, fp(0))
	assert.Equal(t, fp(0), fp(1), "lastmod does not affect the fingerprint")
	assert.NotEqual(t, fp(0), fp(2))
}
