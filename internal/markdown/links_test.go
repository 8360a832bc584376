package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractLinks_InlineLink(t *testing.T) {
	links, err := ExtractLinks([]byte("See [API](api.md) for details."), Options{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, LinkKindInline, links[0].Kind)
	require.Equal(t, "api.md", links[0].Destination)
}

func TestExtractLinks_ImageLink(t *testing.T) {
	links, err := ExtractLinks([]byte("![Diagram](diagram.png)"), Options{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, LinkKindImage, links[0].Kind)
	require.Equal(t, "diagram.png", links[0].Destination)
}

func TestExtractLinks_AutoLink(t *testing.T) {
	links, err := ExtractLinks([]byte("<https://example.com/path>"), Options{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, LinkKindAuto, links[0].Kind)
	require.Equal(t, "https://example.com/path", links[0].Destination)
}

func TestExtractLinks_ReferenceLinkUsageAndDefinition(t *testing.T) {
	src := []byte("See [API][ref].\n\n[ref]: api.md\n")
	links, err := ExtractLinks(src, Options{})
	require.NoError(t, err)

	// Expect one resolved link (Goldmark represents reference links as Link nodes with a Destination)
	// and one reference definition.
	require.Len(t, links, 2)
	require.Equal(t, LinkKindInline, links[0].Kind)
	require.Equal(t, "api.md", links[0].Destination)
	require.Equal(t, LinkKindReferenceDefinition, links[1].Kind)
	require.Equal(t, "api.md", links[1].Destination)
}

func TestExtractLinks_SkipsInlineCodeAndCodeBlocks(t *testing.T) {
	src := []byte("" +
		"Inline code: `[Link](./ignored-inline.md)`\n" +
		"\n" +
		"```\n" +
		"[Link](./ignored-fence.md)\n" +
		"```\n" +
		"\n" +
		"Real: [OK](./real.md)\n")

	links, err := ExtractLinks(src, Options{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "./real.md", links[0].Destination)
}

func TestDestinations_Dedupes(t *testing.T) {
	links, err := ExtractLinks([]byte("[a](x.md) [b](y.md) [c](x.md)"), Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"x.md", "y.md"}, Destinations(links))
}

func TestRender_Basic(t *testing.T) {
	out, err := Render([]byte("# Hello\n\nSome *text*.\n"), Options{})
	require.NoError(t, err)
	require.Equal(t, "<h1>Hello</h1>\n<p>Some <em>text</em>.</p>\n", string(out))
}

func TestRender_GFMAndHeadingIDs(t *testing.T) {
	out, err := Render([]byte("# Hello World\n\n~~old~~\n"), Options{GFM: true, HeadingIDs: true})
	require.NoError(t, err)
	require.Contains(t, string(out), `<h1 id="hello-world">Hello World</h1>`)
	require.Contains(t, string(out), "<del>old</del>")
}

func TestRender_RawHTML(t *testing.T) {
	safe, err := Render([]byte("<div>x</div>\n"), Options{})
	require.NoError(t, err)
	require.NotContains(t, string(safe), "<div>")

	unsafe, err := Render([]byte("<div>x</div>\n"), Options{Unsafe: true})
	require.NoError(t, err)
	require.Contains(t, string(unsafe), "<div>x</div>")
}

func TestFirstHeading(t *testing.T) {
	require.Equal(t, "Getting Started", FirstHeading([]byte("intro\n\n## Sub\n\n# Getting *Started*\n")))
	require.Empty(t, FirstHeading([]byte("no heading here")))
}
