package markdown

// LinkKind classifies a link-like construct found in a Markdown body.
type LinkKind string

const (
	LinkKindInline              LinkKind = "inline"
	LinkKindImage               LinkKind = "image"
	LinkKindAuto                LinkKind = "auto"
	LinkKindReferenceDefinition LinkKind = "reference_definition"
)

// Link is a destination referenced from a Markdown body.
type Link struct {
	Kind        LinkKind
	Destination string
}

// Destinations returns the unique destinations in first-seen order.
func Destinations(links []Link) []string {
	seen := make(map[string]bool, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if l.Destination == "" || seen[l.Destination] {
			continue
		}
		seen[l.Destination] = true
		out = append(out, l.Destination)
	}
	return out
}
