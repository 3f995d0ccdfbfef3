package oracle

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/pathwright/internal/llmutil"
)

// droppedElements carry no locatable content and mostly burn prompt budget.
var droppedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Svg:      true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Link:     true,
	atom.Meta:     true,
}

// Digest strips scripts, styles, inline SVG and comments from an HTML
// document and truncates what remains to limit bytes. A limit of zero or less
// disables truncation. Content that fails to parse is truncated as is.
func Digest(page string, limit int) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return clip(page, limit)
	}
	prune(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return clip(page, limit)
	}
	return clip(buf.String(), limit)
}

func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && droppedElements[c.DataAtom]:
			n.RemoveChild(c)
		case c.Type == html.TextNode && strings.TrimSpace(c.Data) == "":
			n.RemoveChild(c)
		default:
			prune(c)
		}
		c = next
	}
}

func clip(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	return llmutil.Truncate(s, limit)
}
