// Package htmlutil holds the small goquery helpers shared by the page parsers.
package htmlutil

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parse parses an html document from raw bytes.
func Parse(contents []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(contents))
}

func writeText(b *strings.Builder, node *html.Node) {
	switch node.Type {
	case html.TextNode:
		b.WriteString(node.Data)
	case html.CommentNode:
	default:
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			writeText(b, child)
		}
	}
}

// Text returns the text of the first node in sel with every run of
// whitespace collapsed into a single space. An empty sel gives "".
func Text(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var b strings.Builder
	writeText(&b, sel.Nodes[0])
	return strings.Join(strings.Fields(b.String()), " ")
}
