package names

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// parseHTML parses a document into a node tree
func parseHTML(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// text returns the whitespace-collapsed text content of a node
func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}

	var buf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		buf.WriteString(text(c))
		buf.WriteString(" ")
	}
	return strings.Join(strings.Fields(buf.String()), " ")
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

// findAll returns all nodes matching a predicate in document order
func findAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			results = append(results, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return results
}

// children returns the direct element children with the given tags
func children(n *html.Node, tags ...string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		for _, tag := range tags {
			if isElement(c, tag) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// rows returns a table's rows, looking through thead and tbody
func rows(table *html.Node) []*html.Node {
	var out []*html.Node
	for _, section := range children(table, "thead", "tbody", "tfoot") {
		out = append(out, children(section, "tr")...)
	}
	return append(out, children(table, "tr")...)
}
