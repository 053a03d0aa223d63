package style

import (
	"fmt"

	"github.com/andybalholm/cascadia"

	"github.com/hazyhaar/domsnap/dom"
)

// Query returns the first node in the document matching the CSS selector,
// or nil when nothing matches. Matching runs against the parsed markup
// each node was built from.
func Query(doc *dom.Document, selector string) (*dom.Node, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("style: parse selector %q: %w", selector, err)
	}
	if doc == nil || doc.Root == nil {
		return nil, nil
	}
	return query(doc.Root, sel), nil
}

func query(n *dom.Node, sel cascadia.Sel) *dom.Node {
	if n.Type == dom.ElementNode && n.Backing != nil && sel.Match(n.Backing) {
		return n
	}
	for _, ch := range n.Children {
		if found := query(ch, sel); found != nil {
			return found
		}
	}
	return nil
}
