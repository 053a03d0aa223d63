package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse reads an HTML document (or fragment; the parser completes it) and
// builds the host tree. Inline <style> texts are collected as stylesheet
// sources, external stylesheet links are recorded for the caller to fetch.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	doc := &Document{}
	doc.Root = convert(root, doc)
	if doc.Root == nil {
		return nil, fmt.Errorf("dom: parse: empty document")
	}
	collectSheets(root, doc)
	if body := firstElement(doc.Root, atom.Body); body != nil {
		doc.Body = body
	} else {
		doc.Body = doc.Root
	}
	return doc, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// convert maps a parsed html.Node subtree onto the dom model. Document
// wrapper nodes and doctypes are flattened away; the first element child
// of the document becomes the root.
func convert(n *html.Node, owner *Document) *Node {
	switch n.Type {
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				return convert(c, owner)
			}
		}
		return nil
	case html.ElementNode:
		node := &Node{
			Type:    ElementNode,
			Tag:     n.Data,
			Atom:    n.DataAtom,
			Owner:   owner,
			Backing: n,
		}
		if len(n.Attr) > 0 {
			node.Attrs = make([]html.Attribute, len(n.Attr))
			copy(node.Attrs, n.Attr)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if ch := convert(c, owner); ch != nil {
				node.Children = append(node.Children, ch)
			}
		}
		return node
	case html.TextNode:
		return &Node{Type: TextNode, Data: n.Data, Owner: owner, Backing: n}
	case html.CommentNode:
		return &Node{Type: CommentNode, Data: n.Data, Owner: owner, Backing: n}
	default:
		return nil
	}
}

// collectSheets gathers inline <style> texts and external stylesheet
// link hrefs in document order.
func collectSheets(n *html.Node, doc *Document) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Style:
			if n.FirstChild != nil {
				doc.Sheets = append(doc.Sheets, n.FirstChild.Data)
			}
		case atom.Link:
			var rel, href string
			for _, a := range n.Attr {
				switch a.Key {
				case "rel":
					rel = a.Val
				case "href":
					href = a.Val
				}
			}
			if strings.EqualFold(rel, "stylesheet") && href != "" {
				doc.SheetLinks = append(doc.SheetLinks, href)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectSheets(c, doc)
	}
}

func firstElement(n *Node, a atom.Atom) *Node {
	if n.Type == ElementNode && n.Atom == a {
		return n
	}
	for _, ch := range n.Children {
		if found := firstElement(ch, a); found != nil {
			return found
		}
	}
	return nil
}
