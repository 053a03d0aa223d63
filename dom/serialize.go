package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// voidElements never carry children or a closing tag.
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Source: true, atom.Track: true,
	atom.Wbr: true,
}

// rawTextElements contain unescaped text content.
var rawTextElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true,
}

// Render serialises a node subtree back to HTML. A ComputedStyle attached
// to an element overrides any literal style attribute; its deterministic
// ordering makes repeated serialisation byte-identical.
func Render(n *Node) string {
	var sb strings.Builder
	render(&sb, n)
	return sb.String()
}

func render(sb *strings.Builder, n *Node) {
	switch n.Type {
	case TextNode:
		sb.WriteString(html.EscapeString(n.Data))
	case CommentNode:
		sb.WriteString("<!--")
		sb.WriteString(n.Data)
		sb.WriteString("-->")
	case ElementNode:
		sb.WriteByte('<')
		sb.WriteString(n.Tag)
		for _, a := range n.Attrs {
			if a.Key == "style" && n.Style.Len() > 0 {
				continue // replaced by the computed snapshot below
			}
			writeAttr(sb, a.Key, a.Val)
		}
		if n.Style.Len() > 0 {
			writeAttr(sb, "style", n.Style.Text())
		}
		if voidElements[n.Atom] {
			sb.WriteString("/>")
			return
		}
		sb.WriteByte('>')
		raw := rawTextElements[n.Atom]
		for _, ch := range n.Children {
			if raw && ch.Type == TextNode {
				sb.WriteString(ch.Data)
				continue
			}
			render(sb, ch)
		}
		sb.WriteString("</")
		sb.WriteString(n.Tag)
		sb.WriteByte('>')
	}
}

func writeAttr(sb *strings.Builder, key, val string) {
	sb.WriteByte(' ')
	sb.WriteString(key)
	sb.WriteString(`="`)
	sb.WriteString(html.EscapeString(val))
	sb.WriteByte('"')
}
