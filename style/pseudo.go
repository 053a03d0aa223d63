package style

import (
	"strings"

	"github.com/hazyhaar/domsnap/dom"
)

// PseudoSynthesizer attaches equivalent inline styling for generated
// (::before/::after) content to a clone. Implementations must treat
// failures as non-fatal: the capture walk logs and continues.
type PseudoSynthesizer interface {
	Synthesize(source, clone *dom.Node) error
}

// NoopSynthesizer performs no pseudo-element synthesis.
type NoopSynthesizer struct{}

func (NoopSynthesizer) Synthesize(source, clone *dom.Node) error { return nil }

// SheetSynthesizer materialises ::before/::after rules from the document's
// stylesheets as real child elements on the clone, since generated content
// does not survive detachment from the stylesheet.
type SheetSynthesizer struct {
	sheet *Sheet
}

// NewSheetSynthesizer builds a synthesizer from parsed stylesheet rules.
func NewSheetSynthesizer(sheet *Sheet) *SheetSynthesizer {
	return &SheetSynthesizer{sheet: sheet}
}

// ForDocument parses the document's stylesheets into a synthesizer.
func ForDocument(doc *dom.Document) (*SheetSynthesizer, error) {
	sheet, err := ParseSheets(doc.Sheets...)
	if err != nil {
		return nil, err
	}
	return &SheetSynthesizer{sheet: sheet}, nil
}

// Synthesize inserts a child element per pseudo-element with declared
// content: ::before first, ::after last.
func (p *SheetSynthesizer) Synthesize(source, clone *dom.Node) error {
	if source.Type != dom.ElementNode || clone.Type != dom.ElementNode {
		return nil
	}
	if before := p.materialise(source, "before"); before != nil {
		clone.Children = append([]*dom.Node{before}, clone.Children...)
	}
	if after := p.materialise(source, "after"); after != nil {
		clone.Children = append(clone.Children, after)
	}
	return nil
}

func (p *SheetSynthesizer) materialise(source *dom.Node, which string) *dom.Node {
	decls := p.sheet.PseudoDecls(source, which)
	if len(decls) == 0 {
		return nil
	}
	var content string
	cs := &dom.ComputedStyle{}
	for _, d := range decls {
		if d.Property == "content" {
			content = unquoteContent(d.Value)
			continue
		}
		cs.Set(d.Property, d.Value, d.Priority)
	}
	if content == "" && cs.Len() == 0 {
		return nil
	}
	el := dom.NewElement("span")
	el.SetAttr("data-pseudo", which)
	if cs.Len() > 0 {
		el.Style = cs
	}
	if content != "" {
		el.Append(dom.NewText(content))
	}
	return el
}

// unquoteContent strips the CSS string quoting from a content value.
// "none" and counters collapse to nothing.
func unquoteContent(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || v == "none" || v == "normal" {
		return ""
	}
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return ""
}
