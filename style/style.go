// Package style resolves computed styles for a host document tree: a
// stylesheet cascade built from douceur-parsed CSS and cascadia selector
// matching, the property allow-list used by clone decoration, and the
// pseudo-element synthesizer collaborator.
package style

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/parser"

	"github.com/hazyhaar/domsnap/dom"
)

// rule is one qualified rule with a compiled selector.
type rule struct {
	sel    cascadia.Sel
	pseudo string // "before", "after" or ""
	decls  []dom.Decl
	order  int // document order, cascade tie-break
}

// Sheet is a parsed, match-ready set of stylesheet rules.
type Sheet struct {
	rules []rule
}

// ParseSheets compiles stylesheet texts into a Sheet. Unparseable
// selectors are skipped; a sheet that fails to parse entirely is an error.
func ParseSheets(texts ...string) (*Sheet, error) {
	s := &Sheet{}
	order := 0
	for _, text := range texts {
		ss, err := parser.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("style: parse sheet: %w", err)
		}
		for _, r := range ss.Rules {
			if len(r.Declarations) == 0 {
				continue
			}
			decls := make([]dom.Decl, 0, len(r.Declarations))
			for _, d := range r.Declarations {
				prio := ""
				if d.Important {
					prio = "important"
				}
				decls = append(decls, dom.Decl{Property: d.Property, Value: d.Value, Priority: prio})
			}
			for _, selText := range r.Selectors {
				sels, err := cascadia.ParseGroupWithPseudoElements(selText)
				if err != nil {
					continue // tolerate selectors we cannot compile
				}
				for _, sel := range sels {
					s.rules = append(s.rules, rule{
						sel:    sel,
						pseudo: sel.PseudoElement(),
						decls:  decls,
						order:  order,
					})
					order++
				}
			}
		}
	}
	return s, nil
}

// Computed resolves the cascaded style of one element. Application order:
// sheet normals by (specificity, order), inline normals, sheet importants,
// inline importants. Later application wins.
func (s *Sheet) Computed(n *dom.Node) *dom.ComputedStyle {
	if n.Type != dom.ElementNode || n.Backing == nil {
		return nil
	}
	matched := s.matching(n, "")

	cs := &dom.ComputedStyle{}
	for _, r := range matched {
		for _, d := range r.decls {
			if d.Priority == "" {
				cs.Set(d.Property, d.Value, "")
			}
		}
	}
	inline := parseInline(n.Attr("style"))
	for _, d := range inline {
		if d.Priority == "" {
			cs.Set(d.Property, d.Value, "")
		}
	}
	for _, r := range matched {
		for _, d := range r.decls {
			if d.Priority != "" {
				cs.Set(d.Property, d.Value, d.Priority)
			}
		}
	}
	for _, d := range inline {
		if d.Priority != "" {
			cs.Set(d.Property, d.Value, d.Priority)
		}
	}
	if cs.Len() == 0 {
		return nil
	}
	return cs
}

// PseudoDecls returns the cascaded declarations for the element's
// ::before/::after generated content.
func (s *Sheet) PseudoDecls(n *dom.Node, which string) []dom.Decl {
	if n.Type != dom.ElementNode || n.Backing == nil {
		return nil
	}
	var out []dom.Decl
	for _, r := range s.matching(n, which) {
		out = append(out, r.decls...)
	}
	return out
}

func (s *Sheet) matching(n *dom.Node, pseudo string) []rule {
	var matched []rule
	for _, r := range s.rules {
		if r.pseudo != pseudo {
			continue
		}
		if r.sel.Match(n.Backing) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		si, sj := matched[i].sel.Specificity(), matched[j].sel.Specificity()
		if si.Less(sj) {
			return true
		}
		if sj.Less(si) {
			return false
		}
		return matched[i].order < matched[j].order
	})
	return matched
}

// Apply resolves and attaches computed styles for every element of the
// document from its collected stylesheets.
func Apply(doc *dom.Document, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	sheet, err := ParseSheets(doc.Sheets...)
	if err != nil {
		return err
	}
	var walk func(*dom.Node)
	walk = func(n *dom.Node) {
		if n.Type == dom.ElementNode {
			if cs := sheet.Computed(n); cs != nil {
				n.Style = cs
			}
		}
		for _, ch := range n.Children {
			walk(ch)
		}
	}
	walk(doc.Root)
	logger.Debug("style: cascade applied", "rules", len(sheet.rules))
	return nil
}

// parseInline parses a style attribute value.
func parseInline(text string) []dom.Decl {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parsed, err := parser.ParseDeclarations(text)
	if err != nil {
		return nil
	}
	out := make([]dom.Decl, 0, len(parsed))
	for _, d := range parsed {
		prio := ""
		if d.Important {
			prio = "important"
		}
		out = append(out, dom.Decl{Property: d.Property, Value: d.Value, Priority: prio})
	}
	return out
}

// ParseDeclarations exposes inline declaration parsing to other packages.
func ParseDeclarations(text string) []dom.Decl {
	return parseInline(text)
}
