package cloner

import (
	"context"
	"strings"

	"github.com/hazyhaar/domsnap/dom"
)

// resolveSymbols scans the clone for vector-graphic reference-by-id
// usages, clones each referenced definition missing from the clone (once
// per capture, via the symbol cache), and appends a single hidden
// container holding all collected definitions so references stay
// resolvable after detachment.
func (c *Cloner) resolveSymbols(ctx context.Context, src, clone *dom.Node) error {
	uses := dom.FindAll(clone, "use")
	if len(uses) == 0 {
		return nil
	}

	var defs []*dom.Node
	for _, use := range uses {
		id := refID(use)
		if id == "" {
			continue
		}
		if dom.FindByID(clone, id) != nil {
			continue // target already present in the clone
		}
		if _, done := c.symbols[id]; done {
			continue // cloned earlier in this capture
		}
		def := lookupSymbol(src, id)
		if def == nil {
			c.cfg.Logger.Debug("cloner: unresolved symbol reference", "id", id)
			continue
		}
		// Mark before recursing: a self-referencing definition must not
		// re-enter its own clone.
		c.symbols[id] = nil
		defClone, err := c.Clone(ctx, def, true)
		if err != nil {
			return err
		}
		c.symbols[id] = defClone
		defs = append(defs, defClone)
	}
	if len(defs) == 0 {
		return nil
	}

	container := dom.NewElement("svg")
	container.SetAttr("xmlns", "http://www.w3.org/2000/svg")
	container.Style = &dom.ComputedStyle{}
	container.Style.Set("position", "absolute", "")
	container.Style.Set("width", "0", "")
	container.Style.Set("height", "0", "")
	container.Style.Set("overflow", "hidden", "")

	defsEl := dom.NewElement("defs")
	defsEl.Append(defs...)
	container.Append(defsEl)
	clone.Append(container)
	return nil
}

// refID extracts the fragment identifier of a use reference.
func refID(use *dom.Node) string {
	href := use.Attr("href")
	if href == "" {
		href = use.Attr("xlink:href")
	}
	if !strings.HasPrefix(href, "#") {
		return ""
	}
	return href[1:]
}

// lookupSymbol finds a definition in the source's owning document.
func lookupSymbol(src *dom.Node, id string) *dom.Node {
	if src.Owner != nil {
		if def := src.Owner.SymbolByID(id); def != nil {
			return def
		}
	}
	// Detached source trees: fall back to the captured subtree itself.
	return dom.FindByID(src, id)
}
