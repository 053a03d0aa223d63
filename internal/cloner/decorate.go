package cloner

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domsnap/dom"
	"github.com/hazyhaar/domsnap/style"
)

// decorate snapshots the source's resolved style onto the clone, copies
// form-control state not reflected in serialised markup, and delegates
// pseudo-element styling.
func (c *Cloner) decorate(src, clone *dom.Node) {
	if src.Type != dom.ElementNode || clone.Type != dom.ElementNode {
		return
	}
	c.applyStyle(src, clone)
	applyFormState(src, clone)
	if err := c.cfg.Pseudo.Synthesize(src, clone); err != nil {
		c.cfg.Logger.Debug("cloner: pseudo synthesis failed", "tag", src.Tag, "error", err)
	}
}

// applyStyle prefers the single serialised css-text snapshot; otherwise it
// walks the property allow-list, applying the three value adjustments.
func (c *Cloner) applyStyle(src, clone *dom.Node) {
	cs := src.Style
	if cs == nil {
		return
	}
	out := clone.Style
	if out == nil {
		out = &dom.ComputedStyle{}
	}

	if cs.CSSText != "" {
		for _, d := range style.ParseDeclarations(cs.CSSText) {
			out.Set(d.Property, d.Value, d.Priority)
		}
		if cs.TransformOrigin != "" {
			out.Set("transform-origin", cs.TransformOrigin, "")
		}
	} else {
		frameLike := src.Classify() == dom.CategoryNestedDoc
		for _, prop := range style.AllowList {
			d, ok := cs.Get(prop)
			value := d.Value
			if prop == "d" && src.Attr("d") != "" {
				// Path geometry only round-trips through a clone as the
				// path() style function.
				value = fmt.Sprintf("path('%s')", src.Attr("d"))
				ok = true
			}
			if !ok {
				continue
			}
			out.Set(prop, adjustValue(prop, value, frameLike), d.Priority)
		}
	}

	if out.Len() > 0 {
		clone.Style = out
	}
}

// adjustValue applies the cross-renderer compatibility rewrites.
func adjustValue(prop, value string, frameLike bool) string {
	switch prop {
	case "font-size":
		// Floor pixel sizes and shave a hundredth to absorb layout
		// rounding drift between renderers.
		if px, ok := strings.CutSuffix(value, "px"); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(px), 64); err == nil {
				return strconv.FormatFloat(math.Floor(f)-0.01, 'f', 2, 64) + "px"
			}
		}
	case "display":
		if frameLike && value == "inline" {
			return "block"
		}
	}
	return value
}

// applyFormState copies live form-control values onto the clone: textarea
// text, input value attributes, and the selected option of a select
// (matched by comparing the source's current value against each cloned
// option's value attribute).
func applyFormState(src, clone *dom.Node) {
	switch src.Atom {
	case atom.Textarea:
		if src.Value != "" {
			clone.Children = []*dom.Node{dom.NewText(src.Value)}
		}
	case atom.Input:
		if src.Value != "" {
			clone.SetAttr("value", src.Value)
		}
	case atom.Select:
		if src.Value == "" {
			return
		}
		for _, opt := range dom.FindAll(clone, "option") {
			if opt.Attr("value") == src.Value {
				opt.SetAttr("selected", "")
			} else {
				opt.DelAttr("selected")
			}
		}
	}
}
