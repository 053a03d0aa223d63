package cloner

import (
	"testing"

	"github.com/hazyhaar/domsnap/dom"
)

const symbolDoc = `
<html><body>
	<svg style="display:none">
		<symbol id="icon-star"><path d="M0 0"></path></symbol>
		<symbol id="icon-moon"><circle cx="1" cy="1" r="1"></circle></symbol>
	</svg>
	<div id="capture">
		<svg><use href="#icon-star"></use></svg>
		<svg><use xlink:href="#icon-star"></use></svg>
		<svg><use href="#icon-moon"></use></svg>
	</div>
</body></html>`

func defsContainer(clone *dom.Node) *dom.Node {
	// The hidden definitions container is appended last.
	if len(clone.Children) == 0 {
		return nil
	}
	last := clone.Children[len(clone.Children)-1]
	if last.Tag != "svg" || len(dom.FindAll(last, "defs")) == 0 {
		return nil
	}
	return last
}

func TestSymbols_OutOfSubtreeDefinitionsCollected(t *testing.T) {
	doc := mustParse(t, symbolDoc)
	clone := cloneOne(t, doc.SymbolByID("capture"))

	container := defsContainer(clone)
	if container == nil {
		t.Fatal("hidden definitions container missing")
	}
	if dom.FindByID(container, "icon-star") == nil || dom.FindByID(container, "icon-moon") == nil {
		t.Error("both referenced definitions should be present")
	}
	if got := container.Style.Value("position"); got != "absolute" {
		t.Errorf("container position: got %q, want absolute", got)
	}
}

func TestSymbols_ClonedOncePerCapture(t *testing.T) {
	doc := mustParse(t, symbolDoc)
	clone := cloneOne(t, doc.SymbolByID("capture"))

	var stars int
	for _, s := range dom.FindAll(clone, "symbol") {
		if s.Attr("id") == "icon-star" {
			stars++
		}
	}
	if stars != 1 {
		t.Errorf("icon-star definitions: got %d, want 1 despite two references", stars)
	}
}

func TestSymbols_InSubtreeDefinitionNotDuplicated(t *testing.T) {
	doc := mustParse(t, `
<html><body><div id="capture">
	<svg>
		<symbol id="local"><path d="M1 1"></path></symbol>
		<use href="#local"></use>
	</svg>
</div></body></html>`)
	clone := cloneOne(t, doc.SymbolByID("capture"))

	if defsContainer(clone) != nil {
		t.Error("no container expected when every reference resolves in the clone")
	}
}

func TestSymbols_UnresolvableReferenceIgnored(t *testing.T) {
	doc := mustParse(t, `
<html><body><div id="capture">
	<svg><use href="#nowhere"></use></svg>
</div></body></html>`)
	clone := cloneOne(t, doc.SymbolByID("capture"))

	if defsContainer(clone) != nil {
		t.Error("no container expected for dangling references")
	}
	if len(dom.FindAll(clone, "use")) != 1 {
		t.Error("the reference element itself is still cloned")
	}
}
