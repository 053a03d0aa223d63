package cloner

import (
	"context"
	"strings"
	"testing"

	"github.com/hazyhaar/domsnap/dom"
)

func cloneOne(t *testing.T, n *dom.Node) *dom.Node {
	t.Helper()
	clone, err := newCloner(Config{}).Clone(context.Background(), n, true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	return clone
}

func styled(tag string, decls ...[2]string) *dom.Node {
	n := dom.NewElement(tag)
	n.Style = &dom.ComputedStyle{}
	for _, d := range decls {
		n.Style.Set(d[0], d[1], "")
	}
	return n
}

func TestDecorate_FontSizeFlooredAndShaved(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"16px", "15.99px"},
		{"16.7px", "15.99px"},
		{"1.2em", "1.2em"}, // only pixel sizes are adjusted
	}
	for _, tt := range tests {
		clone := cloneOne(t, styled("p", [2]string{"font-size", tt.in}))
		if got := clone.Style.Value("font-size"); got != tt.want {
			t.Errorf("font-size %q: got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecorate_FrameDisplayInlineBecomesBlock(t *testing.T) {
	frame := styled("iframe", [2]string{"display", "inline"})
	clone := cloneOne(t, frame)
	// A frame with no nested document degrades to a shallow clone but is
	// still decorated.
	if got := clone.Style.Value("display"); got != "block" {
		t.Errorf("frame display: got %q, want block", got)
	}

	span := styled("span", [2]string{"display", "inline"})
	if got := cloneOne(t, span).Style.Value("display"); got != "inline" {
		t.Errorf("non-frame display: got %q, want inline", got)
	}
}

func TestDecorate_PathGeometryAsStyleFunction(t *testing.T) {
	p := styled("path", [2]string{"fill", "red"})
	p.SetAttr("d", "M0 0 L10 10")
	clone := cloneOne(t, p)
	if got := clone.Style.Value("d"); got != "path('M0 0 L10 10')" {
		t.Errorf("d: got %q", got)
	}
	if got := clone.Style.Value("fill"); got != "red" {
		t.Errorf("fill: got %q", got)
	}
}

func TestDecorate_CSSTextPreferred(t *testing.T) {
	n := dom.NewElement("p")
	n.Style = &dom.ComputedStyle{
		CSSText:         "color: blue; margin: 4px !important",
		TransformOrigin: "10px 20px",
	}
	// The serialised snapshot wins over the per-property form.
	n.Style.Set("color", "red", "")

	clone := cloneOne(t, n)
	if got := clone.Style.Value("color"); got != "blue" {
		t.Errorf("color: got %q, want blue", got)
	}
	d, _ := clone.Style.Get("margin")
	if d.Priority != "important" {
		t.Errorf("margin priority: got %q, want important", d.Priority)
	}
	if got := clone.Style.Value("transform-origin"); got != "10px 20px" {
		t.Errorf("transform-origin: got %q", got)
	}
}

func TestDecorate_AllowListOrderIsDeterministic(t *testing.T) {
	n := styled("div",
		[2]string{"color", "red"},
		[2]string{"background-color", "blue"},
		[2]string{"font-size", "12px"},
	)
	a := cloneOne(t, n).Style.Text()
	b := cloneOne(t, n).Style.Text()
	if a != b {
		t.Errorf("serialisation not stable:\n%q\n%q", a, b)
	}
}

// --- form state ---

func TestFormState_Textarea(t *testing.T) {
	doc := mustParse(t, `<textarea id="t">old content</textarea>`)
	ta := doc.SymbolByID("t")
	ta.Value = "typed text"

	clone := cloneOne(t, ta)
	if len(clone.Children) != 1 || clone.Children[0].Data != "typed text" {
		t.Errorf("textarea children: got %+v", clone.Children)
	}
}

func TestFormState_InputValue(t *testing.T) {
	in := dom.NewElement("input")
	in.SetAttr("type", "text")
	in.Value = "live"

	clone := cloneOne(t, in)
	if got := clone.Attr("value"); got != "live" {
		t.Errorf("input value: got %q, want live", got)
	}
}

func TestFormState_SelectCurrentOption(t *testing.T) {
	doc := mustParse(t, `<select id="s">
		<option value="a" selected>A</option>
		<option value="b">B</option>
	</select>`)
	sel := doc.SymbolByID("s")
	sel.Value = "b"

	clone := cloneOne(t, sel)
	opts := dom.FindAll(clone, "option")
	if len(opts) != 2 {
		t.Fatalf("options: got %d", len(opts))
	}
	if opts[0].HasAttr("selected") {
		t.Error("stale selected attribute should be dropped")
	}
	if !opts[1].HasAttr("selected") {
		t.Error("current option should carry selected")
	}
}

// --- pseudo synthesis ---

type recordingSynthesizer struct {
	calls []string
	err   error
}

func (r *recordingSynthesizer) Synthesize(source, clone *dom.Node) error {
	r.calls = append(r.calls, source.Tag)
	return r.err
}

func TestDecorate_PseudoDelegated(t *testing.T) {
	doc := mustParse(t, `<div id="root"><p>x</p></div>`)
	rec := &recordingSynthesizer{}
	c := newCloner(Config{Pseudo: rec})

	if _, err := c.Clone(context.Background(), doc.SymbolByID("root"), true); err != nil {
		t.Fatalf("clone: %v", err)
	}
	if got := strings.Join(rec.calls, ","); got != "p,div" {
		t.Errorf("synthesizer calls: got %q, want p,div", got)
	}
}

func TestDecorate_PseudoFailureNotFatal(t *testing.T) {
	doc := mustParse(t, `<div id="root"><p>x</p></div>`)
	rec := &recordingSynthesizer{err: context.DeadlineExceeded}
	c := newCloner(Config{Pseudo: rec})

	clone, err := c.Clone(context.Background(), doc.SymbolByID("root"), true)
	if err != nil {
		t.Fatalf("pseudo failures must not fail the capture: %v", err)
	}
	if clone == nil || len(clone.Children) != 1 {
		t.Error("clone should be complete despite synthesis failures")
	}
}
