package cloner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/hazyhaar/domsnap/dom"
	"github.com/hazyhaar/domsnap/internal/pacer"
	"github.com/hazyhaar/domsnap/raster"
	"github.com/hazyhaar/domsnap/resolver"
)

func newCloner(cfg Config) *Cloner {
	return New(cfg, pacer.NewContext(0))
}

func mustParse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

// sameShape compares tag identity, attribute sets, sibling order, depth.
func sameShape(t *testing.T, src, clone *dom.Node, path string) {
	t.Helper()
	if src.Type != clone.Type || src.Tag != clone.Tag {
		t.Fatalf("%s: got %d/%q, want %d/%q", path, clone.Type, clone.Tag, src.Type, src.Tag)
	}
	for _, a := range src.Attrs {
		if clone.Attr(a.Key) != a.Val {
			t.Errorf("%s: attr %s: got %q, want %q", path, a.Key, clone.Attr(a.Key), a.Val)
		}
	}
	if len(src.Children) != len(clone.Children) {
		t.Fatalf("%s: children: got %d, want %d", path, len(clone.Children), len(src.Children))
	}
	for i := range src.Children {
		sameShape(t, src.Children[i], clone.Children[i], fmt.Sprintf("%s/%s[%d]", path, src.Children[i].Tag, i))
	}
}

func TestClone_StructuralShape(t *testing.T) {
	doc := mustParse(t, `<div id="l1" class="a"><div id="l2"><div id="l3">leaf</div></div></div>`)
	root := doc.SymbolByID("l1")

	clone, err := newCloner(Config{}).Clone(context.Background(), root, true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	sameShape(t, root, clone, "l1")
}

func TestClone_FilterExcludesWholeSubtree(t *testing.T) {
	doc := mustParse(t, `<div id="root"><div id="keep"><div id="drop"><p id="inner">x</p></div></div></div>`)
	root := doc.SymbolByID("root")

	c := newCloner(Config{
		Filter: func(n *dom.Node) bool {
			return n.Attr("id") != "drop"
		},
	})
	clone, err := c.Clone(context.Background(), root, true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if dom.FindByID(clone, "keep") == nil {
		t.Error("keep should survive the filter")
	}
	if dom.FindByID(clone, "drop") != nil {
		t.Error("drop should be absent")
	}
	// Descendants of an excluded node are gone even though they would
	// individually pass the predicate.
	if dom.FindByID(clone, "inner") != nil {
		t.Error("inner should be absent with its excluded ancestor")
	}
	keep := dom.FindByID(clone, "keep")
	if len(keep.Children) != 0 {
		t.Errorf("no placeholder expected, got %d children", len(keep.Children))
	}
}

func TestClone_FilterSkippedForRoot(t *testing.T) {
	doc := mustParse(t, `<div id="root"><p>x</p></div>`)
	root := doc.SymbolByID("root")

	c := newCloner(Config{Filter: func(*dom.Node) bool { return false }})
	clone, err := c.Clone(context.Background(), root, true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone == nil {
		t.Fatal("root must never be filtered")
	}
	if len(clone.Children) != 0 {
		t.Errorf("all children rejected: got %d", len(clone.Children))
	}
}

func TestClone_MaxNodesAborts(t *testing.T) {
	doc := mustParse(t, `<div id="root"><p>1</p><p>2</p><p>3</p><p>4</p><p>5</p></div>`)
	root := doc.SymbolByID("root")

	c := newCloner(Config{Limits: pacer.Limits{MaxNodes: 3}})
	_, err := c.Clone(context.Background(), root, true)
	var abort *pacer.AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("want AbortError, got %v", err)
	}
	if abort.Reason != pacer.ReasonMaxNodes {
		t.Errorf("Reason: got %v", abort.Reason)
	}
}

// --- raster surfaces ---

func gradientSurface(w, h int) *raster.Surface {
	s := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return s
}

func canvasNode(s dom.Surface) *dom.Node {
	n := dom.NewElement("canvas")
	n.SetAttr("id", "cv")
	n.Surface = s
	return n
}

func decodeStill(t *testing.T, clone *dom.Node) image.Image {
	t.Helper()
	if clone.Tag != "img" {
		t.Fatalf("clone tag: got %q, want img", clone.Tag)
	}
	img, _, err := raster.DecodeDataURI(clone.Attr("src"))
	if err != nil {
		t.Fatalf("decode still image: %v", err)
	}
	return img
}

func TestCloneSurface_EmptyStaysShallow(t *testing.T) {
	clone, err := newCloner(Config{}).Clone(context.Background(), canvasNode(raster.New(8, 8)), true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.Tag != "canvas" || clone.HasAttr("src") {
		t.Errorf("empty surface: got <%s src=%q>, want bare canvas", clone.Tag, clone.Attr("src"))
	}
}

func TestCloneSurface_SmallSynchronous(t *testing.T) {
	s := gradientSurface(64, 64)
	clone, err := newCloner(Config{}).Clone(context.Background(), canvasNode(s), true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	got := decodeStill(t, clone)
	want, _ := s.Snapshot()
	if !pixEqual(got, want) {
		t.Error("synchronous encode differs from surface content")
	}
	if clone.Attr("id") != "cv" {
		t.Error("identifying attributes should carry over")
	}
}

func TestCloneSurface_ChunkedMatchesSynchronous(t *testing.T) {
	// 1000×1000 = area above the chunking threshold.
	s := gradientSurface(1000, 1000)
	y := &countingYielder{}
	c := newCloner(Config{Limits: pacer.Limits{NonBlocking: true, Yielder: y}})

	clone, err := c.Clone(context.Background(), canvasNode(s), true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	got := decodeStill(t, clone)
	if b := got.Bounds(); b.Dx() != 1000 || b.Dy() != 1000 {
		t.Fatalf("bounds: got %v, want 1000x1000", b)
	}
	want, _ := s.Snapshot()
	if !pixEqual(got, want) {
		t.Error("chunked copy differs from reference synchronous encode")
	}
	// 1000 rows = 4 strips of 256: one yield after the 4th.
	if y.yields != 1 {
		t.Errorf("yields: got %d, want 1", y.yields)
	}
}

// failingSurface breaks strip reads after a few rows.
type failingSurface struct {
	*raster.Surface
}

func (f *failingSurface) ReadRows(y, h int) (*image.RGBA, error) {
	if y > 0 {
		return nil, errors.New("strip read refused")
	}
	return f.Surface.ReadRows(y, h)
}

func TestCloneSurface_ChunkFailureFallsBack(t *testing.T) {
	s := gradientSurface(1000, 1000)
	clone, err := newCloner(Config{}).Clone(context.Background(), canvasNode(&failingSurface{s}), true)
	if err != nil {
		t.Fatalf("fallback should recover: %v", err)
	}
	got := decodeStill(t, clone)
	want, _ := s.Snapshot()
	if !pixEqual(got, want) {
		t.Error("fallback output differs from surface content")
	}
}

// pixEqual compares per pixel: decoded stills come back in a different
// concrete image type than the surface snapshot.
func pixEqual(a, b image.Image) bool {
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Dx() != bb.Dx() || ba.Dy() != bb.Dy() {
		return false
	}
	for y := 0; y < ba.Dy(); y++ {
		for x := 0; x < ba.Dx(); x++ {
			ar, ag, ab2, aa := a.At(ba.Min.X+x, ba.Min.Y+y).RGBA()
			br, bg, bb2, bba := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			if ar != br || ag != bg || ab2 != bb2 || aa != bba {
				return false
			}
		}
	}
	return true
}

type countingYielder struct{ yields int }

func (y *countingYielder) Yield() { y.yields++ }

// --- media ---

type fakeMedia struct {
	active bool
	frame  image.Image
	poster string
	w, h   int
}

func (m *fakeMedia) Active() bool                { return m.active }
func (m *fakeMedia) Frame() (image.Image, error) { return m.frame, nil }
func (m *fakeMedia) Poster() string              { return m.poster }
func (m *fakeMedia) Size() (int, int)            { return m.w, m.h }

func TestCloneMedia_ActiveFrame(t *testing.T) {
	frame, _ := gradientSurface(8, 6).Snapshot()
	n := dom.NewElement("video")
	n.SetAttr("class", "player")
	n.Media = &fakeMedia{active: true, frame: frame, w: 4, h: 3}

	clone, err := newCloner(Config{}).Clone(context.Background(), n, true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	got := decodeStill(t, clone)
	if b := got.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("frame fitted to rendered size: got %v, want 4x3", b)
	}
	if clone.Attr("class") != "player" {
		t.Error("attributes should carry over")
	}
	if len(clone.Children) != 0 {
		t.Error("media contribute no children")
	}
}

func TestCloneMedia_PosterResolved(t *testing.T) {
	var resolved []string
	res := resolver.Func(func(_ context.Context, url, mime string) (string, error) {
		resolved = append(resolved, url)
		return "data:image/png;base64,UE9TVEVS", nil
	})

	n := dom.NewElement("video")
	n.SetAttr("poster", "https://cdn.example/poster.png")
	n.Media = &fakeMedia{active: false}

	clone, err := newCloner(Config{Resolver: res}).Clone(context.Background(), n, true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.Tag != "img" || !strings.HasPrefix(clone.Attr("src"), "data:") {
		t.Errorf("poster clone: got <%s src=%q>", clone.Tag, clone.Attr("src"))
	}
	if len(resolved) != 1 || resolved[0] != "https://cdn.example/poster.png" {
		t.Errorf("resolved: got %v", resolved)
	}
}

func TestCloneMedia_NoSourceNoPoster(t *testing.T) {
	n := dom.NewElement("video")
	clone, err := newCloner(Config{}).Clone(context.Background(), n, true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.Tag != "video" {
		t.Errorf("got %q, want shallow video", clone.Tag)
	}
}

// --- nested documents ---

func TestCloneNestedDoc_Recursive(t *testing.T) {
	inner := mustParse(t, `<html><body><p id="inner">nested</p></body></html>`)
	outer := mustParse(t, `<div id="root"><iframe src="https://a.example/f"></iframe></div>`)
	frame := dom.FindAll(outer.Root, "iframe")[0]
	frame.SubDoc = inner

	clone, err := newCloner(Config{}).Clone(context.Background(), outer.SymbolByID("root"), true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if dom.FindByID(clone, "inner") == nil {
		t.Error("nested content should be cloned")
	}
	if len(dom.FindAll(clone, "iframe")) != 0 {
		t.Error("the cloned nested body replaces the frame element")
	}
}

func TestCloneNestedDoc_DeniedDegradesShallow(t *testing.T) {
	outer := mustParse(t, `<div id="root"><iframe src="https://other.example/x"></iframe><p id="after">y</p></div>`)
	frame := dom.FindAll(outer.Root, "iframe")[0]
	frame.SubDoc = &dom.Document{Sealed: true}

	clone, err := newCloner(Config{}).Clone(context.Background(), outer.SymbolByID("root"), true)
	if err != nil {
		t.Fatalf("denial must never propagate: %v", err)
	}
	frames := dom.FindAll(clone, "iframe")
	if len(frames) != 1 || len(frames[0].Children) != 0 {
		t.Errorf("want one shallow iframe clone, got %v", frames)
	}
	if dom.FindByID(clone, "after") == nil {
		t.Error("siblings after the degraded frame should still be cloned")
	}
}

func TestCloneNestedDoc_AbortStillPropagates(t *testing.T) {
	inner := mustParse(t, `<html><body><p>1</p><p>2</p><p>3</p><p>4</p><p>5</p><p>6</p></body></html>`)
	outer := mustParse(t, `<div id="root"><iframe></iframe></div>`)
	dom.FindAll(outer.Root, "iframe")[0].SubDoc = inner

	c := newCloner(Config{Limits: pacer.Limits{MaxNodes: 3}})
	_, err := c.Clone(context.Background(), outer.SymbolByID("root"), true)
	var abort *pacer.AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("abort inside a nested document must unwind the capture, got %v", err)
	}
}

// --- distributed and shadow content ---

func TestClone_SlotAssignedContent(t *testing.T) {
	doc := mustParse(t, `<div id="root"><slot><p id="fallback">f</p></slot></div>`)
	slot := dom.FindAll(doc.Root, "slot")[0]
	assigned := dom.NewElement("em")
	assigned.SetAttr("id", "assigned")
	slot.Assigned = []*dom.Node{assigned}

	clone, err := newCloner(Config{}).Clone(context.Background(), doc.SymbolByID("root"), true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if dom.FindByID(clone, "assigned") == nil {
		t.Error("assigned content should be cloned")
	}
	if dom.FindByID(clone, "fallback") != nil {
		t.Error("fallback content should be ignored when content is assigned")
	}
}

func TestClone_ShadowContentWins(t *testing.T) {
	doc := mustParse(t, `<div id="root"><span id="light">l</span></div>`)
	root := doc.SymbolByID("root")
	shadow := dom.NewElement("strong")
	shadow.SetAttr("id", "shadow")
	root.Shadow = []*dom.Node{shadow}

	clone, err := newCloner(Config{}).Clone(context.Background(), root, true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if dom.FindByID(clone, "shadow") == nil {
		t.Error("shadow content should be cloned")
	}
	if dom.FindByID(clone, "light") != nil {
		t.Error("light children hidden by shadow content")
	}
}

// --- vector roots ---

func TestClone_VectorRootDeepCopied(t *testing.T) {
	doc := mustParse(t, `<svg id="pic" viewBox="0 0 10 10"><circle cx="5" cy="5" r="4"></circle></svg>`)
	svg := doc.SymbolByID("pic")

	clone, err := newCloner(Config{}).Clone(context.Background(), svg, true)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if len(dom.FindAll(clone, "circle")) != 1 {
		t.Error("vector root should be copied as a unit")
	}
}
