// Package dom models the host document tree that domsnap captures: a
// mutable node hierarchy parsed from HTML, optionally backed by live hooks
// (raster surfaces, media sources, nested documents, distributed content)
// that stand in for the dynamic parts of a rendering engine.
//
// The capture engine never mutates a source tree. Clones produced from it
// are plain structural nodes with no live hooks attached.
package dom

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeType discriminates the node kinds a document tree may contain.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
	CommentNode
)

// Category is the closed set of special-handling classes the capture
// traversal dispatches on. It is resolved once per node via Classify.
type Category int

const (
	CategoryDefault Category = iota
	CategoryRasterSurface // canvas-like pixel surfaces
	CategoryMedia         // video-like nodes replaced by a still frame
	CategoryNestedDoc     // frame-like nodes holding a nested document
	CategorySlot          // slot-like nodes with distributed content
	CategoryVectorRoot    // svg roots, deep-copied as a unit when capture root
)

func (c Category) String() string {
	switch c {
	case CategoryRasterSurface:
		return "raster-surface"
	case CategoryMedia:
		return "media"
	case CategoryNestedDoc:
		return "nested-doc"
	case CategorySlot:
		return "slot"
	case CategoryVectorRoot:
		return "vector-root"
	default:
		return "default"
	}
}

// Surface is a pixel-addressable drawing surface attached to a
// raster-surface node. raster.Surface is the standard implementation.
type Surface interface {
	// Size returns the surface dimensions in pixels.
	Size() (w, h int)
	// Empty reports whether nothing has been drawn to the surface.
	Empty() bool
	// Chunkable reports whether strip-wise reads are supported.
	Chunkable() bool
	// Snapshot returns a copy of the full surface contents.
	Snapshot() (image.Image, error)
	// ReadRows returns a copy of h rows starting at row y.
	ReadRows(y, h int) (*image.RGBA, error)
}

// MediaSource is the live hook of a media node. When a source is active the
// current visible frame stands in for the content; otherwise the declared
// poster resource does.
type MediaSource interface {
	// Active reports whether the node has a playing or loaded source.
	Active() bool
	// Frame returns the currently visible frame.
	Frame() (image.Image, error)
	// Poster returns the declared poster/placeholder resource URL.
	Poster() string
	// Size returns the element's rendered dimensions.
	Size() (w, h int)
}

// Node is a single node of a host document tree or of a capture clone.
type Node struct {
	Type     NodeType
	Tag      string    // lowercase element name, empty for text/comments
	Atom     atom.Atom // nonzero for known tags
	Data     string    // text or comment content
	Attrs    []html.Attribute
	Children []*Node

	// Style is the resolved (computed) style snapshot of the node. On a
	// source tree it is produced by the style cascade; on a clone it is
	// written by the decorate stage and serialised into the style
	// attribute on output.
	Style *ComputedStyle

	// Value is the live form-control value not reflected in serialised
	// markup: input value, textarea text, select current value.
	Value string

	// Live hooks, present only on an attached source tree.
	Surface  Surface     // raster-surface nodes
	Media    MediaSource // media nodes
	SubDoc   *Document   // nested-document nodes
	Shadow   []*Node     // attached shadow content
	Assigned []*Node     // distributed content for slot nodes

	// Owner is the document this node is attached to, nil on clones.
	Owner *Document

	// Backing is the parsed HTML node this one was built from, retained so
	// selector matching (cascadia) can run against the original markup.
	Backing *html.Node
}

// Document is a host document: a tree plus its stylesheets and symbol
// definitions. Nested-document nodes hold one as SubDoc.
type Document struct {
	Root   *Node
	Body   *Node
	Sheets []string // raw stylesheet texts collected at parse time
	URL    string

	// SheetLinks are external stylesheet URLs found at parse time. The
	// caller decides whether to fetch them and append to Sheets.
	SheetLinks []string

	// Sealed marks a nested document whose content is inaccessible
	// (the cross-origin case). Accessors fail with AccessError.
	Sealed bool
}

// AccessError reports that a nested document's content cannot be read.
// The capture traversal always recovers from it by degrading to a shallow
// clone of the frame element.
type AccessError struct {
	URL string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("dom: nested document inaccessible: %s", e.URL)
}

// NewElement creates a detached element node.
func NewElement(tag string) *Node {
	return &Node{Type: ElementNode, Tag: tag, Atom: atom.Lookup([]byte(tag))}
}

// NewText creates a detached text node.
func NewText(data string) *Node {
	return &Node{Type: TextNode, Data: data}
}

// Append adds children to the node and returns it.
func (n *Node) Append(kids ...*Node) *Node {
	n.Children = append(n.Children, kids...)
	return n
}

// Attr returns the value of the named attribute, or "".
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the named attribute is present.
func (n *Node) HasAttr(name string) bool {
	for _, a := range n.Attrs {
		if a.Key == name {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces the named attribute.
func (n *Node) SetAttr(name, val string) {
	for i, a := range n.Attrs {
		if a.Key == name {
			n.Attrs[i].Val = val
			return
		}
	}
	n.Attrs = append(n.Attrs, html.Attribute{Key: name, Val: val})
}

// DelAttr removes the named attribute if present.
func (n *Node) DelAttr(name string) {
	for i, a := range n.Attrs {
		if a.Key == name {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

// Classify resolves the node's special-handling category.
func (n *Node) Classify() Category {
	if n.Type != ElementNode {
		return CategoryDefault
	}
	switch n.Atom {
	case atom.Canvas:
		return CategoryRasterSurface
	case atom.Video, atom.Audio:
		return CategoryMedia
	case atom.Iframe, atom.Frame:
		return CategoryNestedDoc
	case atom.Svg:
		return CategoryVectorRoot
	}
	if n.Tag == "slot" {
		return CategorySlot
	}
	if n.Surface != nil {
		return CategoryRasterSurface
	}
	if n.Media != nil {
		return CategoryMedia
	}
	return CategoryDefault
}

// ShallowClone copies the node without children, live hooks, or style.
func (n *Node) ShallowClone() *Node {
	c := &Node{
		Type: n.Type,
		Tag:  n.Tag,
		Atom: n.Atom,
		Data: n.Data,
	}
	if len(n.Attrs) > 0 {
		c.Attrs = make([]html.Attribute, len(n.Attrs))
		copy(c.Attrs, n.Attrs)
	}
	return c
}

// DeepClone copies the node and its direct-children subtree. Used for the
// outermost vector-graphic root of a capture, which is copied as a unit.
func (n *Node) DeepClone() *Node {
	c := n.ShallowClone()
	for _, ch := range n.Children {
		c.Append(ch.DeepClone())
	}
	return c
}

// NestedBody returns the body of the node's nested document, or an
// AccessError when the document is absent or sealed.
func (n *Node) NestedBody() (*Node, error) {
	if n.SubDoc == nil || n.SubDoc.Sealed || n.SubDoc.Body == nil {
		return nil, &AccessError{URL: n.Attr("src")}
	}
	return n.SubDoc.Body, nil
}

// TraversalChildren returns the children a capture traversal descends
// into: distributed content for slots, nothing for media (a still image
// stands in for content), the nested body's children for accessible
// frames, and shadow content when attached, else direct children.
func (n *Node) TraversalChildren() []*Node {
	switch n.Classify() {
	case CategorySlot:
		if n.Assigned != nil {
			return n.Assigned
		}
		return n.Children
	case CategoryMedia:
		return nil
	case CategoryNestedDoc:
		if body, err := n.NestedBody(); err == nil {
			return body.Children
		}
		return nil
	default:
		if n.Shadow != nil {
			return n.Shadow
		}
		return n.Children
	}
}

// Count cheaply estimates the number of nodes a capture of n will visit.
// It follows the same children source as the traversal itself.
func Count(n *Node) int {
	if n == nil {
		return 0
	}
	total := 1
	for _, ch := range n.TraversalChildren() {
		total += Count(ch)
	}
	return total
}

// SymbolByID returns the node carrying the given id attribute, or nil.
// Used to resolve vector-graphic symbol references.
func (d *Document) SymbolByID(id string) *Node {
	if d == nil || d.Root == nil || id == "" {
		return nil
	}
	return FindByID(d.Root, id)
}

// FindByID returns the node under n (inclusive) carrying the id, or nil.
func FindByID(n *Node, id string) *Node {
	if n == nil || id == "" {
		return nil
	}
	return findByID(n, id)
}

func findByID(n *Node, id string) *Node {
	if n.Type == ElementNode && n.Attr("id") == id {
		return n
	}
	for _, ch := range n.Children {
		if found := findByID(ch, id); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns all element nodes under n (inclusive) whose tag matches.
func FindAll(n *Node, tag string) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(n *Node) {
		if n.Type == ElementNode && strings.EqualFold(n.Tag, tag) {
			out = append(out, n)
		}
		for _, ch := range n.Children {
			walk(ch)
		}
	}
	walk(n)
	return out
}
