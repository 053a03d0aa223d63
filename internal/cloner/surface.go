package cloner

import (
	"context"
	"fmt"
	"image"

	"github.com/hazyhaar/domsnap/dom"
	"github.com/hazyhaar/domsnap/internal/pacer"
	"github.com/hazyhaar/domsnap/raster"
	"github.com/hazyhaar/domsnap/resolver"
)

const (
	// chunkAreaThreshold is the pixel area above which a surface is copied
	// in strips instead of one synchronous encode.
	chunkAreaThreshold = 500_000

	// stripRows is the fixed strip height of the chunked copy.
	stripRows = 256

	// yieldStride is the number of strips copied between cooperative
	// yields.
	yieldStride = 4
)

// cloneSurface folds a raster-surface node into a still image. Empty
// surfaces stay shallow; small or non-chunkable ones are encoded in one
// shot; large chunkable ones go through the strip copy, falling back to
// the synchronous path on any chunking failure.
func (c *Cloner) cloneSurface(ctx context.Context, n *dom.Node) (*dom.Node, error) {
	s := n.Surface
	if s == nil || s.Empty() {
		return n.ShallowClone(), nil
	}

	w, h := s.Size()
	if w*h < chunkAreaThreshold || !s.Chunkable() {
		return c.surfaceStill(n, s, w, h)
	}

	img, err := c.copyChunked(s, w, h)
	if err != nil {
		c.cfg.Logger.Debug("cloner: chunked surface copy failed, using synchronous encode",
			"width", w, "height", h, "error", err)
		return c.surfaceStill(n, s, w, h)
	}
	return stillImageNode(n, img, w, h)
}

// surfaceStill is the synchronous whole-surface path.
func (c *Cloner) surfaceStill(n *dom.Node, s dom.Surface, w, h int) (*dom.Node, error) {
	img, err := s.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("cloner: surface snapshot: %w", err)
	}
	return stillImageNode(n, img, w, h)
}

// copyChunked assembles the surface strip by strip through an auxiliary
// surface, yielding after every yieldStride strips when cooperative mode
// is active. The caller waits for the whole assembly before continuing.
func (c *Cloner) copyChunked(s dom.Surface, w, h int) (image.Image, error) {
	aux := raster.New(w, h)
	strip := 0
	for y := 0; y < h; y += stripRows {
		rows := stripRows
		if y+rows > h {
			rows = h - y
		}
		buf, err := s.ReadRows(y, rows)
		if err != nil {
			return nil, err
		}
		if err := aux.WriteRows(y, buf); err != nil {
			return nil, err
		}
		strip++
		if strip%yieldStride == 0 {
			pacer.YieldNow(c.tc, c.cfg.Limits)
		}
	}
	return aux.Snapshot()
}

// cloneMedia replaces a media node with a still image: the current frame
// when a source is active, the resolved poster otherwise.
func (c *Cloner) cloneMedia(ctx context.Context, n *dom.Node) (*dom.Node, error) {
	m := n.Media
	if m != nil && m.Active() {
		frame, err := m.Frame()
		if err != nil {
			return nil, fmt.Errorf("cloner: media frame: %w", err)
		}
		w, h := m.Size()
		return stillImageNode(n, raster.Fit(frame, w, h), w, h)
	}

	poster := n.Attr("poster")
	if m != nil && m.Poster() != "" {
		poster = m.Poster()
	}
	if poster == "" {
		return n.ShallowClone(), nil
	}
	if c.cfg.Resolver == nil {
		return nil, fmt.Errorf("cloner: no resolver for media poster %s", poster)
	}
	uri, err := c.cfg.Resolver.Resolve(ctx, poster, resolver.Classify(poster))
	if err != nil {
		return nil, fmt.Errorf("cloner: resolve poster %s: %w", poster, err)
	}
	clone := imageElement(n)
	clone.SetAttr("src", uri)
	return clone, nil
}

// stillImageNode encodes an image and wraps it as an img element standing
// in for the source node.
func stillImageNode(src *dom.Node, img image.Image, w, h int) (*dom.Node, error) {
	uri, err := raster.DataURI(img, "image/png", 0)
	if err != nil {
		return nil, fmt.Errorf("cloner: encode still image: %w", err)
	}
	clone := imageElement(src)
	clone.SetAttr("src", uri)
	if w > 0 {
		clone.SetAttr("width", fmt.Sprintf("%d", w))
	}
	if h > 0 {
		clone.SetAttr("height", fmt.Sprintf("%d", h))
	}
	return clone, nil
}

// imageElement builds an img element carrying over the source's
// identifying attributes so styling still applies.
func imageElement(src *dom.Node) *dom.Node {
	img := dom.NewElement("img")
	for _, a := range src.Attrs {
		switch a.Key {
		case "src", "srcset", "poster", "width", "height", "autoplay", "controls", "loop", "muted":
			continue
		}
		img.SetAttr(a.Key, a.Val)
	}
	return img
}
