// Package raster implements the pixel-addressable drawing surface attached
// to raster-surface nodes, plus still-image encoding and the data-URI
// round trip used when a surface is folded into a capture clone.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Surface is an RGBA pixel buffer implementing dom.Surface. The zero
// surface is empty until drawn to.
type Surface struct {
	img       *image.RGBA
	drawn     bool
	chunkable bool
}

// New creates a surface of the given size. Strip reads are supported.
func New(w, h int) *Surface {
	return &Surface{
		img:       image.NewRGBA(image.Rect(0, 0, w, h)),
		chunkable: true,
	}
}

// FromImage creates a surface holding a copy of img.
func FromImage(src image.Image) *Surface {
	b := src.Bounds()
	s := New(b.Dx(), b.Dy())
	draw.Draw(s.img, s.img.Bounds(), src, b.Min, draw.Src)
	s.drawn = true
	return s
}

// SetChunkable toggles strip-read support; hosts without it force the
// synchronous whole-surface path.
func (s *Surface) SetChunkable(ok bool) { s.chunkable = ok }

// Size returns the surface dimensions in pixels.
func (s *Surface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Empty reports whether nothing has been drawn to the surface.
func (s *Surface) Empty() bool { return !s.drawn }

// Chunkable reports whether ReadRows is supported.
func (s *Surface) Chunkable() bool { return s.chunkable }

// Fill floods the surface with a colour.
func (s *Surface) Fill(c color.Color) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	s.drawn = true
}

// Set writes one pixel.
func (s *Surface) Set(x, y int, c color.Color) {
	s.img.Set(x, y, c)
	s.drawn = true
}

// Snapshot returns an independent copy of the full surface contents.
func (s *Surface) Snapshot() (image.Image, error) {
	b := s.img.Bounds()
	out := image.NewRGBA(b)
	copy(out.Pix, s.img.Pix)
	return out, nil
}

// ReadRows returns a copy of h rows starting at row y.
func (s *Surface) ReadRows(y, h int) (*image.RGBA, error) {
	if !s.chunkable {
		return nil, fmt.Errorf("raster: surface does not support strip reads")
	}
	b := s.img.Bounds()
	if y < 0 || h <= 0 || y+h > b.Dy() {
		return nil, fmt.Errorf("raster: read rows [%d,%d) out of bounds %d", y, y+h, b.Dy())
	}
	strip := image.NewRGBA(image.Rect(0, 0, b.Dx(), h))
	draw.Draw(strip, strip.Bounds(), s.img, image.Point{X: b.Min.X, Y: b.Min.Y + y}, draw.Src)
	return strip, nil
}

// WriteRows copies a strip into the surface starting at row y.
func (s *Surface) WriteRows(y int, strip *image.RGBA) error {
	b := s.img.Bounds()
	h := strip.Bounds().Dy()
	if y < 0 || y+h > b.Dy() {
		return fmt.Errorf("raster: write rows [%d,%d) out of bounds %d", y, y+h, b.Dy())
	}
	dst := image.Rect(b.Min.X, b.Min.Y+y, b.Max.X, b.Min.Y+y+h)
	draw.Draw(s.img, dst, strip, strip.Bounds().Min, draw.Src)
	s.drawn = true
	return nil
}

// Fit draws src resampled to exactly w×h. Media frames are fitted to the
// element's rendered dimensions this way before being folded into a clone.
func Fit(src image.Image, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return src
	}
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// Scale resamples an image by ratio using Catmull-Rom interpolation.
// Used for pixel-ratio adjustment at the rendering hand-off.
func Scale(src image.Image, ratio float64) image.Image {
	if ratio == 1 || ratio <= 0 {
		return src
	}
	b := src.Bounds()
	w := int(float64(b.Dx()) * ratio)
	h := int(float64(b.Dy()) * ratio)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
