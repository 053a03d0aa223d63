package domsnap

import (
	"context"
	"time"

	"github.com/hazyhaar/domsnap/dom"
	"github.com/hazyhaar/domsnap/render"
)

// Snapshot is the result of one successful capture: a self-contained
// clone plus the capture's accounting. All output forms derive from the
// same clone; taking several does not re-run the capture.
type Snapshot struct {
	// ID uniquely identifies the capture; the same value appears in the
	// capture's log records.
	ID string

	// Clone is the detached, fully embedded tree.
	Clone *dom.Node

	// Processed is the number of nodes the governor metered; Total is the
	// preflight estimate.
	Processed int
	Total     int

	// Duration is the wall-clock time of the capture.
	Duration time.Duration

	opts Options
}

// HTML serialises the clone as a self-contained markup fragment.
func (s *Snapshot) HTML() string {
	return dom.Render(s.Clone)
}

// SVG wraps the clone in a portable SVG vector document sized by the
// capture's Width/Height options.
func (s *Snapshot) SVG() string {
	return render.SVG(s.Clone, s.opts.Width, s.opts.Height)
}

// PNG rasterizes the SVG document through the given renderer.
func (s *Snapshot) PNG(ctx context.Context, r *render.Renderer) ([]byte, error) {
	return r.PNG(ctx, s.SVG(), s.rasterOptions())
}

// JPEG rasterizes the SVG document through the given renderer.
func (s *Snapshot) JPEG(ctx context.Context, r *render.Renderer) ([]byte, error) {
	return r.JPEG(ctx, s.SVG(), s.rasterOptions())
}

func (s *Snapshot) rasterOptions() render.RasterOptions {
	return render.RasterOptions{
		Width:      s.opts.Width,
		Height:     s.opts.Height,
		PixelRatio: s.opts.PixelRatio,
		Background: s.opts.Background,
		Quality:    s.opts.Quality,
	}
}
