// Package domsnap captures a region of a styled document tree into a
// fully self-contained artifact: every referenced image, background,
// mask, poster, and vector symbol is resolved and inlined, so the result
// renders identically with no network access and no reference back into
// the live document.
//
// A capture runs on a single goroutine through two phases, cloning and
// resource embedding, both metered by a cooperative execution governor
// that enforces the node-count and wall-clock limits and, in
// non-blocking mode, periodically yields the goroutine between children.
package domsnap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/domsnap/dom"
	"github.com/hazyhaar/domsnap/internal/cloner"
	"github.com/hazyhaar/domsnap/internal/embedder"
	"github.com/hazyhaar/domsnap/internal/pacer"
	"github.com/hazyhaar/domsnap/resolver"
	"github.com/hazyhaar/domsnap/style"
)

// Abort taxonomy, re-exported from the governor.
type (
	// AbortError is the fatal capture outcome: the whole call fails and no
	// partial artifact is produced. Match with errors.As, or errors.Is
	// against the sentinels.
	AbortError = pacer.AbortError

	// Reason is the closed set of abort causes.
	Reason = pacer.Reason
)

const (
	ReasonTimeout  = pacer.ReasonTimeout
	ReasonMaxNodes = pacer.ReasonMaxNodes
)

var (
	ErrTimeout  = pacer.ErrTimeout
	ErrMaxNodes = pacer.ErrMaxNodes
)

// DefaultYieldEvery is the count-based yield granularity when no time
// budget is configured.
const DefaultYieldEvery = pacer.DefaultYieldEvery

// Options configures one Capture call. The zero value is usable: no
// limits, blocking traversal, an HTTP resolver with default settings.
// Options are snapshotted per call; later mutation has no effect.
type Options struct {
	// Filter excludes a node and its whole subtree from the capture. It is
	// never consulted for the capture root. No placeholder is left for an
	// excluded node.
	Filter func(*dom.Node) bool

	// Resolver turns external resource URLs into data URIs. Default: an
	// HTTP resolver with resolver.Config defaults.
	Resolver resolver.Resolver

	// Pseudo synthesises ::before/::after generated content onto clones.
	// Default: none.
	Pseudo style.PseudoSynthesizer

	// MaxNodes aborts the capture once this many nodes have been
	// processed. 0 means unlimited.
	MaxNodes int

	// Timeout aborts the capture once this much wall-clock time has
	// elapsed since the capture started. 0 means unlimited. When both
	// limits are breached in the same step, MaxNodes wins.
	Timeout time.Duration

	// NonBlocking makes the traversal yield its goroutine cooperatively
	// between children, every YieldEvery nodes or every YieldBudget of
	// elapsed time.
	NonBlocking bool

	// YieldEvery is the count-based yield granularity. Default
	// DefaultYieldEvery. Ignored when YieldBudget is set.
	YieldEvery int

	// YieldBudget, when set, switches yielding to a time basis: the walk
	// suspends whenever this much time has passed since the last yield.
	YieldBudget time.Duration

	// OnProgress receives monotonic progress reports (done never exceeds
	// total; total is the preflight estimate).
	OnProgress func(done, total int)

	// OnResourceError intercepts per-resource embedding failures.
	// Returning a non-empty value with a nil error substitutes that value;
	// "" with a nil error skips the reference; a non-nil error is
	// collected into the capture's error result.
	OnResourceError func(url string, err error) (string, error)

	// Width and Height are the artifact dimensions used by vector and
	// raster outputs. 0 leaves them to the output stage.
	Width, Height int

	// PixelRatio scales raster output. 0 means 1.
	PixelRatio float64

	// Background, when non-empty, is painted behind the artifact by
	// raster output.
	Background string

	// Quality selects JPEG quality (0–1) for raster output. 0 means the
	// encoder default.
	Quality float64

	// EmbedFonts lifts the source document's @font-face rules into the
	// artifact with their font resources inlined. Requires the capture
	// root to be attached to a parsed document.
	EmbedFonts bool

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Resolver == nil {
		o.Resolver = resolver.NewHTTP(resolver.Config{Logger: o.Logger})
	}
	return o
}

func (o Options) limits() pacer.Limits {
	return pacer.Limits{
		MaxNodes:    o.MaxNodes,
		Timeout:     o.Timeout,
		NonBlocking: o.NonBlocking,
		YieldEvery:  o.YieldEvery,
		YieldBudget: o.YieldBudget,
		OnProgress:  o.OnProgress,
	}
}

// Capture clones the subtree rooted at node, inlines every external
// resource it references, and returns the self-contained result.
//
// The source tree is never mutated. On abort (node cap, timeout, or host
// context cancellation) no partial snapshot is returned. Per-resource
// embedding failures do not stop the walk; unless intercepted by
// OnResourceError they are joined into the returned error and the
// snapshot is withheld.
func Capture(ctx context.Context, node *dom.Node, opts Options) (*Snapshot, error) {
	if node == nil {
		return nil, fmt.Errorf("domsnap: nil capture root")
	}
	opts = opts.withDefaults()

	id := uuid.NewString()
	logger := opts.Logger.With("capture_id", id)
	lim := opts.limits()

	estimate := dom.Count(node)
	if err := pacer.Preflight(estimate, lim); err != nil {
		logger.Debug("capture rejected at preflight", "estimate", estimate, "max_nodes", opts.MaxNodes)
		return nil, err
	}

	start := time.Now()
	tc := pacer.NewContext(estimate)

	c := cloner.New(cloner.Config{
		Filter:   opts.Filter,
		Resolver: opts.Resolver,
		Pseudo:   opts.Pseudo,
		Limits:   lim,
		Logger:   logger,
	}, tc)
	clone, err := c.Clone(ctx, node, true)
	if err != nil {
		return nil, err
	}

	e := embedder.New(embedder.Config{
		Resolver:        opts.Resolver,
		OnResourceError: opts.OnResourceError,
		Limits:          lim,
		Logger:          logger,
	}, tc)
	if err := e.Embed(ctx, clone); err != nil {
		return nil, err
	}
	if opts.EmbedFonts {
		if err := embedFonts(ctx, e, node, clone); err != nil {
			return nil, err
		}
	}

	snap := &Snapshot{
		ID:        id,
		Clone:     clone,
		Processed: tc.Processed,
		Total:     estimate,
		Duration:  time.Since(start),
		opts:      opts,
	}
	logger.Debug("capture complete",
		"processed", snap.Processed, "estimated", snap.Total, "duration", snap.Duration)
	return snap, nil
}

// embedFonts prepends a style element carrying the source document's
// @font-face rules with every font resource inlined.
func embedFonts(ctx context.Context, e *embedder.Embedder, node, clone *dom.Node) error {
	if node.Owner == nil || len(node.Owner.Sheets) == 0 {
		return nil
	}
	var embedded []string
	for _, face := range style.FontFaces(node.Owner.Sheets...) {
		out, err := e.EmbedCSS(ctx, face)
		if err != nil {
			return err
		}
		embedded = append(embedded, out)
	}
	if len(embedded) == 0 {
		return nil
	}
	el := dom.NewElement("style")
	el.Append(dom.NewText(strings.Join(embedded, "\n")))
	clone.Children = append([]*dom.Node{el}, clone.Children...)
	return nil
}
