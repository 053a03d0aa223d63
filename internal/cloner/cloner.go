// Package cloner implements the recursive tree-cloning traversal: the
// per-node pipeline Filter → Structural Clone → Children Clone → Decorate
// → Symbol Resolve, with per-category structural handling and the local
// recovery rules for nested documents and chunked raster surfaces.
package cloner

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hazyhaar/domsnap/dom"
	"github.com/hazyhaar/domsnap/internal/pacer"
	"github.com/hazyhaar/domsnap/resolver"
	"github.com/hazyhaar/domsnap/style"
)

// Config configures one capture's cloner.
type Config struct {
	// Filter excludes a node and its whole subtree. Never consulted for
	// the capture root or for recursively-entered sub-roots.
	Filter func(*dom.Node) bool

	// Resolver inlines poster/placeholder resources for inactive media.
	Resolver resolver.Resolver

	// Pseudo synthesises generated-content styling; its failures are
	// logged, never fatal. Default: style.NoopSynthesizer.
	Pseudo style.PseudoSynthesizer

	Limits pacer.Limits
	Logger *slog.Logger
}

// Cloner produces an independent copy of a node subtree. One instance per
// capture; it owns the symbol cache and shares the traversal context with
// the embedding phase.
type Cloner struct {
	cfg     Config
	tc      *pacer.Context
	symbols map[string]*dom.Node // reference id -> cloned definition
}

// New creates a Cloner bound to a traversal context.
func New(cfg Config, tc *pacer.Context) *Cloner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Pseudo == nil {
		cfg.Pseudo = style.NoopSynthesizer{}
	}
	return &Cloner{
		cfg:     cfg,
		tc:      tc,
		symbols: make(map[string]*dom.Node),
	}
}

// Clone runs the pipeline on one node. A nil, nil return means the node
// was excluded by the filter: the caller omits it entirely, with no
// placeholder. isRoot marks the capture root and recursively-entered
// sub-roots (nested-document bodies, symbol definitions), which skip the
// filter and may receive a trailing symbol-resolution pass.
func (c *Cloner) Clone(ctx context.Context, n *dom.Node, isRoot bool) (*dom.Node, error) {
	if !isRoot && c.cfg.Filter != nil && !c.cfg.Filter(n) {
		return nil, nil
	}

	clone, complete, err := c.structural(ctx, n, isRoot)
	if err != nil {
		return nil, err
	}

	// complete marks clones whose content is already final (still images,
	// recursively cloned nested bodies, deep-copied vector roots): the
	// children stage must not append on top of it.
	if !complete {
		if err := c.cloneChildren(ctx, n, clone); err != nil {
			return nil, err
		}
	}

	c.decorate(n, clone)

	if isRoot {
		if err := c.resolveSymbols(ctx, n, clone); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

// structural dispatches on the node's category. The bool result reports
// whether the clone's content is already complete (see Clone).
func (c *Cloner) structural(ctx context.Context, n *dom.Node, isRoot bool) (*dom.Node, bool, error) {
	switch n.Classify() {
	case dom.CategoryRasterSurface:
		clone, err := c.cloneSurface(ctx, n)
		return clone, true, err

	case dom.CategoryMedia:
		clone, err := c.cloneMedia(ctx, n)
		return clone, true, err

	case dom.CategoryNestedDoc:
		return c.cloneNestedDoc(ctx, n)

	case dom.CategoryVectorRoot:
		if isRoot {
			// The outermost vector root of a capture is copied as a unit.
			return n.DeepClone(), true, nil
		}
		return n.ShallowClone(), false, nil

	default:
		return n.ShallowClone(), false, nil
	}
}

// cloneNestedDoc recursively clones the nested document's body as a
// sub-root. Every failure except an abort (or host cancellation) is
// recovered locally: the frame degrades to a shallow, non-recursive clone
// and the capture continues.
func (c *Cloner) cloneNestedDoc(ctx context.Context, n *dom.Node) (*dom.Node, bool, error) {
	body, err := n.NestedBody()
	if err == nil {
		sub, cerr := c.Clone(ctx, body, true)
		if cerr == nil {
			return sub, true, nil
		}
		var abort *pacer.AbortError
		if errors.As(cerr, &abort) || ctx.Err() != nil {
			return nil, false, cerr
		}
		err = cerr
	}
	c.cfg.Logger.Debug("cloner: nested document degraded to shallow clone",
		"src", n.Attr("src"), "error", err)
	return n.ShallowClone(), true, nil
}

// cloneChildren appends clones of the traversal children, ticking the
// governor before each one. Filtered children are omitted entirely.
func (c *Cloner) cloneChildren(ctx context.Context, src, clone *dom.Node) error {
	for _, child := range src.TraversalChildren() {
		if err := pacer.CheckLimits(c.tc, c.cfg.Limits); err != nil {
			return err
		}
		if err := pacer.Tick(ctx, c.tc, c.cfg.Limits); err != nil {
			return err
		}
		sub, err := c.Clone(ctx, child, false)
		if err != nil {
			return err
		}
		if sub != nil {
			clone.Append(sub)
		}
	}
	return nil
}
