// Package embedder implements the resource-embedding phase: a depth-first
// walk over a capture clone that rewrites every external resource
// reference (style url() tokens, image sources) into a self-contained
// data URI.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gorilla/css/scanner"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domsnap/dom"
	"github.com/hazyhaar/domsnap/internal/pacer"
	"github.com/hazyhaar/domsnap/raster"
	"github.com/hazyhaar/domsnap/resolver"
)

// backgroundChain and maskChain are the style property fallback chains.
// Within a chain, the first property with a non-empty value is rewritten
// and the rest are left alone.
var (
	backgroundChain = []string{"background", "background-image"}
	maskChain       = []string{"mask", "-webkit-mask", "mask-image", "-webkit-mask-image"}
)

// Config configures one capture's embedder.
type Config struct {
	// Resolver turns external URLs into data URIs. Required.
	Resolver resolver.Resolver

	// OnResourceError, when set, is consulted for each per-resource
	// failure. Returning a non-empty value with a nil error substitutes
	// that value for the resource; returning "" with a nil error skips the
	// reference and continues; a non-nil error is recorded. When unset,
	// failures are recorded and embedding continues.
	OnResourceError func(url string, err error) (string, error)

	Limits pacer.Limits
	Logger *slog.Logger
}

// Embedder walks a clone and inlines its resources. One instance per
// capture; it shares the traversal context with the cloning phase so the
// governor's counters span both.
type Embedder struct {
	cfg  Config
	tc   *pacer.Context
	errs []error
}

// New creates an Embedder bound to a traversal context.
func New(cfg Config, tc *pacer.Context) *Embedder {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Embedder{cfg: cfg, tc: tc}
}

// Embed inlines every external resource reference under n. Per-resource
// failures never stop the walk: they go through the configured handler or
// accumulate into the joined error result. Governor aborts and host
// cancellation return immediately.
func (e *Embedder) Embed(ctx context.Context, n *dom.Node) error {
	if err := e.walk(ctx, n); err != nil {
		return err
	}
	return errors.Join(e.errs...)
}

// EmbedCSS rewrites url() references inside a standalone CSS text, such
// as a font-face block lifted from the source document's stylesheets. The
// error reports only failures new to this call.
func (e *Embedder) EmbedCSS(ctx context.Context, cssText string) (string, error) {
	before := len(e.errs)
	out := e.rewriteURLTokens(ctx, cssText)
	return out, errors.Join(e.errs[before:]...)
}

func (e *Embedder) walk(ctx context.Context, n *dom.Node) error {
	if n.Type == dom.ElementNode {
		e.embedStyle(ctx, n)
		e.embedSource(ctx, n)
	}
	for _, child := range n.Children {
		if err := pacer.CheckLimits(e.tc, e.cfg.Limits); err != nil {
			return err
		}
		if err := pacer.Tick(ctx, e.tc, e.cfg.Limits); err != nil {
			return err
		}
		if err := e.walk(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// embedStyle rewrites url() references in the node's style snapshot,
// following the background and mask fallback chains.
func (e *Embedder) embedStyle(ctx context.Context, n *dom.Node) {
	cs := n.Style
	if cs == nil {
		return
	}
	e.embedChain(ctx, n, cs, backgroundChain)
	e.embedChain(ctx, n, cs, maskChain)
}

// embedChain rewrites the first property of the chain carrying a value.
func (e *Embedder) embedChain(ctx context.Context, n *dom.Node, cs *dom.ComputedStyle, chain []string) {
	for _, prop := range chain {
		d, ok := cs.Get(prop)
		if !ok || strings.TrimSpace(d.Value) == "" {
			continue
		}
		rewritten := e.rewriteURLTokens(ctx, d.Value)
		if rewritten != d.Value {
			cs.Set(prop, rewritten, d.Priority)
		}
		return
	}
}

// rewriteURLTokens replaces each url() token's target with its resolved
// data URI, leaving every other token byte-for-byte intact. Targets that
// are already data URIs pass through unchanged, which keeps re-embedding
// idempotent.
func (e *Embedder) rewriteURLTokens(ctx context.Context, value string) string {
	s := scanner.New(value)
	var sb strings.Builder
	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF {
			break
		}
		if tok.Type == scanner.TokenError {
			// Unparseable remainder: keep the original text whole.
			return value
		}
		if tok.Type != scanner.TokenURI {
			sb.WriteString(tok.Value)
			continue
		}
		target, quote := uriTarget(tok.Value)
		if target == "" || strings.HasPrefix(target, "data:") {
			sb.WriteString(tok.Value)
			continue
		}
		uri, err := e.resolve(ctx, target)
		if err != nil {
			sb.WriteString(tok.Value)
			continue
		}
		sb.WriteString("url(")
		sb.WriteString(quote)
		sb.WriteString(uri)
		sb.WriteString(quote)
		sb.WriteString(")")
	}
	return sb.String()
}

// uriTarget extracts the target and quote style of a url() lexeme.
func uriTarget(lexeme string) (target, quote string) {
	inner := strings.TrimSuffix(strings.TrimPrefix(lexeme, "url("), ")")
	inner = strings.TrimSpace(inner)
	switch {
	case strings.HasPrefix(inner, `"`) && strings.HasSuffix(inner, `"`) && len(inner) >= 2:
		return inner[1 : len(inner)-1], `"`
	case strings.HasPrefix(inner, `'`) && strings.HasSuffix(inner, `'`) && len(inner) >= 2:
		return inner[1 : len(inner)-1], `'`
	default:
		return inner, ""
	}
}

// embedSource inlines element-level image sources: img src and the href of
// nested vector image elements. Responsive source sets cannot be inlined
// and are dropped; deferred loading is forced eager so the artifact shows
// its content without intersection callbacks.
func (e *Embedder) embedSource(ctx context.Context, n *dom.Node) {
	var attr string
	switch {
	case n.Atom == atom.Img:
		attr = "src"
	case n.Tag == "image":
		attr = "href"
		if !n.HasAttr("href") && n.HasAttr("xlink:href") {
			attr = "xlink:href"
		}
	default:
		return
	}

	src := n.Attr(attr)
	if src != "" && !strings.HasPrefix(src, "data:") {
		uri, err := e.resolve(ctx, src)
		if err == nil {
			n.SetAttr(attr, uri)
		}
	}

	if n.Atom == atom.Img {
		n.DelAttr("srcset")
		if n.Attr("loading") == "lazy" {
			n.SetAttr("loading", "eager")
		}
	}
}

// resolve fetches one resource, routing failures through the handler or
// the accumulated error list. A handler may supply a replacement value,
// which is returned in place of the failed resolution.
func (e *Embedder) resolve(ctx context.Context, url string) (string, error) {
	if e.cfg.Resolver == nil {
		return e.recover(url, fmt.Errorf("embedder: no resolver for %s", url))
	}
	uri, err := e.cfg.Resolver.Resolve(ctx, url, resolver.Classify(url))
	if err != nil {
		return e.recover(url, fmt.Errorf("embedder: resolve %s: %w", url, err))
	}
	// Still-image payloads are checked to actually decode; a truncated or
	// mislabelled body would otherwise poison the artifact silently.
	if strings.HasPrefix(uri, "data:image/png;") || strings.HasPrefix(uri, "data:image/jpeg;") {
		if _, _, derr := raster.DecodeDataURI(uri); derr != nil {
			return e.recover(url, fmt.Errorf("embedder: resolved %s does not decode: %w", url, derr))
		}
	}
	return uri, nil
}

var errSkipped = fmt.Errorf("embedder: resource skipped by handler")

func (e *Embedder) recover(url string, err error) (string, error) {
	if e.cfg.OnResourceError != nil {
		replacement, herr := e.cfg.OnResourceError(url, err)
		if herr == nil {
			if replacement != "" {
				return replacement, nil
			}
			e.cfg.Logger.Debug("embedder: resource failure handled", "url", url, "error", err)
			return "", errSkipped
		}
		err = herr
	}
	e.errs = append(e.errs, err)
	return "", err
}
